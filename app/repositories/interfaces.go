package repositories

import (
	"context"

	"postkeeper/app/models"
)

// PostRepository defines the interface for post document access
type PostRepository interface {
	Save(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	Delete(ctx context.Context, id string) error
}

// CommentRepository defines the interface for the authoritative comment collection
type CommentRepository interface {
	Save(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	// Update never creates: an absent comment is a not-found error.
	Update(ctx context.Context, comment *models.Comment) error
	ListByPost(ctx context.Context, postID string) ([]*models.Comment, error)
	Delete(ctx context.Context, id string) error
}

// ImportLedger maps external feed records to the posts they were imported as.
// Lookup returns a nil entry when the record was never imported.
type ImportLedger interface {
	Lookup(ctx context.Context, source string, externalID int) (*models.ImportEntry, error)
	Record(ctx context.Context, entry models.ImportEntry) error
}
