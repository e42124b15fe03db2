package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"postkeeper/app/models"
)

// PostRepository is an in-memory document store for posts. Reads and writes
// copy documents, so callers never share a projection slice.
type PostRepository struct {
	posts  map[string]*models.Post
	nextID int
	writes int
	mutex  sync.RWMutex

	// SaveErr, when set, is consulted before every save; a non-nil result fails it.
	SaveErr func(post *models.Post) error
	// DeleteErr, when set, is consulted before every delete.
	DeleteErr func(id string) error
	// GetErr, when set, is consulted before every read.
	GetErr func(id string) error
	// AfterGet runs after a successful GetByID, outside the lock.
	AfterGet func(id string)
}

// CommentRepository is an in-memory authoritative comment collection.
type CommentRepository struct {
	comments map[string]*models.Comment
	nextID   int
	writes   int
	mutex    sync.RWMutex

	// SaveErr is consulted before every Save and Update.
	SaveErr   func(comment *models.Comment) error
	DeleteErr func(id string) error
}

// ImportLedger is an in-memory import ledger.
type ImportLedger struct {
	entries map[string]models.ImportEntry
	mutex   sync.RWMutex

	RecordErr func(entry models.ImportEntry) error
}

func NewPostRepository() *PostRepository {
	return &PostRepository{
		posts:  make(map[string]*models.Post),
		nextID: 1,
	}
}

func NewCommentRepository() *CommentRepository {
	return &CommentRepository{
		comments: make(map[string]*models.Comment),
		nextID:   1,
	}
}

func NewImportLedger() *ImportLedger {
	return &ImportLedger{entries: make(map[string]models.ImportEntry)}
}

func (m *PostRepository) Clear() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.posts = make(map[string]*models.Post)
	m.nextID = 1
	m.writes = 0
}

// Writes counts successful and attempted saves and deletes.
func (m *PostRepository) Writes() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.writes
}

// PostRepository implementation
func (m *PostRepository) Save(ctx context.Context, post *models.Post) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.writes++
	if m.SaveErr != nil {
		if err := m.SaveErr(post); err != nil {
			return err
		}
	}

	doc := post.Clone()
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("p%d", m.nextID)
		m.nextID++
	}
	doc.BeforeSave(time.Now())
	m.posts[doc.ID] = doc
	*post = *doc.Clone()
	return nil
}

func (m *PostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	m.mutex.RLock()
	if m.GetErr != nil {
		if err := m.GetErr(id); err != nil {
			m.mutex.RUnlock()
			return nil, err
		}
	}
	post, exists := m.posts[id]
	var cp *models.Post
	if exists {
		cp = post.Clone()
	}
	m.mutex.RUnlock()

	if !exists {
		return nil, models.PostNotFound(id)
	}
	if m.AfterGet != nil {
		m.AfterGet(id)
	}
	return cp, nil
}

func (m *PostRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, exists := m.posts[id]
	return exists, nil
}

func (m *PostRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	posts := make([]*models.Post, 0, len(m.posts))
	for _, post := range m.posts {
		posts = append(posts, post.Clone())
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
	if offset >= len(posts) {
		return []*models.Post{}, nil
	}
	end := offset + limit
	if end > len(posts) {
		end = len(posts)
	}
	return posts[offset:end], nil
}

func (m *PostRepository) Delete(ctx context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.writes++
	if m.DeleteErr != nil {
		if err := m.DeleteErr(id); err != nil {
			return err
		}
	}
	if _, exists := m.posts[id]; !exists {
		return models.PostNotFound(id)
	}
	delete(m.posts, id)
	return nil
}

// Count returns the number of stored posts.
func (m *PostRepository) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.posts)
}

// CommentRepository implementation

// Writes counts attempted saves and deletes.
func (m *CommentRepository) Writes() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.writes
}

func (m *CommentRepository) Save(ctx context.Context, comment *models.Comment) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.writes++
	if m.SaveErr != nil {
		if err := m.SaveErr(comment); err != nil {
			return err
		}
	}

	doc := *comment
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("c%d", m.nextID)
		m.nextID++
	}
	doc.BeforeSave(time.Now())
	m.comments[doc.ID] = &doc
	*comment = doc
	return nil
}

func (m *CommentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	comment, exists := m.comments[id]
	if !exists {
		return nil, models.CommentNotFound(id)
	}
	cp := *comment
	return &cp, nil
}

func (m *CommentRepository) Update(ctx context.Context, comment *models.Comment) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.writes++
	if m.SaveErr != nil {
		if err := m.SaveErr(comment); err != nil {
			return err
		}
	}

	stored, exists := m.comments[comment.ID]
	if !exists || stored.PostID != comment.PostID {
		return models.CommentNotFound(comment.ID)
	}
	doc := *comment
	doc.CreatedAt = stored.CreatedAt
	doc.BeforeSave(time.Now())
	m.comments[doc.ID] = &doc
	*comment = doc
	return nil
}

func (m *CommentRepository) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	comments := []*models.Comment{}
	for _, comment := range m.comments {
		if comment.PostID == postID {
			cp := *comment
			comments = append(comments, &cp)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

func (m *CommentRepository) Delete(ctx context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.writes++
	if m.DeleteErr != nil {
		if err := m.DeleteErr(id); err != nil {
			return err
		}
	}
	if _, exists := m.comments[id]; !exists {
		return models.CommentNotFound(id)
	}
	delete(m.comments, id)
	return nil
}

// ImportLedger implementation

func ledgerKey(source string, externalID int) string {
	return fmt.Sprintf("%s:%d", source, externalID)
}

func (m *ImportLedger) Lookup(ctx context.Context, source string, externalID int) (*models.ImportEntry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entry, ok := m.entries[ledgerKey(source, externalID)]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *ImportLedger) Record(ctx context.Context, entry models.ImportEntry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.RecordErr != nil {
		if err := m.RecordErr(entry); err != nil {
			return err
		}
	}
	if entry.ImportedAt.IsZero() {
		entry.ImportedAt = time.Now()
	}
	m.entries[ledgerKey(entry.Source, entry.ExternalID)] = entry
	return nil
}

// Len returns the number of ledger entries.
func (m *ImportLedger) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.entries)
}
