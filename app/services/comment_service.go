package services

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"postkeeper/app/models"
	"postkeeper/app/repositories"
)

var commentTracer = otel.Tracer("comments")

// CommentOptions tunes the coordinator.
type CommentOptions struct {
	// RefreshProjectionOnUpdate rewrites the post's embedded copy after an
	// update. When false the embedded copy keeps the pre-update fields.
	RefreshProjectionOnUpdate bool
	Logger                    *slog.Logger
}

// CommentService is the single writer of both the comment collection and the
// comment list embedded in each post. Every mutation is an ordered sequence of
// store writes; a failure part way through is returned to the caller and the
// earlier writes stay in place.
type CommentService struct {
	posts             repositories.PostRepository
	comments          repositories.CommentRepository
	refreshProjection bool
	logger            *slog.Logger
}

// NewCommentService creates a new CommentService
func NewCommentService(posts repositories.PostRepository, comments repositories.CommentRepository, opts CommentOptions) *CommentService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CommentService{
		posts:             posts,
		comments:          comments,
		refreshProjection: opts.RefreshProjectionOnUpdate,
		logger:            logger,
	}
}

// CreateComment stores the comment, then appends it to the post's embedded list.
func (s *CommentService) CreateComment(ctx context.Context, postID string, in models.CommentInput) (*models.Comment, error) {
	ctx, span := commentTracer.Start(ctx, "Comments.Service.CreateComment", trace.WithAttributes(
		attribute.String("post.id", postID),
	))
	defer span.End()

	if err := in.Validate(); err != nil {
		return nil, fail(span, err)
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fail(span, err)
	}

	comment := models.NewComment(post.ID, in)
	if err := s.comments.Save(ctx, &comment); err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("comment.id", comment.ID))

	if err := post.AddComment(comment); err != nil {
		return nil, fail(span, err)
	}
	if err := s.posts.Save(ctx, post); err != nil {
		s.partialWrite(ctx, span, "create", post.ID, comment.ID, err)
		return nil, fail(span, err)
	}

	return &comment, nil
}

// ListComments returns the post's embedded comments in creation order.
func (s *CommentService) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	ctx, span := commentTracer.Start(ctx, "Comments.Service.ListComments", trace.WithAttributes(
		attribute.String("post.id", postID),
	))
	defer span.End()

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fail(span, err)
	}
	if post.Comments == nil {
		return []models.Comment{}, nil
	}
	return post.Comments, nil
}

// GetComment returns the embedded copy of the comment, not the stored record.
func (s *CommentService) GetComment(ctx context.Context, postID, commentID string) (*models.Comment, error) {
	ctx, span := commentTracer.Start(ctx, "Comments.Service.GetComment", trace.WithAttributes(
		attribute.String("post.id", postID),
		attribute.String("comment.id", commentID),
	))
	defer span.End()

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fail(span, err)
	}
	comment, ok := post.FindComment(commentID)
	if !ok {
		return nil, fail(span, models.CommentNotFound(commentID))
	}
	return &comment, nil
}

// UpdateComment patches the stored record and writes it back to the comment
// collection. The comment must also be embedded in the post. The post is
// rewritten only when the projection refresh is on.
func (s *CommentService) UpdateComment(ctx context.Context, postID, commentID string, patch models.CommentPatch) (*models.Comment, error) {
	ctx, span := commentTracer.Start(ctx, "Comments.Service.UpdateComment", trace.WithAttributes(
		attribute.String("post.id", postID),
		attribute.String("comment.id", commentID),
		attribute.Bool("projection.refresh", s.refreshProjection),
	))
	defer span.End()

	if err := patch.Validate(); err != nil {
		return nil, fail(span, err)
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fail(span, err)
	}
	if _, ok := post.FindComment(commentID); !ok {
		return nil, fail(span, models.CommentNotFound(commentID))
	}
	comment, err := s.ownedComment(ctx, post.ID, commentID)
	if err != nil {
		return nil, fail(span, err)
	}

	comment.Apply(patch)
	if err := comment.Validate(); err != nil {
		return nil, fail(span, err)
	}
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, fail(span, err)
	}

	if s.refreshProjection {
		post.ReplaceComment(*comment)
		if err := s.posts.Save(ctx, post); err != nil {
			s.partialWrite(ctx, span, "update", post.ID, comment.ID, err)
			return nil, fail(span, err)
		}
	}

	return comment, nil
}

// DeleteComment removes the embedded copy first and the stored record second.
// A failure between the two leaves an orphaned comment behind.
func (s *CommentService) DeleteComment(ctx context.Context, postID, commentID string) error {
	ctx, span := commentTracer.Start(ctx, "Comments.Service.DeleteComment", trace.WithAttributes(
		attribute.String("post.id", postID),
		attribute.String("comment.id", commentID),
	))
	defer span.End()

	stored, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return fail(span, err)
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return fail(span, err)
	}
	if stored.PostID != post.ID {
		return fail(span, models.CommentNotFound(commentID))
	}

	post.RemoveComment(commentID)
	if err := s.posts.Save(ctx, post); err != nil {
		return fail(span, err)
	}

	if err := s.comments.Delete(ctx, commentID); err != nil {
		s.partialWrite(ctx, span, "delete", post.ID, commentID, err)
		return fail(span, err)
	}
	return nil
}

// ownedComment loads the stored record and checks it belongs to the post.
func (s *CommentService) ownedComment(ctx context.Context, postID, commentID string) (*models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.PostID != postID {
		return nil, models.CommentNotFound(commentID)
	}
	return comment, nil
}

// ConsistencyReport compares a post's embedded comments with the comment
// collection.
type ConsistencyReport struct {
	PostID string `json:"postId"`
	// MissingFromProjection lists stored comments the post does not embed.
	MissingFromProjection []string `json:"missingFromProjection"`
	// Orphaned lists embedded comments with no stored record.
	Orphaned []string `json:"orphaned"`
	// Stale lists embedded comments whose fields differ from the stored record.
	Stale []string `json:"stale"`
}

// Consistent reports whether the projection matches the collection exactly.
func (r *ConsistencyReport) Consistent() bool {
	return len(r.MissingFromProjection) == 0 && len(r.Orphaned) == 0 && len(r.Stale) == 0
}

// AuditPost detects divergence between the embedded comments of a post and
// the stored comments that name it. It never repairs anything.
func (s *CommentService) AuditPost(ctx context.Context, postID string) (*ConsistencyReport, error) {
	ctx, span := commentTracer.Start(ctx, "Comments.Service.AuditPost", trace.WithAttributes(
		attribute.String("post.id", postID),
	))
	defer span.End()

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fail(span, err)
	}
	stored, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, fail(span, err)
	}

	report := &ConsistencyReport{
		PostID:                postID,
		MissingFromProjection: []string{},
		Orphaned:              []string{},
		Stale:                 []string{},
	}

	byID := make(map[string]*models.Comment, len(stored))
	for _, c := range stored {
		byID[c.ID] = c
	}
	embedded := make(map[string]bool, len(post.Comments))
	for _, c := range post.Comments {
		embedded[c.ID] = true
		record, ok := byID[c.ID]
		switch {
		case !ok:
			report.Orphaned = append(report.Orphaned, c.ID)
		case !c.SameContent(*record):
			report.Stale = append(report.Stale, c.ID)
		}
	}
	for _, c := range stored {
		if !embedded[c.ID] {
			report.MissingFromProjection = append(report.MissingFromProjection, c.ID)
		}
	}

	consistent := report.Consistent()
	span.SetAttributes(attribute.Bool("consistent", consistent))
	if !consistent {
		s.logger.WarnContext(ctx, "comment projection diverged",
			"post_id", postID,
			"missing", len(report.MissingFromProjection),
			"orphaned", len(report.Orphaned),
			"stale", len(report.Stale),
		)
	}
	return report, nil
}

func (s *CommentService) partialWrite(ctx context.Context, span trace.Span, op, postID, commentID string, err error) {
	span.AddEvent("partial write", trace.WithAttributes(attribute.String("op", op)))
	s.logger.WarnContext(ctx, "comment write left post projection and comment store diverged",
		"op", op,
		"post_id", postID,
		"comment_id", commentID,
		"error", err,
	)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
