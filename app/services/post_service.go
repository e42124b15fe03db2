package services

import (
	"context"

	"postkeeper/app/models"
	"postkeeper/app/repositories"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// PostService handles business logic for posts. It never touches the comment
// collection; comments are written through CommentService only.
type PostService struct {
	posts repositories.PostRepository
}

// NewPostService creates a new PostService
func NewPostService(posts repositories.PostRepository) *PostService {
	return &PostService{posts: posts}
}

// CreatePost creates a new post with an empty comment list.
func (s *PostService) CreatePost(ctx context.Context, in models.PostInput) (*models.Post, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	post := &models.Post{Comments: []models.Comment{}}
	post.Apply(in)
	if err := s.posts.Save(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// GetPost retrieves a post with its embedded comments
func (s *PostService) GetPost(ctx context.Context, id string) (*models.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// ListPosts retrieves a paginated list of posts
func (s *PostService) ListPosts(ctx context.Context, page, perPage int) ([]*models.Post, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	offset := (page - 1) * perPage
	return s.posts.List(ctx, perPage, offset)
}

// UpdatePost replaces title and body. The embedded comments are kept as stored.
func (s *PostService) UpdatePost(ctx context.Context, id string, in models.PostInput) (*models.Post, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	post.Apply(in)
	if err := s.posts.Save(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost deletes the post document. Stored comments that name it are left
// in place and show up as orphans of a post that no longer exists.
func (s *PostService) DeletePost(ctx context.Context, id string) error {
	return s.posts.Delete(ctx, id)
}
