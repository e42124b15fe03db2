package models

import "time"

// Post is the document owned by the posts service. Comments is a denormalized
// copy of the authoritative comment documents whose PostID equals ID, kept in
// creation order.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title" validate:"required,min=1,max=200"`
	Body      string    `json:"body" validate:"required,min=1,max=10000"`
	Comments  []Comment `json:"comments" validate:"-"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Comment is the authoritative comment record. Values embedded in
// Post.Comments are projections of it.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId" validate:"required"`
	Email     string    `json:"email" validate:"required,email,max=254"`
	Name      string    `json:"name" validate:"required,min=1,max=100"`
	Body      string    `json:"body" validate:"required,min=1,max=1000"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CommentInput carries the caller supplied fields of a new comment.
type CommentInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Body  string `json:"body" validate:"required,min=1,max=1000"`
}

// CommentPatch carries an update; nil fields are left unchanged.
type CommentPatch struct {
	Name *string `json:"name,omitempty" validate:"omitnil,min=1,max=100"`
	Body *string `json:"body,omitempty" validate:"omitnil,min=1,max=1000"`
}

// PostInput carries the caller supplied fields of a post.
type PostInput struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
	Body  string `json:"body" validate:"required,min=1,max=10000"`
}
