package models

import (
	"errors"
	"time"
)

// Validate checks if the post meets all validation requirements
func (p *Post) Validate() error {
	return validateStruct(p)
}

// BeforeSave stamps timestamps and bumps the version ahead of a store write.
func (p *Post) BeforeSave(now time.Time) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Version++
}

// AddComment appends a projection of the comment to the post.
func (p *Post) AddComment(comment Comment) error {
	if comment.ID == "" {
		return errors.New("comment has no id")
	}
	comment.PostID = p.ID
	p.Comments = append(p.Comments, comment)
	return nil
}

// FindComment scans the projection for the comment id. The first match wins.
func (p *Post) FindComment(commentID string) (Comment, bool) {
	for _, c := range p.Comments {
		if c.ID == commentID {
			return c, true
		}
	}
	return Comment{}, false
}

// ReplaceComment overwrites the projection entry with the same id.
func (p *Post) ReplaceComment(comment Comment) bool {
	for i := range p.Comments {
		if p.Comments[i].ID == comment.ID {
			p.Comments[i] = comment
			return true
		}
	}
	return false
}

// RemoveComment removes the comment from the projection.
func (p *Post) RemoveComment(commentID string) bool {
	for i, comment := range p.Comments {
		if comment.ID == commentID {
			p.Comments = append(p.Comments[:i:i], p.Comments[i+1:]...)
			return true
		}
	}
	return false
}

// CommentIDs lists the projection ids in order.
func (p *Post) CommentIDs() []string {
	ids := make([]string, 0, len(p.Comments))
	for _, c := range p.Comments {
		ids = append(ids, c.ID)
	}
	return ids
}

// Clone returns a deep copy, so callers never share the projection slice.
func (p *Post) Clone() *Post {
	cp := *p
	if p.Comments != nil {
		cp.Comments = make([]Comment, len(p.Comments))
		copy(cp.Comments, p.Comments)
	}
	return &cp
}

// Apply copies the input fields onto the post.
func (p *Post) Apply(in PostInput) {
	p.Title = in.Title
	p.Body = in.Body
}
