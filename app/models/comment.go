package models

import "time"

// NewComment builds an unsaved comment for the post from validated input.
func NewComment(postID string, in CommentInput) Comment {
	return Comment{
		PostID: postID,
		Email:  in.Email,
		Name:   in.Name,
		Body:   in.Body,
	}
}

// Validate checks if the comment meets all validation requirements
func (c *Comment) Validate() error {
	return validateStruct(c)
}

// BeforeSave stamps timestamps ahead of a store write.
func (c *Comment) BeforeSave(now time.Time) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

// Apply copies the non-nil patch fields onto the comment.
func (c *Comment) Apply(p CommentPatch) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Body != nil {
		c.Body = *p.Body
	}
}

// SameContent reports whether two copies of a comment carry the same fields.
func (c Comment) SameContent(other Comment) bool {
	return c.ID == other.ID &&
		c.PostID == other.PostID &&
		c.Email == other.Email &&
		c.Name == other.Name &&
		c.Body == other.Body
}
