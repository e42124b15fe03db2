package models

import "github.com/go-playground/validator/v10"

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// Validate checks the input before any store interaction.
func (in CommentInput) Validate() error {
	return validateStruct(in)
}

// Validate checks the patch. An empty patch is rejected.
func (p CommentPatch) Validate() error {
	if p.Name == nil && p.Body == nil {
		return &ValidationError{Field: "patch", Reason: "at least one of name or body is required"}
	}
	return validateStruct(p)
}

// Validate checks the post input.
func (in PostInput) Validate() error {
	return validateStruct(in)
}
