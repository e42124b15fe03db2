package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Entity kinds used in NotFoundError.
const (
	KindPost    = "post"
	KindComment = "comment"
)

var (
	// ErrNotFound matches every *NotFoundError through errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrValidation matches every *ValidationError through errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable marks transport level failures of the document store.
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrConcurrentModification is returned when a versioned post save lost a race.
	ErrConcurrentModification = errors.New("post was modified by another operation")
)

// NotFoundError reports a missing post or comment.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// PostNotFound builds the not-found error for a post id.
func PostNotFound(id string) error {
	return &NotFoundError{Kind: KindPost, ID: id}
}

// CommentNotFound builds the not-found error for a comment id.
func CommentNotFound(id string) error {
	return &NotFoundError{Kind: KindComment, ID: id}
}

// ValidationError wraps malformed input. Either Err (from the validator) or
// Field/Reason is set.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	var verrs validator.ValidationErrors
	if errors.As(e.Err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return "invalid input: " + strings.Join(msgs, ", ")
	}
	return "invalid input: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsNotFound reports whether err is a not-found error, optionally of the given kind.
func IsNotFound(err error, kind ...string) bool {
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		return false
	}
	if len(kind) == 0 {
		return true
	}
	for _, k := range kind {
		if nf.Kind == k {
			return true
		}
	}
	return false
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict reports whether err is a lost optimistic-concurrency race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
