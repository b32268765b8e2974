package posts

import "errors"

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned by Get only. Delete and the Mark* transitions
	// treat unknown ids as no-ops.
	ErrNotFound = errors.New("post not found")
)

// ValidationError rejects a submission before anything is persisted.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
