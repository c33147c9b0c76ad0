package scheduler

import (
	"errors"
	"fmt"
)

// Validation errors are rejected before any I/O and never reach the repository.
var (
	ErrStartNotBeforeEnd = errors.New("session start must be before end")
	ErrMissingClient     = errors.New("a client must be selected")
	ErrInvalidRepeat     = errors.New("repeat weeks must be at least 1")
)

// ValidationError marks a request rejected before any repository call.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// RepositoryError wraps a failure surfaced by the session repository.
// Op is the repository operation that failed ("fetch", "create", "update",
// "delete").
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

func validationErr(err error) error {
	return &ValidationError{Err: err}
}

func repoErr(op string, err error) error {
	return &RepositoryError{Op: op, Err: err}
}

// IsValidation reports whether err is a pre-I/O validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRepository reports whether err originated in the session repository.
func IsRepository(err error) bool {
	var re *RepositoryError
	return errors.As(err, &re)
}
