package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a quiz session does not exist or was discarded.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionNotSubmitted indicates results were requested before submission.
	ErrSessionNotSubmitted = errors.New("quiz session not submitted")
	// ErrStoreUnavailable indicates the score store could not be reached.
	ErrStoreUnavailable = errors.New("score store unavailable")
	// ErrPoolUnavailable indicates the question bank could not be loaded.
	ErrPoolUnavailable = errors.New("question pool unavailable")
)

// ValidationError reports a rejected input parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
