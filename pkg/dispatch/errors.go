package dispatch

import (
	"context"
	"errors"
	"fmt"
)

// TransientError marks a dispatch failure the executor may retry. Anything
// not wrapped in it is treated as permanent.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient dispatch failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err so the executor schedules a retry instead of
// failing the execution.
func NewTransientError(err error) error {
	if err == nil {
		return nil
	}

	return &TransientError{Err: err}
}

// IsTransient reports whether err may succeed on a later attempt. Context
// deadlines count as transient since the collaborator may simply be slow.
func IsTransient(err error) bool {
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
