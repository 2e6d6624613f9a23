package journey

import "errors"

// ErrValidation marks a journey definition or graph that cannot be published
// or saved as-is. Callers map it to a client error.
var ErrValidation = errors.New("journey validation failed")

// ErrConflict marks a lifecycle transition the journey's current status does
// not allow, such as pausing a draft or deleting a published journey.
var ErrConflict = errors.New("journey state conflict")

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}
