package models

import "errors"

var (
	// ErrValidation marks malformed or missing input. Concrete failures are
	// returned as *ValidationError carrying a human-readable message.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when the username is already taken.
	ErrConflict = errors.New("username already exists")

	// ErrAuth is returned both for an unknown username and for a wrong PIN.
	ErrAuth = errors.New("invalid username or PIN")

	// ErrStorage wraps any failure of the underlying store.
	ErrStorage = errors.New("storage unavailable")

	// ErrForbidden is returned when a caller may not touch the requested resource.
	ErrForbidden = errors.New("forbidden")

	// ErrUnknownUser is returned by storages when tabs are written for a user
	// that does not exist.
	ErrUnknownUser = errors.New("unknown user")
)

// ValidationError is an ErrValidation with a message meant for the end user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrValidation) hold for every *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}
