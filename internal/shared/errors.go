package shared

import "errors"

var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates the actor lacks the required permission.
	ErrUnauthorized = errors.New("insufficient permission")
	// ErrInvalidState indicates a transition attempted from a state that does not permit it.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrValidation indicates a missing or malformed mandatory field.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ValidationFieldError names the request field that failed validation.
type ValidationFieldError struct {
	Field string
}

func (e *ValidationFieldError) Error() string {
	return "invalid value for " + e.Field
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationFieldError) Unwrap() error {
	return ErrValidation
}
