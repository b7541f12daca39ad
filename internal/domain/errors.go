package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity does not exist or is not
	// visible to the caller
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an entity violates a uniqueness rule
	ErrConflict = errors.New("already exists")

	// ErrInvalidCredentials is returned for an unknown user or wrong password
	ErrInvalidCredentials = errors.New("wrong password or user does not exist")

	// ErrSessionInvalid is returned for a missing, unknown or expired session
	ErrSessionInvalid = errors.New("session invalid or expired")
)

// ValidationError reports a field that failed input validation
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
