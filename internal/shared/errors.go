package shared

import "errors"

var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a request carrying values outside the accepted vocabulary.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the operation clashes with the current state of a record.
	ErrConflict = errors.New("conflict")
	// ErrPermission indicates the actor is not allowed to perform the operation.
	ErrPermission = errors.New("permission denied")
	// ErrInvariant indicates an internal consistency rule was violated.
	ErrInvariant = errors.New("invariant violation")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
