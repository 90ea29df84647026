package shared

import "errors"

// Sentinel errors shared across modules. Handlers match these with errors.Is
// to pick the HTTP status.
var (
	// ErrNotFound marks a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials marks a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing marks a mutating request without a CSRF token.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch marks a CSRF token that fails verification.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
