package services

import "errors"

// Auth service errors
var (
	ErrMissingCredentials = errors.New("login and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrLoginUnavailable   = errors.New("login service unavailable")

	// ErrSessionInvalid is returned when a valid token names a user that no
	// longer exists or was deactivated.
	ErrSessionInvalid = errors.New("session is no longer valid")
)

