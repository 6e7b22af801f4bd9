package auth

import "errors"

var (
	// ErrUsernameExists indicates a duplicate username.
	ErrUsernameExists = errors.New("username already exists")
	// ErrEmailExists indicates a duplicate email address.
	ErrEmailExists = errors.New("email already exists")
)

// Client-facing messages. Unauthorized causes are never distinguished.
const (
	msgInvalidCredentials = "invalid credentials"
	msgAccountDisabled    = "account disabled"
	msgTokenExpired       = "token expired"
	msgTokenInvalid       = "invalid token"
	msgTokenTypeMismatch  = "token type mismatch"
)
