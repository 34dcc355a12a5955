package services

import (
	"errors"

	"github.com/b-cal/apiserver/internal/store"
)

var (
	// ErrValidation marks malformed input. It is wrapped with the detail that
	// failed.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized is returned for missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionRevoked is returned when a refresh token is well formed but no
	// longer the live one for its user.
	ErrSessionRevoked = errors.New("access denied")
	// ErrDuplicateEmail is returned by signup for a registered email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrNotFound is returned when a record is absent or owned by someone else.
	ErrNotFound = store.ErrNotFound
	// ErrExportsDisabled is returned when no object storage is configured.
	ErrExportsDisabled = errors.New("exports are not configured")
)
