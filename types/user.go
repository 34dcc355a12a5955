package types

import "time"

// User represents an account in the system.
// It contains identity, credential digests, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Email is the user's login address. It is unique and compared exactly
	// as stored.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// RefreshTokenHash is the digest of the only refresh token that may
	// currently be exchanged for a new token pair. Nil means the user has no
	// active session.
	RefreshTokenHash *string `json:"-" db:"refresh_token_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// HasSession reports whether a refresh token is currently live for the user.
func (u User) HasSession() bool {
	return u.RefreshTokenHash != nil && *u.RefreshTokenHash != ""
}

// Identity is the verified caller attached to a request by the access guard.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// RefreshIdentity is the verified caller attached by the refresh guard. It
// carries the raw token so the session can be re-checked against the stored
// digest.
type RefreshIdentity struct {
	Identity
	RefreshToken string `json:"-"`
}
