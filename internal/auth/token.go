package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// ErrInvalidToken is returned for tokens that are malformed, expired, or
// signed with another key.
var ErrInvalidToken = errors.New("invalid token")

// KeyClass selects which secret signs and verifies a token.
type KeyClass int

const (
	AccessKey KeyClass = iota
	RefreshKey
)

func (k KeyClass) String() string {
	switch k {
	case AccessKey:
		return "access"
	case RefreshKey:
		return "refresh"
	default:
		return fmt.Sprintf("KeyClass(%d)", int(k))
	}
}

// Claims identify the token holder. Subject carries the user ID.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenIssuer mints and verifies HS256 tokens for both key classes.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer constructs an issuer. Non-positive TTLs fall back to the
// defaults.
func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// TTL returns the lifetime of tokens of the given class.
func (i *TokenIssuer) TTL(class KeyClass) time.Duration {
	if class == RefreshKey {
		return i.refreshTTL
	}
	return i.accessTTL
}

func (i *TokenIssuer) IssueAccessToken(userID, email string) (string, error) {
	return i.issue(AccessKey, userID, email)
}

func (i *TokenIssuer) IssueRefreshToken(userID, email string) (string, error) {
	return i.issue(RefreshKey, userID, email)
}

// IssuePair mints a fresh access and refresh token for the same identity.
func (i *TokenIssuer) IssuePair(userID, email string) (TokenPair, error) {
	access, err := i.IssueAccessToken(userID, email)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.IssueRefreshToken(userID, email)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature and expiry against the secret of class and returns
// the claims.
func (i *TokenIssuer) Verify(tokenString string, class KeyClass) (Claims, error) {
	secret := i.secret(class)
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

func (i *TokenIssuer) issue(class KeyClass, userID, email string) (string, error) {
	now := i.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.TTL(class))),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret(class))
}

func (i *TokenIssuer) secret(class KeyClass) []byte {
	if class == RefreshKey {
		return i.refreshSecret
	}
	return i.accessSecret
}
