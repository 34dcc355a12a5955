package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/b-cal/apiserver/internal/auth"
	"github.com/b-cal/apiserver/internal/services"
	"github.com/b-cal/apiserver/types"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

type contextKey string

const (
	userContextKey    contextKey = "user"
	identityKey       contextKey = "identity"
	refreshContextKey contextKey = "refresh"
)

// CredentialsValidator checks an email/password pair.
type CredentialsValidator interface {
	ValidateCredentials(ctx context.Context, email, password string) (types.User, bool, error)
}

// TokenVerifier verifies signed tokens of either key class.
type TokenVerifier interface {
	Verify(token string, class auth.KeyClass) (auth.Claims, error)
	TTL(class auth.KeyClass) time.Duration
}

// Guards authenticate requests before they reach a handler. Each guard wraps
// a resolver that derives an identity from the request alone and stores it
// in the request context.
type Guards struct {
	credentials CredentialsValidator
	tokens      TokenVerifier
	logger      *slog.Logger
}

func NewGuards(credentials CredentialsValidator, tokens TokenVerifier, logger *slog.Logger) *Guards {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guards{credentials: credentials, tokens: tokens, logger: logger}
}

// PasswordGuard admits requests whose JSON body carries valid credentials.
func (g *Guards) PasswordGuard(next http.Handler) http.Handler {
	return guard(g.logger, userContextKey, g.resolvePassword)(next)
}

// AccessGuard admits requests carrying a valid access token cookie.
func (g *Guards) AccessGuard(next http.Handler) http.Handler {
	return guard(g.logger, identityKey, g.resolveAccess)(next)
}

// RefreshGuard admits requests carrying a valid refresh token cookie. The raw
// token travels on so the session manager can compare it with the stored
// digest.
func (g *Guards) RefreshGuard(next http.Handler) http.Handler {
	return guard(g.logger, refreshContextKey, g.resolveRefresh)(next)
}

func guard[T any](logger *slog.Logger, key contextKey, resolve func(*http.Request) (T, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value, err := resolve(r)
			if err != nil {
				writeServiceError(w, r, logger, err)
				return
			}
			ctx := context.WithValue(r.Context(), key, value)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (g *Guards) resolvePassword(r *http.Request) (types.User, error) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		return types.User{}, err
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return types.User{}, services.ErrUnauthorized
	}
	user, ok, err := g.credentials.ValidateCredentials(r.Context(), email, req.Password)
	if err != nil {
		return types.User{}, err
	}
	if !ok {
		return types.User{}, services.ErrUnauthorized
	}
	return user, nil
}

func (g *Guards) resolveAccess(r *http.Request) (types.Identity, error) {
	claims, _, err := g.verifyCookie(r, AccessTokenCookie, auth.AccessKey)
	if err != nil {
		return types.Identity{}, err
	}
	return types.Identity{ID: claims.Subject, Email: claims.Email}, nil
}

func (g *Guards) resolveRefresh(r *http.Request) (types.RefreshIdentity, error) {
	claims, token, err := g.verifyCookie(r, RefreshTokenCookie, auth.RefreshKey)
	if err != nil {
		return types.RefreshIdentity{}, err
	}
	return types.RefreshIdentity{
		Identity:     types.Identity{ID: claims.Subject, Email: claims.Email},
		RefreshToken: token,
	}, nil
}

func (g *Guards) verifyCookie(r *http.Request, name string, class auth.KeyClass) (auth.Claims, string, error) {
	cookie, err := r.Cookie(name)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return auth.Claims{}, "", services.ErrUnauthorized
	}
	claims, err := g.tokens.Verify(cookie.Value, class)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			g.logger.DebugContext(r.Context(), "token rejected", "class", class.String(), "err", err)
			return auth.Claims{}, "", services.ErrUnauthorized
		}
		return auth.Claims{}, "", fmt.Errorf("verify %s token: %w", class, err)
	}
	return claims, cookie.Value, nil
}

// UserFromContext returns the user admitted by PasswordGuard.
func UserFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(userContextKey).(types.User)
	return user, ok
}

// IdentityFromContext returns the identity admitted by AccessGuard.
func IdentityFromContext(ctx context.Context) (types.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(types.Identity)
	return identity, ok
}

// RefreshIdentityFromContext returns the identity admitted by RefreshGuard.
func RefreshIdentityFromContext(ctx context.Context) (types.RefreshIdentity, bool) {
	identity, ok := ctx.Value(refreshContextKey).(types.RefreshIdentity)
	return identity, ok
}
