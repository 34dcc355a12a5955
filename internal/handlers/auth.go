package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/b-cal/apiserver/internal/auth"
	"github.com/b-cal/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// AuthHandler serves the session endpoints. Tokens travel in HttpOnly
// cookies only and never appear in response bodies.
type AuthHandler struct {
	auth   *services.AuthService
	users  *services.UserService
	tokens TokenVerifier
	secure bool
	logger *slog.Logger
}

// NewAuthHandler constructs an AuthHandler. secureCookies marks the session
// cookies Secure and should be set in production.
func NewAuthHandler(authService *services.AuthService, userService *services.UserService, tokens TokenVerifier, secureCookies bool, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		auth:   authService,
		users:  userService,
		tokens: tokens,
		secure: secureCookies,
		logger: logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, guards *Guards) {
	r.Post("/signup", handler.Signup)
	r.With(guards.PasswordGuard).Post("/login", handler.Login)
	r.With(guards.RefreshGuard).Post("/refresh", handler.Refresh)
	r.With(guards.AccessGuard).Post("/logout", handler.Logout)
	r.With(guards.AccessGuard).Get("/me", handler.Me)
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password,max=72"`
}

// Signup registers a user and opens a session.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pair, err := h.auth.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Signup successful"})
}

// Login opens a session for the user admitted by PasswordGuard.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.logger, services.ErrUnauthorized)
		return
	}
	pair, err := h.auth.Login(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Login successful"})
}

// Refresh exchanges the refresh token cookie for a new pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	identity, ok := RefreshIdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.logger, services.ErrUnauthorized)
		return
	}
	pair, err := h.auth.RefreshTokens(r.Context(), identity.ID, identity.RefreshToken)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Tokens refreshed"})
}

// Logout ends the session of the caller.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.logger, services.ErrUnauthorized)
		return
	}
	if err := h.auth.Logout(r.Context(), identity.ID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logout successful"})
}

// Me returns the identity of the caller.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.logger, services.ErrUnauthorized)
		return
	}
	me, err := h.users.Me(r.Context(), identity.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, pair auth.TokenPair) {
	http.SetCookie(w, h.cookie(AccessTokenCookie, pair.AccessToken, h.tokens.TTL(auth.AccessKey)))
	http.SetCookie(w, h.cookie(RefreshTokenCookie, pair.RefreshToken, h.tokens.TTL(auth.RefreshKey)))
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := h.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (h *AuthHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	}
}
