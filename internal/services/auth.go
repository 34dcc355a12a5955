package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/b-cal/apiserver/internal/auth"
	"github.com/b-cal/apiserver/internal/store"
	"github.com/b-cal/apiserver/types"
)

// Hasher produces and checks one-way digests.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
	HashToken(token string) (string, error)
	VerifyToken(token, digest string) bool
}

// TokenIssuer mints access/refresh token pairs.
type TokenIssuer interface {
	IssuePair(userID, email string) (auth.TokenPair, error)
}

// AuthService is the session manager: signup, login, refresh and logout.
//
// Every successful signup, login and refresh stores the digest of the newly
// issued refresh token over the previous one, so at most one refresh token
// per user verifies at any time.
type AuthService struct {
	users  UserRepository
	hasher Hasher
	tokens TokenIssuer
	events EventPublisher
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users UserRepository, hasher Hasher, tokens TokenIssuer, events EventPublisher, logger *slog.Logger) *AuthService {
	if events == nil {
		events = NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		events: events,
		logger: logger,
	}
}

// ValidateCredentials returns the user when email and password match. An
// unknown email and a wrong password are indistinguishable: both return
// ok == false with a nil error.
func (s *AuthService) ValidateCredentials(ctx context.Context, email, password string) (types.User, bool, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Spend the same bcrypt work as a real comparison.
			s.hasher.Verify(password, s.dummyDigest())
			return types.User{}, false, nil
		}
		return types.User{}, false, fmt.Errorf("lookup user: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return types.User{}, false, nil
	}
	return user, true, nil
}

// Login issues a token pair for an already validated user and makes its
// refresh token the only live one.
func (s *AuthService) Login(ctx context.Context, user types.User) (auth.TokenPair, error) {
	pair, err := s.rotate(ctx, user)
	if err != nil {
		return auth.TokenPair{}, err
	}
	s.events.Publish(ctx, Event{Type: EventLoggedIn, UserID: user.ID})
	return pair, nil
}

// Signup registers a new user and opens a session for it.
func (s *AuthService) Signup(ctx context.Context, email, password string) (auth.TokenPair, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return auth.TokenPair{}, ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return auth.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{Email: email, PasswordHash: hashed})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return auth.TokenPair{}, ErrDuplicateEmail
		}
		return auth.TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.rotate(ctx, user)
	if err != nil {
		return auth.TokenPair{}, err
	}
	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID)
	s.events.Publish(ctx, Event{Type: EventSignedUp, UserID: user.ID})
	return pair, nil
}

// RefreshTokens exchanges the live refresh token for a new pair. The
// presented token is consumed: using it again fails with ErrSessionRevoked,
// as does any refresh after logout. When two refreshes race on the same
// token only the first to store its digest succeeds.
func (s *AuthService) RefreshTokens(ctx context.Context, userID, presented string) (auth.TokenPair, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.TokenPair{}, ErrSessionRevoked
		}
		return auth.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.HasSession() {
		return auth.TokenPair{}, ErrSessionRevoked
	}
	current := *user.RefreshTokenHash
	if !s.hasher.VerifyToken(presented, current) {
		s.logger.WarnContext(ctx, "stale refresh token presented", "user_id", user.ID)
		return auth.TokenPair{}, ErrSessionRevoked
	}

	pair, next, err := s.issue(user)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if err := s.users.SwapRefreshTokenHash(ctx, user.ID, current, next); err != nil {
		if errors.Is(err, store.ErrStale) {
			s.logger.WarnContext(ctx, "concurrent refresh lost", "user_id", user.ID)
			return auth.TokenPair{}, ErrSessionRevoked
		}
		return auth.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	s.events.Publish(ctx, Event{Type: EventRefreshed, UserID: user.ID})
	return pair, nil
}

// Logout clears the stored refresh digest, invalidating every outstanding
// refresh token of the user.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.users.UpdateRefreshTokenHash(ctx, userID, nil); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("clear refresh token: %w", err)
	}
	s.events.Publish(ctx, Event{Type: EventLoggedOut, UserID: userID})
	return nil
}

func (s *AuthService) rotate(ctx context.Context, user types.User) (auth.TokenPair, error) {
	pair, hashed, err := s.issue(user)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if err := s.users.UpdateRefreshTokenHash(ctx, user.ID, &hashed); err != nil {
		return auth.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}

func (s *AuthService) issue(user types.User) (auth.TokenPair, string, error) {
	pair, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return auth.TokenPair{}, "", fmt.Errorf("issue tokens: %w", err)
	}
	hashed, err := s.hasher.HashToken(pair.RefreshToken)
	if err != nil {
		return auth.TokenPair{}, "", fmt.Errorf("hash refresh token: %w", err)
	}
	return pair, hashed, nil
}

func (s *AuthService) dummyDigest() string {
	s.dummyOnce.Do(func() {
		hashed, err := s.hasher.Hash("bcal-dummy-password")
		if err == nil {
			s.dummyHash = hashed
		}
	})
	return s.dummyHash
}
