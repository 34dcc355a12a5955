package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/b-cal/apiserver/internal/auth"
	"github.com/stretchr/testify/require"
)

func TestSignupCreatesSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	pair, userID := f.signup(t, "alice@example.com", "password123!")

	user, err := f.users.GetByID(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotEqual(t, "password123!", user.PasswordHash)
	require.True(t, user.HasSession())

	refresh, err := f.issuer.Verify(pair.RefreshToken, auth.RefreshKey)
	require.NoError(t, err)
	require.Equal(t, userID, refresh.Subject)
	require.Equal(t, []string{EventSignedUp}, f.events.types())
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "alice@example.com", "password123!")

	_, err := f.service.Signup(context.Background(), "alice@example.com", "another-pass1!")
	require.ErrorIs(t, err, ErrDuplicateEmail)
	require.Equal(t, 1, f.users.Len())
}

func TestValidateCredentials(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, userID := f.signup(t, "alice@example.com", "password123!")

	user, ok, err := f.service.ValidateCredentials(ctx, "alice@example.com", "password123!")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, userID, user.ID)

	_, ok, err = f.service.ValidateCredentials(ctx, "alice@example.com", "wrong-pass1!")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = f.service.ValidateCredentials(ctx, "nobody@example.com", "password123!")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoginRotatesRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	signupPair, userID := f.signup(t, "alice@example.com", "password123!")

	user, err := f.users.GetByID(ctx, userID)
	require.NoError(t, err)
	loginPair, err := f.service.Login(ctx, user)
	require.NoError(t, err)

	_, err = f.service.RefreshTokens(ctx, userID, signupPair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)

	_, err = f.service.RefreshTokens(ctx, userID, loginPair.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	pair, userID := f.signup(t, "alice@example.com", "password123!")

	next, err := f.service.RefreshTokens(ctx, userID, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = f.service.RefreshTokens(ctx, userID, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)

	_, err = f.service.RefreshTokens(ctx, userID, next.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshAfterLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	pair, userID := f.signup(t, "alice@example.com", "password123!")

	require.NoError(t, f.service.Logout(ctx, userID))

	user, err := f.users.GetByID(ctx, userID)
	require.NoError(t, err)
	require.False(t, user.HasSession())

	_, err = f.service.RefreshTokens(ctx, userID, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)
}

func TestRefreshUnknownUser(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.service.RefreshTokens(context.Background(), "3f1f8b5e-5b8e-4a59-9d5c-6f0d2c1b7a10", "whatever")
	require.ErrorIs(t, err, ErrSessionRevoked)
}

func TestLogoutUnknownUser(t *testing.T) {
	f := newAuthFixture(t)
	err := f.service.Logout(context.Background(), "3f1f8b5e-5b8e-4a59-9d5c-6f0d2c1b7a10")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionLifecycle(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	signupPair, userID := f.signup(t, "bob@example.com", "password123!")

	user, ok, err := f.service.ValidateCredentials(ctx, "bob@example.com", "password123!")
	require.NoError(t, err)
	require.True(t, ok)
	loginPair, err := f.service.Login(ctx, user)
	require.NoError(t, err)

	refreshed, err := f.service.RefreshTokens(ctx, userID, loginPair.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, userID))

	for _, token := range []string{signupPair.RefreshToken, loginPair.RefreshToken, refreshed.RefreshToken} {
		_, err := f.service.RefreshTokens(ctx, userID, token)
		require.ErrorIs(t, err, ErrSessionRevoked)
	}
	require.Equal(t, []string{EventSignedUp, EventLoggedIn, EventRefreshed, EventLoggedOut}, f.events.types())
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	pair, userID := f.signup(t, "alice@example.com", "password123!")

	const racers = 4
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		revoked  int
		failures []error
	)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.RefreshTokens(ctx, userID, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, ErrSessionRevoked):
				revoked++
			default:
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, failures)
	require.Equal(t, 1, winners)
	require.Equal(t, racers-1, revoked)
}
