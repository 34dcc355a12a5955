package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)
}

func TestIssueAndVerify(t *testing.T) {
	issuer := newTestIssuer()

	pair, err := issuer.IssuePair("user-1", "alice@example.com")
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := issuer.Verify(pair.AccessToken, AccessKey)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "alice@example.com", claims.Email)

	claims, err = issuer.Verify(pair.RefreshToken, RefreshKey)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestVerifyRejectsOtherKeyClass(t *testing.T) {
	issuer := newTestIssuer()
	pair, err := issuer.IssuePair("user-1", "alice@example.com")
	require.NoError(t, err)

	_, err = issuer.Verify(pair.AccessToken, RefreshKey)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = issuer.Verify(pair.RefreshToken, AccessKey)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := newTestIssuer()
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := issuer.IssueAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(token, AccessKey)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	issuer := newTestIssuer()
	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := issuer.Verify(token, AccessKey)
		require.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	issuer := newTestIssuer()
	token, err := issuer.IssueAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)

	forged := NewTokenIssuer("other-secret", "refresh-secret", time.Hour, time.Hour)
	forgedToken, err := forged.IssueAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)

	_, err = issuer.Verify(forgedToken, AccessKey)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = issuer.Verify(token[:len(token)-2], AccessKey)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	issuer := newTestIssuer()
	claims := Claims{
		Email: "alice@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	_, err = issuer.Verify(token, AccessKey)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestPairsAreUnique(t *testing.T) {
	issuer := newTestIssuer()
	first, err := issuer.IssuePair("user-1", "alice@example.com")
	require.NoError(t, err)
	second, err := issuer.IssuePair("user-1", "alice@example.com")
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
}

func TestDefaultTTLs(t *testing.T) {
	issuer := NewTokenIssuer("a", "r", 0, -1)
	require.Equal(t, DefaultAccessTokenTTL, issuer.TTL(AccessKey))
	require.Equal(t, DefaultRefreshTokenTTL, issuer.TTL(RefreshKey))
	require.Equal(t, "refresh", RefreshKey.String())
}
