package services

import (
	"context"
	"sync"
	"testing"

	"github.com/b-cal/apiserver/internal/auth"
	"github.com/b-cal/apiserver/internal/store"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "access-secret-for-tests"
	testRefreshSecret = "refresh-secret-for-tests"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type authFixture struct {
	users   *store.MemoryUserStore
	entries *store.MemoryCalendarStore
	issuer  *auth.TokenIssuer
	events  *recordingPublisher
	service *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	users := store.NewMemoryUserStore()
	events := &recordingPublisher{}
	issuer := auth.NewTokenIssuer(testAccessSecret, testRefreshSecret, 0, 0)
	return &authFixture{
		users:   users,
		entries: store.NewMemoryCalendarStore(users),
		issuer:  issuer,
		events:  events,
		service: NewAuthService(users, auth.NewBcryptHasher(), issuer, events, nil),
	}
}

func (f *authFixture) signup(t *testing.T, email, password string) (auth.TokenPair, string) {
	t.Helper()
	pair, err := f.service.Signup(context.Background(), email, password)
	require.NoError(t, err)
	claims, err := f.issuer.Verify(pair.AccessToken, auth.AccessKey)
	require.NoError(t, err)
	return pair, claims.Subject
}
