package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/b-cal/apiserver/types"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserStoreUniqueEmail(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()

	_, err := s.Create(ctx, types.User{Email: "alice@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	_, err = s.Create(ctx, types.User{Email: "alice@example.com", PasswordHash: "h"})
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, 1, s.Len())

	_, err = s.Create(ctx, types.User{Email: "Alice@example.com", PasswordHash: "h"})
	require.NoError(t, err)
}

func TestMemoryUserStoreRefreshHash(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	u, err := s.Create(ctx, types.User{Email: "alice@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	hash := "first"
	require.NoError(t, s.UpdateRefreshTokenHash(ctx, u.ID, &hash))
	hash = "mutated-after-store"

	got, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "first", *got.RefreshTokenHash)

	require.NoError(t, s.SwapRefreshTokenHash(ctx, u.ID, "first", "second"))
	require.ErrorIs(t, s.SwapRefreshTokenHash(ctx, u.ID, "first", "third"), ErrStale)

	require.NoError(t, s.UpdateRefreshTokenHash(ctx, u.ID, nil))
	require.ErrorIs(t, s.SwapRefreshTokenHash(ctx, u.ID, "second", "third"), ErrStale)
	require.ErrorIs(t, s.UpdateRefreshTokenHash(ctx, "missing", nil), ErrNotFound)
}

func TestMemoryUserStoreSwapIsExclusive(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	u, err := s.Create(ctx, types.User{Email: "alice@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	hash := "live"
	require.NoError(t, s.UpdateRefreshTokenHash(ctx, u.ID, &hash))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.SwapRefreshTokenHash(ctx, u.ID, "live", "next") == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestMemoryCalendarStoreScoping(t *testing.T) {
	users := NewMemoryUserStore()
	s := NewMemoryCalendarStore(users)
	ctx := context.Background()
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	entry, err := s.Create(ctx, types.CalendarEntry{UserID: "alice", Title: "a", StartDate: start, EndDate: start.Add(time.Hour)})
	require.NoError(t, err)

	_, err = s.Get(ctx, "bob", entry.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Update(ctx, types.CalendarEntry{ID: entry.ID, UserID: "bob", Title: "x", StartDate: start, EndDate: start})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, "bob", entry.ID), ErrNotFound)

	got, err := s.Get(ctx, "alice", entry.ID)
	require.NoError(t, err)
	require.Equal(t, "a", got.Title)

	require.NoError(t, users.DeleteAll(ctx))
	_, err = s.Get(ctx, "alice", entry.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCalendarStoreListFilter(t *testing.T) {
	s := NewMemoryCalendarStore(nil)
	ctx := context.Background()
	jan := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)

	_, err := s.Create(ctx, types.CalendarEntry{UserID: "alice", Title: "February", StartDate: feb, EndDate: feb.Add(time.Hour)})
	require.NoError(t, err)
	_, err = s.Create(ctx, types.CalendarEntry{UserID: "alice", Title: "January", StartDate: jan, EndDate: jan.Add(time.Hour)})
	require.NoError(t, err)
	_, err = s.Create(ctx, types.CalendarEntry{UserID: "bob", Title: "Other", StartDate: jan, EndDate: jan.Add(time.Hour)})
	require.NoError(t, err)

	all, err := s.List(ctx, "alice", types.CalendarFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "January", all[0].Title)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	inJanuary, err := s.List(ctx, "alice", types.CalendarFilter{StartDate: &from, EndDate: &to})
	require.NoError(t, err)
	require.Len(t, inJanuary, 1)
	require.Equal(t, "January", inJanuary[0].Title)

	later := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	none, err := s.List(ctx, "alice", types.CalendarFilter{StartDate: &later})
	require.NoError(t, err)
	require.Empty(t, none)
}
