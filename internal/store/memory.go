package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/b-cal/apiserver/types"
	"github.com/google/uuid"
)

// MemoryUserStore is a thread-safe in-memory user store with the same
// contract as UserRepository. It backs tests and local runs without Postgres.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*types.User
	byEmail map[string]string

	// entries is set when the store is paired with a MemoryCalendarStore so
	// that DeleteAll cascades like the foreign key does.
	entries *MemoryCalendarStore
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*types.User),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryUserStore) GetByID(_ context.Context, id string) (types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byID[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryUserStore) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return cloneUser(m.byID[id]), nil
}

func (m *MemoryUserStore) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[user.Email]; exists {
		return types.User{}, ErrConflict
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := cloneUser(&user)
	m.byID[user.ID] = &stored
	m.byEmail[user.Email] = user.ID
	return cloneUser(&stored), nil
}

func (m *MemoryUserStore) UpdateRefreshTokenHash(_ context.Context, id string, hash *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.RefreshTokenHash = cloneString(hash)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryUserStore) SwapRefreshTokenHash(_ context.Context, id, current, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok || u.RefreshTokenHash == nil || *u.RefreshTokenHash != current {
		return ErrStale
	}
	u.RefreshTokenHash = &next
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryUserStore) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	m.byID = make(map[string]*types.User)
	m.byEmail = make(map[string]string)
	m.mu.Unlock()

	if m.entries != nil {
		m.entries.deleteAll()
	}
	return nil
}

// Len returns the number of stored users.
func (m *MemoryUserStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// MemoryCalendarStore is the in-memory counterpart of CalendarRepository.
type MemoryCalendarStore struct {
	mu      sync.RWMutex
	entries map[string]types.CalendarEntry
}

// NewMemoryCalendarStore constructs an empty store. When users is non-nil,
// clearing the users also clears the entries.
func NewMemoryCalendarStore(users *MemoryUserStore) *MemoryCalendarStore {
	s := &MemoryCalendarStore{entries: make(map[string]types.CalendarEntry)}
	if users != nil {
		users.entries = s
	}
	return s
}

func (m *MemoryCalendarStore) List(_ context.Context, userID string, filter types.CalendarFilter) ([]types.CalendarEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []types.CalendarEntry{}
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if filter.StartDate != nil && e.EndDate.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && e.StartDate.After(*filter.EndDate) {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

func (m *MemoryCalendarStore) Get(_ context.Context, userID, id string) (types.CalendarEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return types.CalendarEntry{}, ErrNotFound
	}
	return cloneEntry(e), nil
}

func (m *MemoryCalendarStore) Create(_ context.Context, entry types.CalendarEntry) (types.CalendarEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	entry.ID = uuid.NewString()
	entry.StartDate = entry.StartDate.UTC()
	entry.EndDate = entry.EndDate.UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	m.entries[entry.ID] = cloneEntry(entry)
	return cloneEntry(entry), nil
}

func (m *MemoryCalendarStore) Update(_ context.Context, entry types.CalendarEntry) (types.CalendarEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.entries[entry.ID]
	if !ok || existing.UserID != entry.UserID {
		return types.CalendarEntry{}, ErrNotFound
	}
	entry.StartDate = entry.StartDate.UTC()
	entry.EndDate = entry.EndDate.UTC()
	entry.CreatedAt = existing.CreatedAt
	entry.UpdatedAt = time.Now().UTC()
	m.entries[entry.ID] = cloneEntry(entry)
	return cloneEntry(entry), nil
}

func (m *MemoryCalendarStore) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *MemoryCalendarStore) deleteAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]types.CalendarEntry)
}

func cloneUser(u *types.User) types.User {
	out := *u
	out.RefreshTokenHash = cloneString(u.RefreshTokenHash)
	return out
}

func cloneEntry(e types.CalendarEntry) types.CalendarEntry {
	e.Content = cloneString(e.Content)
	return e
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
