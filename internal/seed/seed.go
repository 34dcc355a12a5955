// Package seed resets the database to a small, known data set for local
// development.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/b-cal/apiserver/types"
)

// DefaultPassword is the password of every seeded user.
const DefaultPassword = "password123!"

type UserStore interface {
	Create(ctx context.Context, user types.User) (types.User, error)
	DeleteAll(ctx context.Context) error
}

type EntryStore interface {
	Create(ctx context.Context, entry types.CalendarEntry) (types.CalendarEntry, error)
}

type Hasher interface {
	Hash(plaintext string) (string, error)
}

type entrySeed struct {
	owner   string
	title   string
	start   time.Time
	end     time.Time
	content string
}

// Result counts what Run inserted.
type Result struct {
	Users   int
	Entries int
}

// Run deletes every user (and with them every entry) and inserts the seed
// data set.
func Run(ctx context.Context, users UserStore, entries EntryStore, hasher Hasher) (Result, error) {
	if err := users.DeleteAll(ctx); err != nil {
		return Result{}, fmt.Errorf("reset users: %w", err)
	}

	hashed, err := hasher.Hash(DefaultPassword)
	if err != nil {
		return Result{}, fmt.Errorf("hash password: %w", err)
	}

	ids := make(map[string]string)
	for _, email := range []string{"alice@example.com", "bob@example.com"} {
		user, err := users.Create(ctx, types.User{Email: email, PasswordHash: hashed})
		if err != nil {
			return Result{}, fmt.Errorf("create %s: %w", email, err)
		}
		ids[email] = user.ID
	}

	day := func(month time.Month, d int) time.Time {
		return time.Date(2025, month, d, 0, 0, 0, 0, time.UTC)
	}
	seeds := []entrySeed{
		{owner: "alice@example.com", title: "Team meeting", start: day(time.March, 3).Add(10 * time.Hour), end: day(time.March, 3).Add(11 * time.Hour), content: "Quarterly planning"},
		{owner: "alice@example.com", title: "Vacation", start: day(time.July, 14), end: day(time.July, 25)},
		{owner: "bob@example.com", title: "Dentist", start: day(time.April, 8).Add(15 * time.Hour), end: day(time.April, 8).Add(16 * time.Hour), content: "Annual checkup"},
	}
	for _, s := range seeds {
		entry := types.CalendarEntry{UserID: ids[s.owner], Title: s.title, StartDate: s.start, EndDate: s.end}
		if s.content != "" {
			content := s.content
			entry.Content = &content
		}
		if _, err := entries.Create(ctx, entry); err != nil {
			return Result{}, fmt.Errorf("create entry %q: %w", s.title, err)
		}
	}

	return Result{Users: len(ids), Entries: len(seeds)}, nil
}
