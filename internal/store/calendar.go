package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/b-cal/apiserver/types"
	"github.com/google/uuid"
)

const calendarColumns = `id, user_id, title, start_date, end_date, content, created_at, updated_at`

// CalendarRepository handles persistence for calendar entries. Every method
// is scoped by owner; an entry of another user is reported as ErrNotFound.
type CalendarRepository struct {
	db *sql.DB
}

func NewCalendarRepository(db *sql.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

func (r *CalendarRepository) List(ctx context.Context, userID string, filter types.CalendarFilter) ([]types.CalendarEntry, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []types.CalendarEntry{}, nil
	}

	conditions := []string{"user_id = $1"}
	args := []any{userID}
	if filter.StartDate != nil {
		args = append(args, filter.StartDate.UTC())
		conditions = append(conditions, fmt.Sprintf("end_date >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, filter.EndDate.UTC())
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d", len(args)))
	}

	query := `SELECT ` + calendarColumns + ` FROM calendar_entries WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY start_date, id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []types.CalendarEntry{}
	for rows.Next() {
		entry, err := scanCalendarEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *CalendarRepository) Get(ctx context.Context, userID, id string) (types.CalendarEntry, error) {
	if !validIDs(userID, id) {
		return types.CalendarEntry{}, ErrNotFound
	}
	const query = `SELECT ` + calendarColumns + ` FROM calendar_entries WHERE user_id = $1 AND id = $2`
	entry, err := scanCalendarEntry(r.db.QueryRowContext(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.CalendarEntry{}, ErrNotFound
		}
		return types.CalendarEntry{}, err
	}
	return entry, nil
}

func (r *CalendarRepository) Create(ctx context.Context, entry types.CalendarEntry) (types.CalendarEntry, error) {
	now := time.Now().UTC()
	entry.ID = uuid.NewString()
	entry.StartDate = entry.StartDate.UTC()
	entry.EndDate = entry.EndDate.UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	const query = `
		INSERT INTO calendar_entries (id, user_id, title, start_date, end_date, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.UserID,
		entry.Title,
		entry.StartDate,
		entry.EndDate,
		nullString(entry.Content),
		entry.CreatedAt,
		entry.UpdatedAt,
	); err != nil {
		return types.CalendarEntry{}, err
	}
	return entry, nil
}

// Update stores every mutable field of entry. The owner is taken from
// entry.UserID and never changes.
func (r *CalendarRepository) Update(ctx context.Context, entry types.CalendarEntry) (types.CalendarEntry, error) {
	if !validIDs(entry.UserID, entry.ID) {
		return types.CalendarEntry{}, ErrNotFound
	}
	entry.StartDate = entry.StartDate.UTC()
	entry.EndDate = entry.EndDate.UTC()
	entry.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE calendar_entries
		SET title = $1,
			start_date = $2,
			end_date = $3,
			content = $4,
			updated_at = $5
		WHERE user_id = $6 AND id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		entry.Title,
		entry.StartDate,
		entry.EndDate,
		nullString(entry.Content),
		entry.UpdatedAt,
		entry.UserID,
		entry.ID,
	)
	if err != nil {
		return types.CalendarEntry{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.CalendarEntry{}, err
	}
	return entry, nil
}

func (r *CalendarRepository) Delete(ctx context.Context, userID, id string) error {
	if !validIDs(userID, id) {
		return ErrNotFound
	}
	const query = `DELETE FROM calendar_entries WHERE user_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, userID, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func scanCalendarEntry(row rowScanner) (types.CalendarEntry, error) {
	var entry types.CalendarEntry
	var content sql.NullString
	if err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Title,
		&entry.StartDate,
		&entry.EndDate,
		&content,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return types.CalendarEntry{}, err
	}
	if content.Valid {
		entry.Content = &content.String
	}
	return entry, nil
}

// validIDs guards uuid columns: Postgres rejects malformed uuid text with an
// error, which callers must see as a plain miss.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}
