package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/b-cal/apiserver/types"
	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, refresh_token_hash, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.User{}, ErrNotFound
	}
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// Create inserts a user with a fresh ID. A taken email yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, email, password_hash, refresh_token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.PasswordHash,
		nullString(user.RefreshTokenHash),
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrConflict
		}
		return types.User{}, err
	}
	return user, nil
}

// UpdateRefreshTokenHash overwrites the stored refresh digest. A nil hash
// ends the session.
func (r *UserRepository) UpdateRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	const query = `
		UPDATE users
		SET refresh_token_hash = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, nullString(hash), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// SwapRefreshTokenHash replaces the stored digest only if it still equals
// current. It returns ErrStale when another write got there first.
func (r *UserRepository) SwapRefreshTokenHash(ctx context.Context, id, current, next string) error {
	const query = `
		UPDATE users
		SET refresh_token_hash = $1,
			updated_at = $2
		WHERE id = $3 AND refresh_token_hash = $4`
	result, err := r.db.ExecContext(ctx, query, next, time.Now().UTC(), id, current)
	if err != nil {
		return err
	}
	if err := expectAffected(result); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrStale
		}
		return err
	}
	return nil
}

// DeleteAll removes every user and, through the foreign key, every calendar
// entry. It exists for the seed command.
func (r *UserRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var refresh sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&refresh,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	if refresh.Valid {
		user.RefreshTokenHash = &refresh.String
	}
	return user, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
