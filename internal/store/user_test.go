package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/b-cal/apiserver/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

const testUserID = "6f1c2a9e-3b7d-4c55-9a1e-2d8f0b4c7e11"

func TestUserRepositoryGetByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "refresh_token_hash", "created_at", "updated_at"}).
		AddRow(testUserID, "alice@example.com", "pw-hash", "rt-hash", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, testUserID, user.ID)
	require.Equal(t, "pw-hash", user.PasswordHash)
	require.NotNil(t, user.RefreshTokenHash)
	require.Equal(t, "rt-hash", *user.RefreshTokenHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryGetByEmailNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepositoryGetByIDNullRefresh(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "refresh_token_hash", "created_at", "updated_at"}).
		AddRow(testUserID, "alice@example.com", "pw-hash", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(testUserID).
		WillReturnRows(rows)

	user, err := repo.GetByID(context.Background(), testUserID)
	require.NoError(t, err)
	require.Nil(t, user.RefreshTokenHash)
	require.False(t, user.HasSession())
}

func TestUserRepositoryGetByIDMalformed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "alice@example.com", "pw-hash", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := repo.Create(context.Background(), types.User{Email: "alice@example.com", PasswordHash: "pw-hash"})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.False(t, user.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	_, err := repo.Create(context.Background(), types.User{Email: "alice@example.com", PasswordHash: "pw-hash"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestUserRepositoryUpdateRefreshTokenHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	hash := "rt-hash"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs("rt-hash", sqlmock.AnyArg(), testUserID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs(nil, sqlmock.AnyArg(), testUserID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateRefreshTokenHash(context.Background(), testUserID, &hash))
	require.ErrorIs(t, repo.UpdateRefreshTokenHash(context.Background(), testUserID, nil), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositorySwapRefreshTokenHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $3 AND refresh_token_hash = $4")).
		WithArgs("new", sqlmock.AnyArg(), testUserID, "old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $3 AND refresh_token_hash = $4")).
		WithArgs("newer", sqlmock.AnyArg(), testUserID, "old").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SwapRefreshTokenHash(context.Background(), testUserID, "old", "new"))
	require.ErrorIs(t, repo.SwapRefreshTokenHash(context.Background(), testUserID, "old", "newer"), ErrStale)
	require.NoError(t, mock.ExpectationsWereMet())
}
