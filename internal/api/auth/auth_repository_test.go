package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-account-service/internal/api"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresUserRepo) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresUserRepo(mock, slog.Default())
}

func userRow(mock pgxmock.PgxPoolIface, u User) *pgxmock.Rows {
	return mock.NewRows([]string{
		"id", "email", "password_hash", "name", "is_verified", "is_active",
		"verification_token", "reset_token", "created_at", "updated_at",
	}).AddRow(
		u.ID, u.Email, u.Password, u.Name, u.IsVerified, u.IsActive,
		u.VerificationToken, u.ResetToken, u.CreatedAt, u.UpdatedAt,
	)
}

func TestGetUserByEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		want := User{
			ID:        uuid.New(),
			Email:     "Test@Example.com",
			Password:  "hash",
			IsActive:  true,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		mock.ExpectQuery("SELECT (.+) FROM users WHERE lower\\(email\\) = lower\\(\\$1\\)").
			WithArgs("test@example.com").
			WillReturnRows(userRow(mock, want))

		got, err := repo.GetUserByEmail(ctx, "test@example.com")

		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Email, got.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectQuery("SELECT (.+) FROM users WHERE lower\\(email\\) = lower\\(\\$1\\)").
			WithArgs("ghost@example.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetUserByEmail(ctx, "ghost@example.com")

		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		want := User{
			ID:        uuid.New(),
			Email:     "new@example.com",
			Password:  "hash",
			IsActive:  true,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("new@example.com", "hash", (*string)(nil)).
			WillReturnRows(userRow(mock, want))

		got, err := repo.CreateUser(ctx, "new@example.com", "hash", nil)

		require.NoError(t, err)
		assert.Equal(t, want.Email, got.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectQuery("INSERT INTO users").
			WithArgs("taken@example.com", "hash", (*string)(nil)).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		_, err := repo.CreateUser(ctx, "taken@example.com", "hash", nil)

		assert.ErrorIs(t, err, api.ErrConflict)
	})
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		id := uuid.New()
		mock.ExpectExec("UPDATE users SET password_hash").
			WithArgs("newhash", pgxmock.AnyArg(), id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdatePassword(ctx, id, "newhash")

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NoRows", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		id := uuid.New()
		mock.ExpectExec("UPDATE users SET password_hash").
			WithArgs("newhash", pgxmock.AnyArg(), id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdatePassword(ctx, id, "newhash")

		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestMarkEmailVerified(t *testing.T) {
	ctx := context.Background()
	mock, repo := newMockRepo(t)

	id := uuid.New()
	mock.ExpectExec("UPDATE users SET is_verified = TRUE, verification_token = NULL").
		WithArgs(pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.MarkEmailVerified(ctx, id)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUsersByIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("DeletesBatch", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
		mock.ExpectExec("DELETE FROM users WHERE id = ANY\\(\\$1\\)").
			WithArgs(ids).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))

		removed, err := repo.DeleteUsersByIDs(ctx, ids)

		require.NoError(t, err)
		assert.Equal(t, int64(3), removed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EmptyInputSkipsQuery", func(t *testing.T) {
		_, repo := newMockRepo(t)

		removed, err := repo.DeleteUsersByIDs(ctx, nil)

		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

func TestListAllUsers(t *testing.T) {
	ctx := context.Background()
	mock, repo := newMockRepo(t)

	a, b := uuid.New(), uuid.New()
	nameA := "Alice"
	created := time.Now().Add(-24 * time.Hour)
	rows := mock.NewRows([]string{"id", "email", "name", "created_at"}).
		AddRow(a, "a@example.com", &nameA, created).
		AddRow(b, "b@example.com", (*string)(nil), created)
	mock.ExpectQuery("SELECT id, email, name, created_at FROM users").WillReturnRows(rows)

	users, err := repo.ListAllUsers(ctx)

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, a, users[0].ID)
	require.NotNil(t, users[0].Name)
	assert.Equal(t, "Alice", *users[0].Name)
	assert.Equal(t, created, users[0].CreatedAt)
	assert.Equal(t, "b@example.com", users[1].Email)
	assert.Nil(t, users[1].Name)
}
