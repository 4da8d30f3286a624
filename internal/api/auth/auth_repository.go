package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/go-account-service/internal/api"
)

// DB is the subset of pgxpool.Pool the repository needs. Declared as an
// interface so tests can substitute pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ UserRepo = (*PostgresUserRepo)(nil)

type UserRepo interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	CreateUser(ctx context.Context, email, passwordHash string, name *string) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdatePasswordAndClearResetToken(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetResetToken(ctx context.Context, id uuid.UUID, token string) error
	SetVerificationToken(ctx context.Context, id uuid.UUID, token string) error
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	SetActiveStatus(ctx context.Context, id uuid.UUID, active bool) (*User, error)
	ListAllUsers(ctx context.Context) ([]UserSummary, error)
	DeleteUserByID(ctx context.Context, id uuid.UUID) error
	DeleteUsersByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type PostgresUserRepo struct {
	logger *slog.Logger
	db     DB
}

func NewPostgresUserRepo(db DB, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		db:     db,
	}
}

const userColumns = `id, email, password_hash, name, is_verified, is_active,
       verification_token, reset_token, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.Password, &u.Name, &u.IsVerified, &u.IsActive,
		&u.VerificationToken, &u.ResetToken, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail looks an account up case-insensitively.
func (r *PostgresUserRepo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: query failed: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: query failed: %w", err)
	}
	return user, nil
}

// CreateUser inserts a new account. A duplicate email surfaces as a conflict.
func (r *PostgresUserRepo) CreateUser(ctx context.Context, email, passwordHash string, name *string) (*User, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, name)
         VALUES ($1, $2, $3)
         RETURNING `+userColumns,
		email, passwordHash, name)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, api.ErrConflict
		}
		return nil, fmt.Errorf("create user: insert failed: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update password: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}

// UpdatePasswordAndClearResetToken consumes a reset token in the same write
// that rotates the password, so the token cannot be replayed.
func (r *PostgresUserRepo) UpdatePasswordAndClearResetToken(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $1, reset_token = NULL, updated_at = $2 WHERE id = $3`,
		passwordHash, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update password and clear reset token: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) SetResetToken(ctx context.Context, id uuid.UUID, token string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET reset_token = $1, updated_at = $2 WHERE id = $3`,
		token, time.Now(), id)
	if err != nil {
		return fmt.Errorf("set reset token: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) SetVerificationToken(ctx context.Context, id uuid.UUID, token string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET verification_token = $1, updated_at = $2 WHERE id = $3`,
		token, time.Now(), id)
	if err != nil {
		return fmt.Errorf("set verification token: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET is_verified = TRUE, verification_token = NULL, updated_at = $1 WHERE id = $2`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("mark email verified: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) SetActiveStatus(ctx context.Context, id uuid.UUID, active bool) (*User, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3
         RETURNING `+userColumns,
		active, time.Now(), id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("set active status: db update failed: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) ListAllUsers(ctx context.Context) ([]UserSummary, error) {
	rows, err := r.db.Query(ctx, `SELECT id, email, name, created_at FROM users`)
	if err != nil {
		return nil, fmt.Errorf("list users: query failed: %w", err)
	}
	defer rows.Close()

	var users []UserSummary
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("list users: scan failed: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: rows iteration failed: %w", err)
	}
	return users, nil
}

func (r *PostgresUserRepo) DeleteUserByID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: db delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) DeleteUsersByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete users: db delete failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
