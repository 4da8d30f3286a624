package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/go-account-service/internal/api"
)

// UpstreamRepo reads the profile snapshot from the upstream application
// database. Access is read only.
type UpstreamRepo interface {
	ListProfileEmails(ctx context.Context) (map[string]struct{}, error)
}

var _ UpstreamRepo = (*PostgresUpstreamRepo)(nil)

type PostgresUpstreamRepo struct {
	logger *slog.Logger
	db     DB
}

// DB mirrors the query subset of pgxpool.Pool, kept narrow for pgxmock.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewPostgresUpstreamRepo(db DB, logger *slog.Logger) *PostgresUpstreamRepo {
	return &PostgresUpstreamRepo{
		logger: logger,
		db:     db,
	}
}

// ListProfileEmails returns the lowercased set of every email that still has
// a profile upstream. Any failure is surfaced as an upstream error so the
// caller aborts reconciliation rather than treating users as orphaned.
func (r *PostgresUpstreamRepo) ListProfileEmails(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx, `SELECT email FROM profiles`)
	if err != nil {
		r.logger.ErrorContext(ctx, "Upstream profile query failed", slog.Any("error", err))
		return nil, api.NewError(api.ErrUpstream, "Failed to connect to API service database")
	}
	defer rows.Close()

	emails := make(map[string]struct{})
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("list profile emails: scan failed: %w", err)
		}
		emails[strings.ToLower(email)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Upstream profile rows failed", slog.Any("error", err))
		return nil, api.NewError(api.ErrUpstream, "Failed to connect to API service database")
	}
	return emails, nil
}
