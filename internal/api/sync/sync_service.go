package sync

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-account-service/app/observability/metrics"
	"github.com/FACorreiaa/go-account-service/internal/api/auth"
)

// LocalUserStore is the slice of the auth repository reconciliation needs.
type LocalUserStore interface {
	ListAllUsers(ctx context.Context) ([]auth.UserSummary, error)
	DeleteUsersByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// PreviewStats counts both sides of a dry run.
type PreviewStats struct {
	APIServiceUsers       int `json:"apiServiceUsers"`
	AuthServiceUsers      int `json:"authServiceUsers"`
	OrphanedUsersToRemove int `json:"orphanedUsersToRemove"`
}

// PreviewResult reports what a reconciliation run would remove.
type PreviewResult struct {
	Stats         PreviewStats       `json:"stats"`
	OrphanedUsers []auth.UserSummary `json:"orphanedUsers"`
}

// ApplyStats counts both sides of a destructive run.
type ApplyStats struct {
	APIServiceUsers        int `json:"apiServiceUsers"`
	AuthServiceUsersBefore int `json:"authServiceUsersBefore"`
	OrphanedUsersRemoved   int `json:"orphanedUsersRemoved"`
	AuthServiceUsersAfter  int `json:"authServiceUsersAfter"`
}

// ApplyResult reports what a reconciliation run removed.
type ApplyResult struct {
	Stats        ApplyStats         `json:"stats"`
	RemovedUsers []auth.UserSummary `json:"removedUsers"`
}

type Service struct {
	logger   *slog.Logger
	local    LocalUserStore
	upstream UpstreamRepo
}

func NewService(local LocalUserStore, upstream UpstreamRepo, logger *slog.Logger) *Service {
	return &Service{
		logger:   logger,
		local:    local,
		upstream: upstream,
	}
}

type snapshot struct {
	upstreamEmails map[string]struct{}
	localUsers     []auth.UserSummary
}

// fetchSnapshot loads both sides concurrently. Either side failing aborts
// the whole run.
func (s *Service) fetchSnapshot(ctx context.Context) (*snapshot, error) {
	var snap snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		emails, err := s.upstream.ListProfileEmails(gctx)
		if err != nil {
			return err
		}
		snap.upstreamEmails = emails
		return nil
	})
	g.Go(func() error {
		users, err := s.local.ListAllUsers(gctx)
		if err != nil {
			return err
		}
		snap.localUsers = users
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// orphans returns the local users with no upstream profile, excluding the
// protected set. Output is sorted so repeated runs over the same state
// produce identical reports.
func orphans(snap *snapshot, protected map[string]struct{}) []auth.UserSummary {
	out := make([]auth.UserSummary, 0, len(snap.localUsers))
	for _, u := range snap.localUsers {
		email := strings.ToLower(u.Email)
		if _, ok := snap.upstreamEmails[email]; ok {
			continue
		}
		if _, ok := protected[email]; ok {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})
	return out
}

func protectedSet(emails []string) map[string]struct{} {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}

// Preview computes the orphan set without deleting anything.
func (s *Service) Preview(ctx context.Context, protectedEmails []string) (*PreviewResult, error) {
	snap, err := s.fetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	orphaned := orphans(snap, protectedSet(protectedEmails))

	return &PreviewResult{
		Stats: PreviewStats{
			APIServiceUsers:       len(snap.upstreamEmails),
			AuthServiceUsers:      len(snap.localUsers),
			OrphanedUsersToRemove: len(orphaned),
		},
		OrphanedUsers: orphaned,
	}, nil
}

// Apply removes every orphaned account and reports before and after counts.
func (s *Service) Apply(ctx context.Context, protectedEmails []string) (*ApplyResult, error) {
	snap, err := s.fetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	orphaned := orphans(snap, protectedSet(protectedEmails))
	ids := make([]uuid.UUID, 0, len(orphaned))
	for _, u := range orphaned {
		ids = append(ids, u.ID)
	}

	removed := int64(0)
	if len(ids) > 0 {
		removed, err = s.local.DeleteUsersByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	metrics.Get().SyncOrphansRemovedTotal.Add(ctx, removed)
	s.logger.InfoContext(ctx, "Orphan reconciliation applied",
		slog.Int("orphans", len(ids)), slog.Int64("removed", removed))

	return &ApplyResult{
		Stats: ApplyStats{
			APIServiceUsers:        len(snap.upstreamEmails),
			AuthServiceUsersBefore: len(snap.localUsers),
			OrphanedUsersRemoved:   int(removed),
			AuthServiceUsersAfter:  len(snap.localUsers) - int(removed),
		},
		RemovedUsers: orphaned,
	}, nil
}
