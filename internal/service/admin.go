package service

import (
	"context"
	"log/slog"

	"github.com/crtiers/crtiers/internal/cache"
	"github.com/crtiers/crtiers/internal/changelog"
	"github.com/crtiers/crtiers/internal/domain"
	"github.com/crtiers/crtiers/internal/player"
	"github.com/crtiers/crtiers/internal/websocket"
)

// AdminService applies ranking mutations: every change to a player's
// scores is recorded as a changelog entry, mirrored into the Redis cache,
// and broadcast to subscribed websocket clients.
type AdminService struct {
	standard   *player.Repository
	hidden     *player.Repository
	changelogs *changelog.Service
	cache      *cache.Leaderboard
	hub        *websocket.Hub
	logger     *slog.Logger
}

// NewAdminService creates the mutation service. cache and hub may be nil.
func NewAdminService(
	standard, hidden *player.Repository,
	changelogs *changelog.Service,
	lb *cache.Leaderboard,
	hub *websocket.Hub,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		standard:   standard,
		hidden:     hidden,
		changelogs: changelogs,
		cache:      lb,
		hub:        hub,
		logger:     logger,
	}
}

func (s *AdminService) repoFor(pool string) (*player.Repository, error) {
	switch pool {
	case s.standard.Pool().Name:
		return s.standard, nil
	case s.hidden.Pool().Name:
		return s.hidden, nil
	default:
		return nil, domain.ErrUnknownPool
	}
}

// CreatePlayer inserts a player and records their non-zero starting
// scores as a changelog entry.
func (s *AdminService) CreatePlayer(ctx context.Context, pool string, p *domain.Player) (*domain.Player, error) {
	repo, err := s.repoFor(pool)
	if err != nil {
		return nil, err
	}

	id, err := repo.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	created, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var changes []domain.TierChange
	for _, mode := range repo.Pool().Modes {
		if score := created.Score(mode); score > 0 {
			changes = append(changes, domain.TierChange{
				GameMode:      mode,
				PreviousScore: 0,
				NewScore:      score,
			})
		}
	}
	s.recordAndNotify(ctx, repo.Pool(), created, changes)

	s.logger.Info("player created", "pool", pool, "id", created.ID, "minecraft_name", created.MinecraftName)
	return created, nil
}

// UpdatePlayer applies a partial update under the caller's expected
// version and records the score diff.
func (s *AdminService) UpdatePlayer(ctx context.Context, pool, id string, fields map[string]any, expectedVersion int64) (*domain.Player, error) {
	repo, err := s.repoFor(pool)
	if err != nil {
		return nil, err
	}

	before, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := repo.Update(ctx, id, fields, expectedVersion); err != nil {
		return nil, err
	}
	after, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := diffScores(repo.Pool(), before, after)
	s.recordAndNotify(ctx, repo.Pool(), after, changes)

	s.logger.Info("player updated", "pool", pool, "id", id, "changed_modes", len(changes))
	return after, nil
}

// DeletePlayer removes a player and clears them from the cache.
func (s *AdminService) DeletePlayer(ctx context.Context, pool, id string) error {
	repo, err := s.repoFor(pool)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.RemovePlayer(ctx, repo.Pool(), id); err != nil {
			s.logger.Warn("removing player from cache failed", "id", id, "error", err)
		}
	}
	s.logger.Info("player deleted", "pool", pool, "id", id)
	return nil
}

// Changelogs lists recent entries, newest first.
func (s *AdminService) Changelogs(ctx context.Context, limit int) ([]domain.ChangelogEntry, error) {
	return s.changelogs.List(ctx, limit)
}

// Revert undoes one changelog entry by id and refreshes the affected
// player's cached boards.
func (s *AdminService) Revert(ctx context.Context, id string) error {
	entry, err := s.changelogs.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.changelogs.Revert(ctx, id); err != nil {
		return err
	}

	pool := s.standard.Pool()
	repo := s.standard
	if entry.HiddenPool {
		pool = s.hidden.Pool()
		repo = s.hidden
	}
	reverted, err := repo.GetByID(ctx, entry.PlayerID)
	if err != nil {
		s.logger.Warn("reloading reverted player failed", "id", entry.PlayerID, "error", err)
		return nil
	}
	s.syncCache(ctx, pool, reverted)
	if s.hub != nil {
		// Broadcast the restore as a change in the reverse direction.
		undo := domain.ChangelogEntry{
			PlayerID:      entry.PlayerID,
			MinecraftName: entry.MinecraftName,
			HiddenPool:    entry.HiddenPool,
		}
		for _, c := range entry.Changes {
			undo.Changes = append(undo.Changes, domain.TierChange{
				GameMode:      c.GameMode,
				PreviousScore: c.NewScore,
				NewScore:      c.PreviousScore,
			})
		}
		s.hub.BroadcastTierChanges(pool, undo, TierName)
	}
	return nil
}

// recordAndNotify writes the changelog entry (when there are changes) and
// fans the update out to the cache and websocket subscribers. Side-channel
// failures are logged, never surfaced; the store write already landed.
func (s *AdminService) recordAndNotify(ctx context.Context, pool domain.Pool, p *domain.Player, changes []domain.TierChange) {
	if len(changes) > 0 {
		entry := domain.ChangelogEntry{
			PlayerID:      p.ID,
			MinecraftName: p.MinecraftName,
			HiddenPool:    pool.Name == domain.PoolHidden.Name,
			Changes:       changes,
		}
		if _, err := s.changelogs.Record(ctx, entry); err != nil {
			s.logger.Error("recording changelog failed", "player_id", p.ID, "error", err)
		}
		if s.hub != nil {
			s.hub.BroadcastTierChanges(pool, entry, TierName)
		}
	}
	s.syncCache(ctx, pool, p)
}

func (s *AdminService) syncCache(ctx context.Context, pool domain.Pool, p *domain.Player) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SyncPlayer(ctx, pool, p); err != nil {
		s.logger.Warn("syncing player to cache failed", "id", p.ID, "error", err)
	}
}

// diffScores lists the non-overall modes whose score changed between two
// snapshots, in the pool's mode order.
func diffScores(pool domain.Pool, before, after *domain.Player) []domain.TierChange {
	var changes []domain.TierChange
	for _, mode := range pool.Modes {
		prev, next := before.Score(mode), after.Score(mode)
		if prev != next {
			changes = append(changes, domain.TierChange{
				GameMode:      mode,
				PreviousScore: prev,
				NewScore:      next,
			})
		}
	}
	return changes
}
