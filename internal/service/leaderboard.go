// Package service holds the business logic between the HTTP handlers and
// the storage, cache, and messaging layers.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/crtiers/crtiers/internal/cache"
	"github.com/crtiers/crtiers/internal/domain"
	"github.com/crtiers/crtiers/internal/player"
	"github.com/crtiers/crtiers/internal/tier"
)

// DefaultLeaderboardLimit caps rows returned when the caller does not ask
// for a specific page size.
const DefaultLeaderboardLimit = 50

// Row is one decorated leaderboard entry.
type Row struct {
	Rank          int64  `json:"rank"`
	PlayerID      string `json:"playerId"`
	Name          string `json:"name"`
	MinecraftName string `json:"minecraftName"`
	Region        string `json:"region"`
	Score         int    `json:"score"`
	Tier          string `json:"tier"`
	TierClass     string `json:"tierClass"`
}

// TierDetail decorates one mode score on a profile.
type TierDetail struct {
	GameMode  string `json:"gameMode"`
	Score     int    `json:"score"`
	Tier      string `json:"tier"`
	TierClass string `json:"tierClass"`
}

// Profile is a player together with their decorated scores.
type Profile struct {
	Player domain.Player `json:"player"`
	Tiers  []TierDetail  `json:"tiers"`
}

// LeaderboardService serves the public read surface. Reads prefer the
// Redis cache and fall back to the document store; total store failure
// degrades to empty results rather than errors.
type LeaderboardService struct {
	standard *player.Repository
	hidden   *player.Repository
	cache    *cache.Leaderboard
	logger   *slog.Logger
}

// NewLeaderboardService creates the read service. cache may be nil, in
// which case all reads go to the store.
func NewLeaderboardService(standard, hidden *player.Repository, lb *cache.Leaderboard, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{
		standard: standard,
		hidden:   hidden,
		cache:    lb,
		logger:   logger,
	}
}

func (s *LeaderboardService) repoFor(pool string) (*player.Repository, error) {
	switch pool {
	case s.standard.Pool().Name:
		return s.standard, nil
	case s.hidden.Pool().Name:
		return s.hidden, nil
	default:
		return nil, domain.ErrUnknownPool
	}
}

// Top returns the highest-scored players of a pool's mode, decorated with
// tier names. Store failures degrade to an empty board.
func (s *LeaderboardService) Top(ctx context.Context, pool, mode string, limit int) ([]Row, error) {
	repo, err := s.repoFor(pool)
	if err != nil {
		return nil, err
	}
	if !repo.Pool().HasMode(mode) {
		return nil, domain.ErrUnknownMode
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	if rows, ok := s.topFromCache(ctx, pool, mode, limit); ok {
		return rows, nil
	}

	players, err := repo.OrderedTop(ctx, mode, limit)
	if err != nil {
		s.logger.Error("leaderboard read degraded to empty", "pool", pool, "mode", mode, "error", err)
		return []Row{}, nil
	}

	overall := mode == domain.ModeOverall
	rows := make([]Row, len(players))
	for i, p := range players {
		score := p.Score(mode)
		rows[i] = Row{
			Rank:          int64(i + 1),
			PlayerID:      p.ID,
			Name:          p.Name,
			MinecraftName: p.MinecraftName,
			Region:        p.Region,
			Score:         score,
			Tier:          tier.Name(score, overall),
			TierClass:     tier.ColorClass(score, overall),
		}
	}
	return rows, nil
}

// topFromCache serves a board from Redis when every entry still has its
// display info cached. Any gap falls back to the store so rows never ship
// without names.
func (s *LeaderboardService) topFromCache(ctx context.Context, pool, mode string, limit int) ([]Row, bool) {
	if s.cache == nil {
		return nil, false
	}
	entries, err := s.cache.TopN(ctx, pool, mode, limit)
	if err != nil || len(entries) == 0 {
		return nil, false
	}

	overall := mode == domain.ModeOverall
	rows := make([]Row, len(entries))
	for i, e := range entries {
		info, err := s.cache.PlayerInfo(ctx, e.PlayerID)
		if err != nil || info["minecraftName"] == "" {
			return nil, false
		}
		score := int(e.Score)
		rows[i] = Row{
			Rank:          e.Rank,
			PlayerID:      e.PlayerID,
			Name:          info["name"],
			MinecraftName: info["minecraftName"],
			Region:        info["region"],
			Score:         score,
			Tier:          tier.Name(score, overall),
			TierClass:     tier.ColorClass(score, overall),
		}
	}
	return rows, true
}

// Rank returns the 1-based rank a score would hold in a pool's mode: one
// plus the number of players strictly above it. A non-empty region ranks
// within that region only. Store failure degrades to rank 1.
func (s *LeaderboardService) Rank(ctx context.Context, pool, mode string, score int, region string) (int64, error) {
	repo, err := s.repoFor(pool)
	if err != nil {
		return 0, err
	}
	higher, err := repo.CountHigher(ctx, mode, score, region)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownMode) {
			return 0, err
		}
		s.logger.Error("rank degraded to 1", "pool", pool, "mode", mode, "error", err)
		return 1, nil
	}
	return higher + 1, nil
}

// GetProfile looks a player up by name and decorates every mode score.
// A store failure degrades to not-found, matching the other public reads.
func (s *LeaderboardService) GetProfile(ctx context.Context, pool, name string) (*Profile, error) {
	repo, err := s.repoFor(pool)
	if err != nil {
		return nil, err
	}
	p, err := repo.GetByName(ctx, name)
	if err != nil {
		if !errors.Is(err, domain.ErrPlayerNotFound) {
			s.logger.Error("profile read degraded to not found", "pool", pool, "name", name, "error", err)
		}
		return nil, domain.ErrPlayerNotFound
	}
	return s.decorate(repo.Pool(), p), nil
}

// Search returns matching players with decorated scores. Store failure
// degrades to an empty result.
func (s *LeaderboardService) Search(ctx context.Context, pool, term string) ([]Profile, error) {
	repo, err := s.repoFor(pool)
	if err != nil {
		return nil, err
	}
	var players []domain.Player
	if term == "" {
		players, err = repo.List(ctx)
	} else {
		players, err = repo.Search(ctx, term)
	}
	if err != nil {
		s.logger.Error("player search degraded to empty", "pool", pool, "error", err)
		return []Profile{}, nil
	}
	profiles := make([]Profile, len(players))
	for i := range players {
		profiles[i] = *s.decorate(repo.Pool(), &players[i])
	}
	return profiles, nil
}

func (s *LeaderboardService) decorate(pool domain.Pool, p *domain.Player) *Profile {
	details := make([]TierDetail, 0, len(pool.Modes)+1)
	for _, mode := range pool.Modes {
		score := p.Score(mode)
		details = append(details, TierDetail{
			GameMode:  mode,
			Score:     score,
			Tier:      tier.Name(score, false),
			TierClass: tier.ColorClass(score, false),
		})
	}
	overall := p.Score(domain.ModeOverall)
	details = append(details, TierDetail{
		GameMode:  domain.ModeOverall,
		Score:     overall,
		Tier:      tier.Name(overall, true),
		TierClass: tier.ColorClass(overall, true),
	})
	return &Profile{Player: *p, Tiers: details}
}

// TierName exposes the classifier for broadcast decoration.
func TierName(mode string, score int) string {
	return tier.Name(score, mode == domain.ModeOverall)
}
