// Package cache maintains Redis sorted sets mirroring the per-mode
// leaderboards, so ordered reads do not have to hit the document store.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crtiers/crtiers/internal/domain"
)

// Config holds Redis connection settings.
type Config struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Entry is one row of a cached leaderboard.
type Entry struct {
	Rank     int64  `json:"rank"`
	PlayerID string `json:"playerId"`
	Score    int64  `json:"score"`
}

// Leaderboard caches per-mode rankings as Redis sorted sets, one set per
// pool and game mode, plus a hash of display info per player.
type Leaderboard struct {
	client *redis.Client
	logger *slog.Logger
}

// New connects to Redis and verifies the connection.
func New(cfg *Config, logger *slog.Logger) (*Leaderboard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Leaderboard{client: client, logger: logger}, nil
}

// Close closes the Redis connection.
func (l *Leaderboard) Close() error {
	return l.client.Close()
}

func (l *Leaderboard) boardKey(pool, mode string) string {
	return fmt.Sprintf("leaderboard:%s:%s", pool, mode)
}

func (l *Leaderboard) playerInfoKey(playerID string) string {
	return fmt.Sprintf("player:%s:info", playerID)
}

// SyncPlayer writes a player's scores into every mode board of their pool
// and refreshes their display info hash.
func (l *Leaderboard) SyncPlayer(ctx context.Context, pool domain.Pool, p *domain.Player) error {
	pipe := l.client.Pipeline()
	for _, mode := range pool.Modes {
		pipe.ZAdd(ctx, l.boardKey(pool.Name, mode), redis.Z{
			Score:  float64(p.Score(mode)),
			Member: p.ID,
		})
	}
	pipe.ZAdd(ctx, l.boardKey(pool.Name, domain.ModeOverall), redis.Z{
		Score:  float64(p.Score(domain.ModeOverall)),
		Member: p.ID,
	})
	pipe.HSet(ctx, l.playerInfoKey(p.ID), map[string]any{
		"name":          p.Name,
		"minecraftName": p.MinecraftName,
		"region":        p.Region,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("syncing player %s: %w", p.ID, err)
	}
	return nil
}

// RemovePlayer drops a player from every mode board of their pool.
func (l *Leaderboard) RemovePlayer(ctx context.Context, pool domain.Pool, playerID string) error {
	pipe := l.client.Pipeline()
	for _, mode := range pool.Modes {
		pipe.ZRem(ctx, l.boardKey(pool.Name, mode), playerID)
	}
	pipe.ZRem(ctx, l.boardKey(pool.Name, domain.ModeOverall), playerID)
	pipe.Del(ctx, l.playerInfoKey(playerID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("removing player %s: %w", playerID, err)
	}
	return nil
}

// TopN returns the top n entries of a mode board, highest score first.
func (l *Leaderboard) TopN(ctx context.Context, pool, mode string, n int) ([]Entry, error) {
	key := l.boardKey(pool, mode)
	results, err := l.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]Entry, len(results))
	for i, result := range results {
		entries[i] = Entry{
			Rank:     int64(i + 1),
			PlayerID: result.Member.(string),
			Score:    int64(result.Score),
		}
	}
	return entries, nil
}

// PlayerInfo returns the cached display fields for a player. Missing
// players yield an empty map, not an error.
func (l *Leaderboard) PlayerInfo(ctx context.Context, playerID string) (map[string]string, error) {
	info, err := l.client.HGetAll(ctx, l.playerInfoKey(playerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting player info: %w", err)
	}
	return info, nil
}

// Rebuild atomically replaces a pool's mode boards with the given roster.
// Stale members are cleared by writing to fresh keys and renaming over
// the live ones.
func (l *Leaderboard) Rebuild(ctx context.Context, pool domain.Pool, players []*domain.Player) error {
	modes := append(append([]string{}, pool.Modes...), domain.ModeOverall)
	pipe := l.client.Pipeline()
	for _, mode := range modes {
		staging := l.boardKey(pool.Name, mode) + ":staging"
		pipe.Del(ctx, staging)
		for _, p := range players {
			pipe.ZAdd(ctx, staging, redis.Z{
				Score:  float64(p.Score(mode)),
				Member: p.ID,
			})
		}
		pipe.Rename(ctx, staging, l.boardKey(pool.Name, mode))
	}
	for _, p := range players {
		pipe.HSet(ctx, l.playerInfoKey(p.ID), map[string]any{
			"name":          p.Name,
			"minecraftName": p.MinecraftName,
			"region":        p.Region,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuilding %s boards: %w", pool.Name, err)
	}
	l.logger.Debug("rebuilt leaderboard cache", "pool", pool.Name, "players", len(players))
	return nil
}
