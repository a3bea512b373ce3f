// Package worker holds the background jobs: the Mojang UUID batch sync
// and the periodic store-to-cache rebuild.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crtiers/crtiers/internal/player"
)

// Resolver is the identity lookup surface the sync needs.
type Resolver interface {
	ResolveUUID(ctx context.Context, username string) (string, error)
	ResolveName(ctx context.Context, uuid string) (string, error)
}

// ChangeEntry is one record's outcome in a sync batch.
type ChangeEntry struct {
	PlayerID      string `json:"playerId"`
	MinecraftName string `json:"minecraftName"`
	Message       string `json:"message"`
	Updated       bool   `json:"updated"`
}

// PoolSummary reports one pool's batch results.
type PoolSummary struct {
	Pool      string        `json:"pool"`
	Processed int           `json:"processed"`
	Updated   int           `json:"updated"`
	Entries   []ChangeEntry `json:"entries"`
}

// UUIDSync walks every player record and reconciles it against Mojang:
// records without a UUID get one looked up by name, records with a UUID
// get their name refreshed. Strictly sequential with a courtesy delay, so
// the external APIs never see a burst.
type UUIDSync struct {
	repos    []*player.Repository
	resolver Resolver
	delay    time.Duration
	logger   *slog.Logger
}

// NewUUIDSync creates the batch job over the given pools.
func NewUUIDSync(repos []*player.Repository, resolver Resolver, delay time.Duration, logger *slog.Logger) *UUIDSync {
	if delay == 0 {
		delay = 500 * time.Millisecond
	}
	return &UUIDSync{
		repos:    repos,
		resolver: resolver,
		delay:    delay,
		logger:   logger,
	}
}

// Run executes the batch over every pool. Per-record failures are
// recorded and skipped; only context cancellation stops the batch early,
// returning the partial summaries alongside the context error.
func (w *UUIDSync) Run(ctx context.Context) ([]PoolSummary, error) {
	summaries := make([]PoolSummary, 0, len(w.repos))
	for _, repo := range w.repos {
		summary, err := w.syncPool(ctx, repo)
		summaries = append(summaries, summary)
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

func (w *UUIDSync) syncPool(ctx context.Context, repo *player.Repository) (PoolSummary, error) {
	pool := repo.Pool()
	summary := PoolSummary{Pool: pool.Name, Entries: []ChangeEntry{}}

	players, err := repo.List(ctx)
	if err != nil {
		w.logger.Error("listing pool for uuid sync failed", "pool", pool.Name, "error", err)
		return summary, nil
	}

	w.logger.Info("uuid sync started", "pool", pool.Name, "records", len(players))

	for i := range players {
		if err := ctx.Err(); err != nil {
			w.logger.Warn("uuid sync cancelled", "pool", pool.Name, "processed", summary.Processed)
			return summary, err
		}

		p := &players[i]
		entry := ChangeEntry{PlayerID: p.ID, MinecraftName: p.MinecraftName}

		if p.MinecraftUUID == "" {
			uuid, err := w.resolver.ResolveUUID(ctx, p.MinecraftName)
			switch {
			case err != nil:
				entry.Message = "Lookup failed — name may not exist"
			default:
				if err := repo.Update(ctx, p.ID, map[string]any{"minecraftUuid": uuid}, p.Version); err != nil {
					entry.Message = fmt.Sprintf("Persist failed: %v", err)
				} else {
					entry.Message = fmt.Sprintf("Added UUID: %s", uuid)
					entry.Updated = true
				}
			}
		} else {
			name, err := w.resolver.ResolveName(ctx, p.MinecraftUUID)
			switch {
			case err != nil:
				entry.Message = "Fetch failed — UUID may be invalid"
			case name != p.MinecraftName:
				if err := repo.Update(ctx, p.ID, map[string]any{"minecraftName": name}, p.Version); err != nil {
					entry.Message = fmt.Sprintf("Persist failed: %v", err)
				} else {
					entry.Message = fmt.Sprintf("Renamed %s → %s", p.MinecraftName, name)
					entry.Updated = true
				}
			default:
				entry.Message = "No changes needed"
			}
		}

		summary.Processed++
		if entry.Updated {
			summary.Updated++
		}
		summary.Entries = append(summary.Entries, entry)
		w.logger.Debug("uuid sync record", "pool", pool.Name, "player", p.MinecraftName, "message", entry.Message)

		if err := w.sleep(ctx); err != nil {
			return summary, err
		}
	}

	w.logger.Info("uuid sync finished",
		"pool", pool.Name,
		"processed", summary.Processed,
		"updated", summary.Updated,
	)
	return summary, nil
}

// sleep waits the courtesy delay, cut short by cancellation.
func (w *UUIDSync) sleep(ctx context.Context) error {
	timer := time.NewTimer(w.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
