package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crtiers/crtiers/internal/cache"
	"github.com/crtiers/crtiers/internal/domain"
	"github.com/crtiers/crtiers/internal/player"
)

// CacheSyncConfig controls the periodic store-to-Redis rebuild.
type CacheSyncConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// CacheSync periodically rebuilds the Redis leaderboards from the
// document store, repairing any drift from missed write-through updates.
type CacheSync struct {
	repos  []*player.Repository
	cache  *cache.Leaderboard
	config *CacheSyncConfig
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
	mu     sync.Mutex
	running bool
}

// NewCacheSync creates the rebuild worker.
func NewCacheSync(repos []*player.Repository, lb *cache.Leaderboard, cfg *CacheSyncConfig, logger *slog.Logger) *CacheSync {
	return &CacheSync{
		repos:  repos,
		cache:  lb,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background rebuild loop. An immediate rebuild runs
// first so the cache is warm before the first tick.
func (w *CacheSync) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("cache sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the worker and waits for the loop to exit.
func (w *CacheSync) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("cache sync worker stopped")
	return nil
}

func (w *CacheSync) run(ctx context.Context) {
	defer close(w.doneCh)

	w.rebuildAll(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.rebuildAll(ctx)
		}
	}
}

func (w *CacheSync) rebuildAll(ctx context.Context) {
	start := time.Now()
	for _, repo := range w.repos {
		pool := repo.Pool()
		players, err := repo.List(ctx)
		if err != nil {
			w.logger.Error("listing pool for cache rebuild failed", "pool", pool.Name, "error", err)
			continue
		}
		refs := make([]*domain.Player, len(players))
		for i := range players {
			refs[i] = &players[i]
		}
		if err := w.cache.Rebuild(ctx, pool, refs); err != nil {
			w.logger.Error("cache rebuild failed", "pool", pool.Name, "error", err)
			continue
		}
	}
	w.logger.Debug("cache rebuild cycle complete", "duration", time.Since(start))
}
