// Command uuid-sync runs the Mojang reconciliation batch once against the
// configured document store and prints per-pool summaries.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crtiers/crtiers/internal/config"
	"github.com/crtiers/crtiers/internal/domain"
	"github.com/crtiers/crtiers/internal/mojang"
	"github.com/crtiers/crtiers/internal/player"
	"github.com/crtiers/crtiers/internal/store"
	"github.com/crtiers/crtiers/internal/store/firestore"
	"github.com/crtiers/crtiers/internal/store/memory"
	"github.com/crtiers/crtiers/internal/store/postgres"
	"github.com/crtiers/crtiers/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	delay := flag.Duration("delay", 0, "Courtesy delay between lookups (overrides config)")
	pool := flag.String("pool", "", "Limit the batch to one pool")
	updatedOnly := flag.Bool("updated-only", false, "Print only records that changed")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *delay == 0 {
		*delay = cfg.Sync.UUIDDelay
	}

	// Ctrl-C cancels mid-batch; the partial summary still prints.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open document store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer docStore.Close()

	var repos []*player.Repository
	for _, p := range domain.Pools() {
		if *pool != "" && p.Name != *pool {
			continue
		}
		repos = append(repos, player.NewRepository(docStore, p, logger))
	}
	if len(repos) == 0 {
		logger.Error("no such pool", "pool", *pool)
		os.Exit(1)
	}

	resolver := mojang.NewClient(cfg.Mojang, logger)
	job := worker.NewUUIDSync(repos, resolver, *delay, logger)

	start := time.Now()
	summaries, err := job.Run(ctx)
	if err != nil {
		logger.Warn("batch ended early", "error", err)
	}

	for _, s := range summaries {
		fmt.Printf("pool %s: processed %d, updated %d\n", s.Pool, s.Processed, s.Updated)
		for _, e := range s.Entries {
			if *updatedOnly && !e.Updated {
				continue
			}
			fmt.Printf("  %-20s %s\n", e.MinecraftName, e.Message)
		}
	}
	fmt.Printf("done in %s\n", time.Since(start).Round(time.Millisecond))
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendFirestore:
		return firestore.New(ctx, cfg.Store.ProjectID)
	case config.BackendPostgres:
		return postgres.New(ctx, &cfg.Store.Postgres, logger)
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
