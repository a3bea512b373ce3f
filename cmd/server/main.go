package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crtiers/crtiers/internal/auth"
	"github.com/crtiers/crtiers/internal/cache"
	"github.com/crtiers/crtiers/internal/changelog"
	"github.com/crtiers/crtiers/internal/config"
	"github.com/crtiers/crtiers/internal/domain"
	"github.com/crtiers/crtiers/internal/handler"
	"github.com/crtiers/crtiers/internal/kafka"
	"github.com/crtiers/crtiers/internal/mojang"
	"github.com/crtiers/crtiers/internal/player"
	"github.com/crtiers/crtiers/internal/service"
	"github.com/crtiers/crtiers/internal/store"
	"github.com/crtiers/crtiers/internal/store/firestore"
	"github.com/crtiers/crtiers/internal/store/memory"
	"github.com/crtiers/crtiers/internal/store/postgres"
	"github.com/crtiers/crtiers/internal/websocket"
	"github.com/crtiers/crtiers/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Document store backend
	docStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open document store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer docStore.Close()
	logger.Info("document store ready", "backend", cfg.Store.Backend)

	standard := player.NewRepository(docStore, domain.PoolStandard, logger)
	hidden := player.NewRepository(docStore, domain.PoolHidden, logger)
	repos := []*player.Repository{standard, hidden}

	// Redis leaderboard cache
	var leaderboardCache *cache.Leaderboard
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		leaderboardCache, err = cache.New(&cfg.Redis.Config, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer leaderboardCache.Close()
		logger.Info("connected to Redis")
	}

	// Kafka audit stream
	var publisher changelog.Publisher
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, continuing without audit stream", "error", err)
		} else {
			publisher = producer
		}
	}

	changelogs := changelog.NewService(docStore, standard, hidden, publisher, logger)

	// WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	// Session gate
	sessions, err := auth.NewService(&cfg.Auth, logger)
	if err != nil {
		logger.Error("failed to initialize auth", "error", err)
		os.Exit(1)
	}

	mojangClient := mojang.NewClient(cfg.Mojang, logger)
	uuidSync := worker.NewUUIDSync(repos, mojangClient, cfg.Sync.UUIDDelay, logger)

	leaderboards := service.NewLeaderboardService(standard, hidden, leaderboardCache, logger)
	admin := service.NewAdminService(standard, hidden, changelogs, leaderboardCache, wsHub, logger)

	// Periodic store-to-cache rebuild
	var cacheSync *worker.CacheSync
	if leaderboardCache != nil && cfg.Sync.Cache.Enabled {
		cacheSync = worker.NewCacheSync(repos, leaderboardCache, &cfg.Sync.Cache, logger)
		if err := cacheSync.Start(ctx); err != nil {
			logger.Error("failed to start cache sync worker", "error", err)
			os.Exit(1)
		}
	}

	httpHandler := handler.NewHandler(leaderboards, admin, sessions, mojangClient, uuidSync, wsHub, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	wsHub.Stop()

	if cacheSync != nil {
		if err := cacheSync.Stop(); err != nil {
			logger.Error("failed to stop cache sync worker", "error", err)
		}
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("failed to close Kafka producer", "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
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
