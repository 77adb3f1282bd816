package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pressly/goose/v3"

	"github.com/trungha/formgate/internal/core/config"
	"github.com/trungha/formgate/internal/core/domain"
	"github.com/trungha/formgate/internal/core/worker"
	"github.com/trungha/formgate/internal/gateway"
	redisclient "github.com/trungha/formgate/internal/infra/redis"
	"github.com/trungha/formgate/internal/infra/storage"
	"github.com/trungha/formgate/internal/infra/storage/memory"
	"github.com/trungha/formgate/internal/infra/storage/postgres"
)

// Config holds the application configuration.
type Config struct {
	Port     int
	Feeds    []config.FeedConfig
	Upload   config.UploadConfig
	Redis    redisclient.Config
	Database postgres.Config
}

// Gateway is the main application struct that wires storage, cache,
// feeds and the HTTP server together.
type Gateway struct {
	cfg      Config
	server   *gateway.Server
	sessions *gateway.SessionManager
	pruner   *worker.SessionPruner
	cache    *redisclient.Cache
	db       *postgres.DB
	log      *slog.Logger
}

// NewGateway creates a Gateway instance with all dependencies initialized.
func NewGateway(cfg Config) (*Gateway, error) {
	log := slog.Default()

	// 1. Initialize Storage
	var repo storage.SessionRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		repo = postgres.NewSessionRepo(db)
		slog.Info("Using PostgreSQL session store")
	} else {
		repo = memory.NewSessionRepo()
		slog.Info("Using in-memory session store")
	}

	// 2. Initialize Cache
	var cache *redisclient.Cache
	if cfg.Redis.URL != "" {
		var err error
		cache, err = redisclient.NewCache(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis cache: %w", err)
		}
		slog.Info("Feed response cache enabled")
	}

	// 3. Sessions + Feeds + Server
	sessions := gateway.NewSessionManager(cfg.Upload, repo, log)

	feeds := make([]domain.Feed, len(cfg.Feeds))
	for i, fc := range cfg.Feeds {
		feeds[i] = domain.Feed{
			Name:          fc.Name,
			URL:           fc.URL,
			Headers:       fc.Headers,
			RetryAttempts: fc.RetryAttempts,
			RetryDelay:    fc.RetryDelay,
			CacheTTL:      fc.CacheTTL,
		}
	}

	server, err := gateway.NewServer(cfg.Port, feeds, sessions, cache, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init server: %w", err)
	}
	if db != nil {
		server.AddHealthChecker("database", db)
	}

	return &Gateway{
		cfg:      cfg,
		server:   server,
		sessions: sessions,
		pruner:   worker.NewSessionPruner(cfg.Upload.SessionTTL, sessions),
		cache:    cache,
		db:       db,
		log:      log,
	}, nil
}

// Start launches the HTTP server and background workers.
func (g *Gateway) Start(ctx context.Context) error {
	go func() {
		g.log.Info("Gateway listening", "port", g.cfg.Port)
		if err := g.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.log.Error("HTTP server failed", "error", err)
		}
	}()

	go g.pruner.Start(ctx)

	return nil
}

// Stop shuts everything down in reverse order.
func (g *Gateway) Stop(ctx context.Context) error {
	if err := g.server.Stop(ctx); err != nil {
		g.log.Warn("HTTP server shutdown failed", "error", err)
	}
	if g.cache != nil {
		if err := g.cache.Close(); err != nil {
			g.log.Warn("Redis close failed", "error", err)
		}
	}
	if g.db != nil {
		if err := g.db.Close(); err != nil {
			g.log.Warn("Database close failed", "error", err)
		}
	}
	return nil
}
