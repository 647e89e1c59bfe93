package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"controlroom/internal/analytics"
	"controlroom/internal/config"
	"controlroom/internal/db"
	"controlroom/internal/engine"
	"controlroom/internal/engine/auth"
	"controlroom/internal/migrate"
	"controlroom/internal/pipeline"
	"controlroom/internal/scheduler"
)

// Context is a bootstrapped workspace: an open, migrated database, the policy file and the
// services built on top of them.
type Context struct {
	Workspace string
	DB        *sql.DB
	Config    *config.Config
	Engine    engine.Engine
	Auth      auth.Service
	Analytics *analytics.Client
	Scheduler *scheduler.Scheduler
	Logger    *slog.Logger
}

// Open prepares the workspace. A missing policy file falls back to the built-in default.
func Open(ctx context.Context, workspace string, logger *slog.Logger) (*Context, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	eng := engine.New(conn, cfg)
	eng.Logger = logger

	client := analytics.New(cfg.Source.BaseURL)
	client.APIKey = cfg.Source.APIKey
	if t := cfg.FeedTimeout(); t > 0 {
		client.Timeout = t
	}

	sched := &scheduler.Scheduler{
		Fetcher: analytics.Fetcher{
			Source:      client,
			MarketLimit: cfg.Source.MarketLimit,
			Timeout:     cfg.FeedTimeout(),
			Thresholds:  pipeline.Thresholds(cfg),
			Logger:      logger,
		},
		Pipeline: pipeline.Pipeline{Policy: cfg},
		Engine:   eng,
		Interval: cfg.RefreshInterval(),
		Logger:   logger,
	}
	last, err := eng.LastEpoch(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read last epoch: %w", err)
	}
	sched.Seed(last)

	return &Context{
		Workspace: workspace,
		DB:        conn,
		Config:    cfg,
		Engine:    eng,
		Auth:      auth.Service{Repo: eng.Repo, Config: cfg},
		Analytics: client,
		Scheduler: sched,
		Logger:    logger,
	}, nil
}

func (c *Context) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
