package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"inductionlog/internal/config"
	"inductionlog/internal/db"
	"inductionlog/internal/engine"
	"inductionlog/internal/metrics"
	"inductionlog/internal/migrate"
	"inductionlog/internal/persist"
	"inductionlog/internal/storage"
)

// Context is everything a command needs to work on one workspace.
type Context struct {
	Workspace string
	DB        *sql.DB
	Config    *config.Config
	Engine    engine.Engine
	Store     storage.Store
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Options tune Open.
type Options struct {
	// ConfigPath overrides <workspace>/inductionlog.yml.
	ConfigPath string
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Open loads the workspace config, opens and migrates the database, and
// connects the autosave store.
func Open(ctx context.Context, workspace string, opts Options) (*Context, error) {
	cfg, err := loadConfig(workspace, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	sopts := cfg.StorageOptions(workspace)
	sopts.DB = conn
	store, err := storage.Open(ctx, sopts)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}

	eng := engine.New(conn, cfg)
	eng.Logger = logger.Named("engine")
	eng.Parser.Logger = logger.Named("ingest")
	eng.Metrics = opts.Metrics

	return &Context{
		Workspace: workspace,
		DB:        conn,
		Config:    cfg,
		Engine:    eng,
		Store:     store,
		Logger:    logger,
		Metrics:   opts.Metrics,
	}, nil
}

func loadConfig(workspace, path string) (*config.Config, error) {
	if path != "" {
		return config.FromFile(path)
	}
	return config.LoadOptional(workspace)
}

// Autosaver returns an autosaver writing to the workspace store with the
// configured key and delay.
func (c *Context) Autosaver() *persist.Autosaver {
	return &persist.Autosaver{
		Store:   c.Store,
		Key:     c.Config.Storage.Key,
		Delay:   c.Config.Autosave.Delay,
		Logger:  c.Logger.Named("autosave"),
		Metrics: c.Metrics,
	}
}

// ManualSaver returns a manual saver targeting the configured input id.
func (c *Context) ManualSaver() persist.ManualSaver {
	return persist.ManualSaver{
		TargetID: c.Config.Save.TargetID,
		Logger:   c.Logger.Named("save"),
		Metrics:  c.Metrics,
	}
}

// Close releases the store and the database.
func (c *Context) Close() error {
	var errs []error
	if closer, ok := c.Store.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, c.DB.Close())
	return errors.Join(errs...)
}
