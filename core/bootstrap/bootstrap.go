package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/supportbot/core/config"
	coredatabase "github.com/m3rciful/supportbot/core/database"
	"github.com/m3rciful/supportbot/core/logger"
)

// Options control the bootstrap pipeline: logger, schema, connection.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, applies migrations and connects to the
// database, in that order. Nil hooks fall back to the core implementations.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	initLogger, migrate, connect := opts.LoggerInit, opts.Migrate, opts.Connect
	if initLogger == nil {
		initLogger = logger.InitLogger
	}
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if connect == nil {
		connect = coredatabase.Connect
	}

	if err := initLogger(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	dbCfg := opts.Database
	if err := dbCfg.Normalize(); err != nil {
		return nil, fmt.Errorf("bootstrap: database config: %w", err)
	}
	if err := migrate(dbCfg); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	db, err := connect(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	logger.Debug(context.Background(), "app", "bootstrap.complete", slog.String("driver", dbCfg.Driver))
	return &Result{DB: db}, nil
}
