package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/supportbot/core/logger"
	"github.com/m3rciful/supportbot/migrations"
)

const previewFiles = 6

// RunMigrations applies the embedded up migrations for the configured driver.
// PostgreSQL is given time to come up first.
func RunMigrations(cfg Config) error {
	if err := cfg.Normalize(); err != nil {
		return err
	}
	if cfg.Driver == DriverPostgres {
		if err := WaitForPostgres(cfg.DSN(), readyTimeout); err != nil {
			migrateFailed("wait", err)
			return fmt.Errorf("database not ready: %w", err)
		}
	}

	files := upFiles(migrations.FS, cfg.Driver)
	logger.MIG.Debug("migrations resolved", fileAttrs("resolve", files,
		slog.String("driver", cfg.Driver),
		slog.String("path", "embed:"+cfg.Driver),
	)...)

	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.MIG.Warn("close failed", slog.String("event", "close"),
				slog.String("err", errors.Join(srcErr, dbErr).Error()))
		}
	}()

	from, _, _ := m.Version()
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		migrateFailed("apply", err)
		return fmt.Errorf("migration execution failed: %w", err)
	}
	to, _, _ := m.Version()

	applied := appliedBetween(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.MIG.Debug("applied files", fileAttrs("apply", applied)...)
	}
	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return nil
}

func newMigrator(cfg Config) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, cfg.Driver)
	if err != nil {
		migrateFailed("source", err)
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		migrateFailed("init", err)
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return m, nil
}

func migrateFailed(stage string, err error) {
	logger.MIG.Error("migration failed",
		slog.String("event", stage),
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
}

func fileAttrs(event string, files []string, extra ...any) []any {
	args := append([]any{slog.String("event", event), slog.Int("files_total", len(files))}, extra...)
	preview, truncated := logger.SummarizeStrings(files, previewFiles)
	if preview != "" {
		args = append(args, slog.String("files_preview", preview))
	}
	if truncated {
		args = append(args, slog.Bool("files_truncated", true))
	}
	return args
}

// upFiles lists the sorted *.up.sql names in dir.
func upFiles(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

func fileVersion(name string) uint64 {
	head, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(head, 10, 64)
	return v
}

// appliedBetween returns the files with versions in (from, to].
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := fileVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
