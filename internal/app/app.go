// Package app wires configuration into a ready import service: descriptor
// registry, entity store, staging and limits. Both binaries start here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/geoimport/internal/config"
	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/core/tables"
	"github.com/JonMunkholm/geoimport/internal/db"
	"github.com/JonMunkholm/geoimport/internal/staging"
	"github.com/JonMunkholm/geoimport/internal/store"
	"github.com/JonMunkholm/geoimport/internal/store/memory"
	"github.com/JonMunkholm/geoimport/internal/store/sqlstore"
)

// App holds the long-lived collaborators of a running process.
type App struct {
	Service  *core.Service
	Registry *core.Registry
	Store    store.Store

	closers []func() error
}

// Open builds an App from cfg. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	reg, err := Registry(cfg.Import.MappingFile)
	if err != nil {
		return nil, err
	}
	log.Info("descriptors loaded",
		"count", len(reg.Ordered()),
		"mapping_file", cfg.Import.MappingFile,
	)

	a := &App{Registry: reg}
	if err := a.openStore(ctx, cfg.Database, log); err != nil {
		_ = a.Close()
		return nil, err
	}

	stager, err := staging.NewFileStager(cfg.Import.StagingDir, reg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Service = core.NewService(a.Store, reg, stager, ServiceConfig(cfg.Import))
	return a, nil
}

// Registry loads descriptors from path, or returns the built-in
// geotechnical descriptors when path is empty.
func Registry(path string) (*core.Registry, error) {
	if path == "" {
		return tables.Registry()
	}
	return core.LoadDescriptorFile(path)
}

// ServiceConfig translates import settings for core.NewService.
func ServiceConfig(c config.ImportConfig) core.ServiceConfig {
	return core.ServiceConfig{
		MaxFileSize:   c.MaxFileSize,
		MaxConcurrent: c.MaxConcurrent,
		MaxWait:       c.MaxWaitTime,
		Timeout:       c.Timeout,
		Concurrency:   c.Concurrency,
	}
}

func (a *App) openStore(ctx context.Context, c config.DatabaseConfig, log *slog.Logger) error {
	switch strings.ToLower(c.Driver) {
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on exit")
		a.Store = memory.New(a.Registry.Schema())
		return nil

	case config.DriverSQLite:
		sqlDB, err := db.OpenSQLite(c.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, sqlDB.Close)
		if err := migrate(sqlDB, db.DialectSQLite, c.AutoMigrate, log); err != nil {
			return err
		}
		a.Store = sqlstore.NewSQLite(sqlDB, a.Registry.Schema())
		log.Info("connected to sqlite", "path", c.SQLitePath)
		return nil

	case config.DriverPostgres:
		pool, err := db.OpenPostgres(ctx, c.URL, db.PoolConfig{
			MaxConns:        c.MaxConns,
			MinConns:        c.MinConns,
			MaxConnLifetime: c.MaxConnLifetime,
			MaxConnIdleTime: c.MaxConnIdleTime,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		if err := migratePool(pool, c.AutoMigrate, log); err != nil {
			return err
		}
		a.Store = sqlstore.NewPostgres(pool, a.Registry.Schema())
		log.Info("connected to postgres", "max_conns", c.MaxConns)
		return nil

	default:
		return fmt.Errorf("unknown database driver %q", c.Driver)
	}
}

func migratePool(pool *pgxpool.Pool, enabled bool, log *slog.Logger) error {
	if !enabled {
		return nil
	}
	sqlDB := db.SQLFromPool(pool)
	defer sqlDB.Close()
	return migrate(sqlDB, db.DialectPostgres, true, log)
}

func migrate(sqlDB *sql.DB, dialect string, enabled bool, log *slog.Logger) error {
	if !enabled {
		return nil
	}
	if err := db.Migrate(sqlDB, dialect); err != nil {
		return err
	}
	version, err := db.MigrationVersion(sqlDB, dialect)
	if err != nil {
		return err
	}
	log.Info("schema migrated", "dialect", dialect, "version", version)
	return nil
}

// Close releases the store connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
