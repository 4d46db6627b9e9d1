package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/bidask-recorder/internal/config"
	"github.com/rickgao/bidask-recorder/internal/store"
	"github.com/rickgao/bidask-recorder/internal/store/postgres"
	"github.com/rickgao/bidask-recorder/internal/store/sqlite"
)

// Open connects to the backend named by cfg.Driver and applies the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (store.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		st  store.Store
		err error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		st, err = sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite store", "path", cfg.SQLite.Path)

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st = postgres.New(pool)
		logger.Info("connected to postgres",
			"host", cfg.Postgres.Host,
			"database", cfg.Postgres.Name,
			"max_conns", cfg.Postgres.MaxConns,
		)

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.Driver, err)
	}
	return st, nil
}
