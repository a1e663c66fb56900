// Package store selects and opens the configured ledger implementation.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"warehouse-ops/internal/config"
	"warehouse-ops/internal/core"
	"warehouse-ops/internal/db"
	"warehouse-ops/internal/store/memory"
	"warehouse-ops/internal/store/postgres"
	"warehouse-ops/internal/store/sqlite"
	"warehouse-ops/migrations"
)

// Ledger is a store that can also be seeded.
type Ledger interface {
	core.Store
	core.Seeder
}

// Open builds the ledger named by cfg.Driver. Postgres schemas are migrated
// before the store is returned.
func Open(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (Ledger, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Driver {
	case config.DriverMemory, "":
		log.Info("using in-memory store")
		return memory.New(memory.WithLockTimeout(cfg.LockTimeout)), nil

	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, memory.WithLockTimeout(cfg.LockTimeout))
		if err != nil {
			return nil, err
		}
		log.Info("using sqlite store", zap.String("path", s.Path()))
		return s, nil

	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		applied, err := migrations.Apply(ctx, pool, log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("using postgres store", zap.Int("migrations_applied", applied))
		return postgres.New(pool, postgres.WithLockTimeout(cfg.LockTimeout)), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// PoolOf returns the Postgres pool behind l, or nil for other drivers.
func PoolOf(l Ledger) *pgxpool.Pool {
	if p, ok := l.(interface{ Pool() *pgxpool.Pool }); ok {
		return p.Pool()
	}
	return nil
}
