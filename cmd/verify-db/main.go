// verify-db applies the embedded schema migrations to DATABASE_URL.
//
// Usage: go run ./cmd/verify-db [-config config.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"warehouse-ops/internal/config"
	"warehouse-ops/internal/db"
	"warehouse-ops/internal/logging"
	"warehouse-ops/migrations"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	list := flag.Bool("list", false, "print the embedded migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Logging.Level, "console")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if *list {
		all, err := migrations.List()
		if err != nil {
			logger.Fatal("discover migrations", zap.Error(err))
		}
		for _, m := range all {
			logger.Info("migration", zap.String("version", m.Version), zap.String("file", m.Filename), zap.String("checksum", m.Checksum))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("connected")

	applied, err := migrations.Apply(ctx, pool, logger)
	if errors.Is(err, migrations.ErrLocked) {
		logger.Fatal("lock", zap.Error(err))
	}
	if err != nil {
		logger.Fatal("migrate", zap.Int("applied", applied), zap.Error(err))
	}
	logger.Info("all migrations processed", zap.Int("applied", applied))
}
