// restore-seed loads a warehouse fixture (warehouses, bins, operators) into
// the configured store. Run it after provisioning a fresh database or when
// the directory data has been wiped. Existing rows are upserted.
//
// Usage: go run ./cmd/restore-seed [-config config.yaml] [-fixture seed.yaml]
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"warehouse-ops/internal/config"
	"warehouse-ops/internal/logging"
	"warehouse-ops/internal/seed"
	"warehouse-ops/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	fixturePath := flag.String("fixture", "", "fixture YAML (defaults to the built-in fixture)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Store.Driver == config.DriverMemory {
		log.Fatalf("restore-seed needs a persistent store; set STORE_DRIVER to sqlite or postgres")
	}
	logger, err := logging.New(cfg.Logging.Level, "console")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	fixture := seed.Default()
	if *fixturePath != "" {
		if fixture, err = seed.Load(*fixturePath); err != nil {
			logger.Fatal("load fixture", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ledger, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer ledger.Close()

	counts, err := seed.Apply(ctx, ledger, fixture)
	if err != nil {
		logger.Fatal("restore seed", zap.Error(err))
	}
	logger.Info("seed data restored",
		zap.String("store", cfg.Store.Driver),
		zap.Int("warehouses", counts.Warehouses),
		zap.Int("bins", counts.Bins),
		zap.Int("operators", counts.Operators),
	)
}
