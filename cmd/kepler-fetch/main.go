// Fetches historical daily bars for the configured symbols from the Alpaca
// market-data API into the local Parquet store.
//
// Usage:
//
//	APCA_API_KEY_ID=... APCA_API_SECRET_KEY=... go run cmd/kepler-fetch/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kepler/internal/config"
	"kepler/internal/gather"
	"kepler/internal/store"
	"kepler/internal/util"
)

func main() {
	cfgPath := "config/kepler.yaml"
	if p := os.Getenv("KEPLER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("alpaca credentials not configured (APCA_API_KEY_ID / APCA_API_SECRET_KEY)")
	}

	start, end, err := cfg.Sweep.DateRange()
	if err != nil {
		log.Fatalf("invalid range: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g := gather.NewDailyBarGatherer(
		cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL,
		store.NewParquetStore(cfg.Storage.DataDir),
		cfg.Sweep.Symbols,
		gather.DateRange{Start: start, End: end},
		cfg.Fetch.BatchSize, cfg.Fetch.MaxWorkers, cfg.Fetch.RateLimitPerMin,
	)

	if err := g.Run(ctx); err != nil {
		log.Fatalf("fetch: %v", err)
	}
}
