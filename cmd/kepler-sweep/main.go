// Runs a full parameter sweep: loads bars from the local store, expands the
// configured grid, backtests every configuration over a shared feature
// cache, prints the ranked report, and persists outcomes to SQLite.
//
// Usage:
//
//	go run cmd/kepler-sweep/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kepler/internal/cache"
	"kepler/internal/config"
	"kepler/internal/domain"
	"kepler/internal/report"
	"kepler/internal/store"
	"kepler/internal/strategy/builtins"
	"kepler/internal/sweep"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start, end, err := cfg.Sweep.DateRange()
	if err != nil {
		log.Fatalf("invalid sweep range: %v", err)
	}

	bars, err := loadBars(ctx, cfg, start, end)
	if err != nil {
		log.Fatalf("loading bars: %v", err)
	}

	shared := cache.New(cfg.Sweep.CacheBudgetBytes())
	coord := sweep.NewCoordinator(bars, builtins.Defaults(), shared, sweep.Options{
		Start:          start,
		End:            end,
		InitialCapital: cfg.Sweep.InitialCapital,
		Workers:        cfg.Sweep.Workers,
		Cost:           cfg.Sweep.Cost,
	}, logger)

	configs := cfg.Sweep.Grid.Expand()
	if len(configs) == 0 {
		log.Fatal("sweep grid expands to zero configurations")
	}
	logger.Info("starting sweep", "configs", len(configs), "symbols", len(bars))

	results, err := coord.Run(ctx, configs)
	if err != nil {
		log.Fatalf("sweep: %v", err)
	}

	ranked, err := report.Rank(results, cfg.Sweep.RankMetric)
	if err != nil {
		log.Fatalf("ranking: %v", err)
	}
	report.Render(os.Stdout, ranked, cfg.Sweep.TopN)

	if cfg.Storage.SQLitePath != "" {
		sink, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening result store: %v", err)
		}
		defer sink.Close()

		sweepID := fmt.Sprintf("sweep-%s", time.Now().UTC().Format("20060102-150405"))
		if err := sink.SaveResults(ctx, sweepID, results); err != nil {
			log.Fatalf("saving results: %v", err)
		}
		logger.Info("results persisted", "sweepID", sweepID, "runs", len(results))
	}
}

// loadBars reads each configured symbol's bars for the sweep range.
func loadBars(ctx context.Context, cfg *config.Config, start, end time.Time) (map[string][]domain.Bar, error) {
	ps := store.NewParquetStore(cfg.Storage.DataDir)

	symbols := cfg.Sweep.Symbols
	if len(symbols) == 0 {
		var err error
		symbols, err = ps.ListSymbols(ctx, cfg.Sweep.Market)
		if err != nil {
			return nil, err
		}
	}

	bars := make(map[string][]domain.Bar, len(symbols))
	for _, sym := range symbols {
		bs, err := ps.ReadBars(ctx, sym, cfg.Sweep.Market, start, end)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", sym, err)
		}
		bars[sym] = bs
	}
	return bars, nil
}
