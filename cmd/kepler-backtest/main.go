// Runs a single backtest for one strategy configuration and prints the
// equity summary. Useful for inspecting one grid point in isolation.
//
// Usage:
//
//	go run cmd/kepler-backtest/main.go -strategy sma-cross -short 10 -long 30 -vol 10
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"kepler/internal/cache"
	"kepler/internal/config"
	"kepler/internal/domain"
	"kepler/internal/engine"
	"kepler/internal/feature"
	"kepler/internal/store"
	"kepler/internal/strategy/builtins"
	"kepler/internal/util"
)

func main() {
	var (
		stratName = flag.String("strategy", "sma-cross", "strategy name")
		short     = flag.Int("short", 10, "short feature window")
		long      = flag.Int("long", 30, "long feature window")
		vol       = flag.Int("vol", 10, "volatility window")
		size      = flag.Float64("size", 100, "target position size in shares")
	)
	flag.Parse()

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

	ctx := context.Background()

	start, end, err := cfg.Sweep.DateRange()
	if err != nil {
		log.Fatalf("invalid range: %v", err)
	}

	ps := store.NewParquetStore(cfg.Storage.DataDir)
	bars := make(map[string][]domain.Bar, len(cfg.Sweep.Symbols))
	for _, sym := range cfg.Sweep.Symbols {
		bs, err := ps.ReadBars(ctx, sym, cfg.Sweep.Market, start, end)
		if err != nil {
			log.Fatalf("reading %s: %v", sym, err)
		}
		bars[sym] = bs
	}

	strat, err := builtins.Defaults().New(*stratName, map[string]float64{"size": *size})
	if err != nil {
		log.Fatalf("building strategy: %v", err)
	}

	run := engine.New(engine.Config{
		Tag:            *stratName,
		Start:          start,
		End:            end,
		InitialCapital: cfg.Sweep.InitialCapital,
		Feature:        feature.Params{ShortWindow: *short, LongWindow: *long, VolWindow: *vol},
		Cost:           cfg.Sweep.Cost,
	}, bars, strat, cache.New(0), logger)

	result, err := run.Execute(ctx)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	m := result.Metrics
	fmt.Printf("status:       %s\n", result.Status)
	fmt.Printf("ticks:        %d\n", len(result.EquityCurve))
	fmt.Printf("trades:       %d (rejected %d)\n", result.TradeCount, result.RejectedOrders)
	fmt.Printf("equity:       %.2f -> %.2f\n", m.StartEquity, m.FinalEquity)
	fmt.Printf("total return: %.4f\n", m.TotalReturn)
	fmt.Printf("max drawdown: %.4f\n", m.MaxDrawdown)
	fmt.Printf("sharpe:       %.4f  sortino: %.4f  vol: %.4f\n", m.Sharpe, m.Sortino, m.Volatility)
}
