package sweep

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"kepler/internal/cache"
	"kepler/internal/domain"
	"kepler/internal/engine"
	"kepler/internal/execution"
	"kepler/internal/strategy"
)

// Coordinator issues one engine run per configuration across a bounded
// worker pool. All runs share one feature cache — that sharing is the whole
// performance point — and nothing else: each run owns its ledger and its
// strategy instance. A failed run never aborts its siblings, and the
// aggregate always contains every run's outcome.
type Coordinator struct {
	bars     map[string][]domain.Bar
	registry *strategy.Registry
	cache    *cache.Cache
	workers  int
	log      *slog.Logger

	start   time.Time
	end     time.Time
	capital float64
	cost    execution.Config
}

// Options configures a Coordinator.
type Options struct {
	Start          time.Time
	End            time.Time
	InitialCapital float64
	Workers        int
	Cost           execution.Config
}

// NewCoordinator creates a Coordinator over the given bars (per symbol, in
// delivery order) sharing cache sh across all runs.
func NewCoordinator(bars map[string][]domain.Bar, registry *strategy.Registry, sh *cache.Cache, opts Options, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Coordinator{
		bars:     bars,
		registry: registry,
		cache:    sh,
		workers:  workers,
		log:      log.With("component", "sweep"),
		start:    opts.Start,
		end:      opts.End,
		capital:  opts.InitialCapital,
		cost:     opts.Cost,
	}
}

// Run executes every configuration and returns one RunResult per config, in
// config order regardless of completion order. The returned error is non-nil
// only when the coordinator itself could not operate; per-run failures are
// carried inside their RunResult.
func (c *Coordinator) Run(ctx context.Context, configs []RunConfig) ([]domain.RunResult, error) {
	results := make([]domain.RunResult, len(configs))
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, rc := range configs {
		g.Go(func() error {
			results[i] = c.runOne(gctx, rc)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in results

	stats := c.cache.Stats()
	c.log.Info("sweep complete",
		"runs", len(configs),
		"elapsed", time.Since(started).Round(time.Millisecond),
		"cacheHits", stats.Hits,
		"cacheMisses", stats.Misses,
		"cacheEvictions", stats.Evictions,
	)
	return results, nil
}

// runOne builds the strategy for one configuration and executes its engine
// run. Configuration faults and engine failures both land in the RunResult.
func (c *Coordinator) runOne(ctx context.Context, rc RunConfig) domain.RunResult {
	strat, err := c.registry.New(rc.Strategy, rc.StrategyParams)
	if err != nil {
		c.log.Warn("strategy construction failed", "run", rc.Tag, "err", err)
		return domain.RunResult{
			ConfigTag: rc.Tag,
			Status:    domain.RunFailed,
			Failure:   &domain.EngineFailure{Cause: domain.CauseInvalidConfig, Err: err},
		}
	}

	run := engine.New(engine.Config{
		Tag:            rc.Tag,
		Start:          c.start,
		End:            c.end,
		InitialCapital: c.capital,
		Feature:        rc.Feature,
		Cost:           c.cost,
	}, c.bars, strat, c.cache, c.log)

	result, _ := run.Execute(ctx)
	return result
}
