// Package engine replays historical bars through a strategy under strict
// causality and deterministic portfolio accounting. Each Run owns its ledger
// exclusively; the feature cache is the only structure shared across runs.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"kepler/internal/cache"
	"kepler/internal/domain"
	"kepler/internal/execution"
	"kepler/internal/feature"
	"kepler/internal/ledger"
	"kepler/internal/strategy"
)

// Config fully determines one run. Identical configs over identical data
// produce identical results.
type Config struct {
	Tag            string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	Feature        feature.Params
	Cost           execution.Config
}

// Run is the engine state machine for one backtest:
// Initialized -> Replaying -> Completed | Failed.
type Run struct {
	cfg   Config
	bars  map[string][]domain.Bar
	strat strategy.Strategy
	cache *cache.Cache
	cost  *execution.Model
	log   *slog.Logger

	mu     sync.Mutex
	status domain.RunStatus
}

// New creates a Run in the Initialized state. bars maps each symbol to its
// records in non-decreasing timestamp order, as delivered by the data-access
// collaborator; shared is the sweep-wide feature cache.
func New(cfg Config, bars map[string][]domain.Bar, strat strategy.Strategy, shared *cache.Cache, log *slog.Logger) *Run {
	if log == nil {
		log = slog.Default()
	}
	return &Run{
		cfg:    cfg,
		bars:   bars,
		strat:  strat,
		cache:  shared,
		cost:   execution.NewModel(cfg.Cost),
		log:    log.With("run", cfg.Tag),
		status: domain.RunInitialized,
	}
}

// Status reports the current lifecycle state. Safe to call concurrently with
// Execute.
func (r *Run) Status() domain.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Run) setStatus(s domain.RunStatus) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// tick is one bar in merged replay order together with its position within
// its symbol's series (used to index the cached feature vector).
type tick struct {
	bar    domain.Bar
	symIdx int
}

// Execute replays the configured range and returns the run's result. A
// Failed result is returned alongside the failure so the coordinator can
// aggregate both; sibling runs are unaffected. Cancellation is honored
// between ticks and reported as a Cancelled failure.
func (r *Run) Execute(ctx context.Context) (domain.RunResult, error) {
	r.setStatus(domain.RunReplaying)

	vectors, warm, err := r.loadFeatures(ctx)
	if err != nil {
		return r.fail(domain.CauseExtractorFault, time.Time{}, err)
	}

	ticks := mergeTicks(r.bars)
	led := ledger.New(r.cfg.InitialCapital)
	prices := make(map[string]float64, len(r.bars))

	var (
		curve    []domain.EquityPoint
		trades   int
		rejected int
	)

	for _, t := range ticks {
		// Cancellation point: between ticks only, never mid-tick.
		select {
		case <-ctx.Done():
			return r.fail(domain.CauseCancelled, t.bar.Timestamp, ctx.Err())
		default:
		}

		prices[t.bar.Symbol] = t.bar.Close

		// (a) feature vector as-of this tick; (b) strategy sees the vector
		// and a snapshot, never the live ledger.
		if vecIdx := t.symIdx - (warm - 1); vecIdx >= 0 {
			v := vectors[t.bar.Symbol][vecIdx]
			if v.Timestamp > t.bar.Timestamp.UnixMilli() {
				return r.fail(domain.CauseLookaheadViolation, t.bar.Timestamp,
					fmt.Errorf("vector as-of %d served for tick %d", v.Timestamp, t.bar.Timestamp.UnixMilli()))
			}

			intents := r.strat.OnTick(v, led.Snapshot())

			// (c) cost model sees only the current bar; (d) fills mutate the
			// ledger atomically.
			for _, intent := range intents {
				fill, err := r.cost.Apply(intent, t.bar)
				if err != nil {
					if errors.Is(err, domain.ErrInsufficientLiquidity) {
						rejected++
						r.log.Debug("order rejected", "symbol", intent.Symbol, "size", intent.Size, "err", err)
						continue
					}
					return r.fail(domain.CauseCostModelFault, t.bar.Timestamp, err)
				}
				led.ApplyFill(fill)
				trades++
			}
		}

		// (e) equity after mark-to-market.
		equity := led.MarkToMarket(prices)
		curve = append(curve, domain.EquityPoint{
			Timestamp: t.bar.Timestamp,
			Equity:    equity,
			OpenPnL:   led.UnrealizedPnL(),
			ClosedPnL: led.RealizedPnL(),
		})
	}

	r.setStatus(domain.RunCompleted)
	return domain.RunResult{
		ConfigTag:      r.cfg.Tag,
		Status:         domain.RunCompleted,
		Final:          led.Snapshot(),
		EquityCurve:    curve,
		Metrics:        computeMetrics(curve, r.cfg.InitialCapital),
		TradeCount:     trades,
		RejectedOrders: rejected,
	}, nil
}

// loadFeatures obtains, through the shared cache, the feature vectors for
// every symbol over the run's configured range. The range bounds are part of
// the key, so overlapping sweep configurations share one computation per
// (symbol, range, params).
func (r *Run) loadFeatures(ctx context.Context) (map[string][]feature.Vector, int, error) {
	if err := r.cfg.Feature.Validate(); err != nil {
		return nil, 0, err
	}

	symbols := make([]string, 0, len(r.bars))
	for sym := range r.bars {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	vectors := make(map[string][]feature.Vector, len(symbols))
	for _, sym := range symbols {
		bars := r.bars[sym]
		if len(bars) == 0 {
			continue
		}
		key := feature.NewKey(sym, r.cfg.Start, r.cfg.End, r.cfg.Feature)
		vecs, err := r.cache.GetOrCompute(ctx, key, func() ([]feature.Vector, error) {
			return feature.Extract(bars, r.cfg.Feature)
		})
		if err != nil {
			return nil, 0, err
		}
		vectors[sym] = vecs
	}
	return vectors, r.cfg.Feature.WarmUp(), nil
}

// fail transitions to Failed and discards partial results.
func (r *Run) fail(cause domain.FailureCause, at time.Time, err error) (domain.RunResult, error) {
	r.setStatus(domain.RunFailed)
	failure := &domain.EngineFailure{Cause: cause, At: at, Err: err}
	r.log.Warn("run failed", "cause", cause, "at", at, "err", err)
	return domain.RunResult{
		ConfigTag: r.cfg.Tag,
		Status:    domain.RunFailed,
		Failure:   failure,
	}, failure
}

// mergeTicks flattens per-symbol bars into strict replay order: timestamp,
// then symbol, then ingestion sequence. Bars within one symbol keep their
// delivered order, which non-decreasing timestamps make a stable total
// order.
func mergeTicks(bars map[string][]domain.Bar) []tick {
	var total int
	for _, bs := range bars {
		total += len(bs)
	}
	ticks := make([]tick, 0, total)
	for _, bs := range bars {
		for i, b := range bs {
			ticks = append(ticks, tick{bar: b, symIdx: i})
		}
	}
	sort.SliceStable(ticks, func(i, j int) bool {
		ti, tj := ticks[i], ticks[j]
		if !ti.bar.Timestamp.Equal(tj.bar.Timestamp) {
			return ti.bar.Timestamp.Before(tj.bar.Timestamp)
		}
		if ti.bar.Symbol != tj.bar.Symbol {
			return ti.bar.Symbol < tj.bar.Symbol
		}
		return ti.bar.Seq < tj.bar.Seq
	})
	return ticks
}
