package sweep

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kepler/internal/cache"
	"kepler/internal/domain"
	"kepler/internal/execution"
	"kepler/internal/feature"
	"kepler/internal/strategy"
	"kepler/internal/strategy/builtins"
)

func TestGridExpand(t *testing.T) {
	g := Grid{
		Strategies: []StrategyAxis{
			{Name: "sma-cross", Params: map[string][]float64{"size": {100, 200}}},
			{Name: "momentum", Params: map[string][]float64{"entry": {0.01, 0.02}, "size": {100}}},
		},
		ShortWindows: []int{5, 10},
		LongWindows:  []int{20},
		VolWindows:   []int{10},
	}

	configs := g.Expand()
	// (2 + 2*1 strategy combos) * 2 shorts * 1 long * 1 vol.
	require.Len(t, configs, 8)

	// Deterministic: expanding twice yields the identical sequence.
	again := g.Expand()
	require.Equal(t, configs, again)

	require.Equal(t, "strategy=sma-cross|size=100|short=5|long=20|vol=10", configs[0].Tag)
	require.Equal(t, feature.Params{ShortWindow: 5, LongWindow: 20, VolWindow: 10}, configs[0].Feature)

	// Tags are unique across the grid.
	seen := make(map[string]bool)
	for _, rc := range configs {
		require.False(t, seen[rc.Tag], "duplicate tag %s", rc.Tag)
		seen[rc.Tag] = true
	}
}

func TestGridExpandNoParams(t *testing.T) {
	g := Grid{
		Strategies:   []StrategyAxis{{Name: "sma-cross"}},
		ShortWindows: []int{5},
		LongWindows:  []int{20},
		VolWindows:   []int{10},
	}
	configs := g.Expand()
	require.Len(t, configs, 1)
	require.Equal(t, "strategy=sma-cross|short=5|long=20|vol=10", configs[0].Tag)
	require.Empty(t, configs[0].StrategyParams)
}

func sweepBars(symbol string, n int) []domain.Bar {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 0, n)
	price := 100.0
	for i := 0; i < n; i++ {
		if i%7 < 4 {
			price *= 1.01
		} else {
			price *= 0.995
		}
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: base.AddDate(0, 0, i),
			Open:      price,
			High:      price * 1.01,
			Low:       price * 0.99,
			Close:     price,
			Volume:    1_000_000,
			Seq:       int64(i),
		})
	}
	return bars
}

func sweepOptions() Options {
	return Options{
		Start:          time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		InitialCapital: 100_000,
		Workers:        4,
		Cost:           execution.Config{SlippageBps: 5, CommissionPerShr: 0.005},
	}
}

// Overlapping configurations share feature computations: with one symbol and
// one feature-window combination, only the first run computes.
func TestCoordinatorSharedCache(t *testing.T) {
	bars := map[string][]domain.Bar{"AAPL": sweepBars("AAPL", 60)}
	fp := feature.Params{ShortWindow: 5, LongWindow: 20, VolWindow: 10}
	configs := []RunConfig{
		{Tag: "a", Strategy: "sma-cross", StrategyParams: map[string]float64{"size": 100}, Feature: fp},
		{Tag: "b", Strategy: "sma-cross", StrategyParams: map[string]float64{"size": 200}, Feature: fp},
		{Tag: "c", Strategy: "momentum", StrategyParams: map[string]float64{"entry": 0.01, "size": 100}, Feature: fp},
	}

	shared := cache.New(0)
	coord := NewCoordinator(bars, builtins.Defaults(), shared, sweepOptions(), nil)
	results, err := coord.Run(context.Background(), configs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, res := range results {
		require.Equal(t, configs[i].Tag, res.ConfigTag)
		require.Equal(t, domain.RunCompleted, res.Status)
	}

	stats := shared.Stats()
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, int64(2), stats.Hits)

	// Cache transparency: the same configs over a cold cache per run produce
	// identical results.
	for i, rc := range configs {
		cold := NewCoordinator(bars, builtins.Defaults(), cache.New(0), sweepOptions(), nil)
		res, err := cold.Run(context.Background(), []RunConfig{rc})
		require.NoError(t, err)
		require.Equal(t, results[i], res[0])
	}
}

// A failed run never aborts its siblings, and every config reports a result.
func TestCoordinatorFailureIsolation(t *testing.T) {
	bars := map[string][]domain.Bar{"AAPL": sweepBars("AAPL", 60)}
	good := feature.Params{ShortWindow: 5, LongWindow: 20, VolWindow: 10}
	bad := feature.Params{ShortWindow: 20, LongWindow: 5, VolWindow: 10}

	configs := []RunConfig{
		{Tag: "good-1", Strategy: "sma-cross", StrategyParams: map[string]float64{"size": 100}, Feature: good},
		{Tag: "bad-params", Strategy: "sma-cross", StrategyParams: map[string]float64{"size": 100}, Feature: bad},
		{Tag: "bad-strategy", Strategy: "no-such-strategy", Feature: good},
		{Tag: "good-2", Strategy: "momentum", StrategyParams: map[string]float64{"entry": 0.01, "size": 100}, Feature: good},
	}

	coord := NewCoordinator(bars, builtins.Defaults(), cache.New(0), sweepOptions(), nil)
	results, err := coord.Run(context.Background(), configs)
	require.NoError(t, err)
	require.Len(t, results, 4)

	require.Equal(t, domain.RunCompleted, results[0].Status)
	require.Equal(t, domain.RunCompleted, results[3].Status)

	require.Equal(t, domain.RunFailed, results[1].Status)
	require.Equal(t, domain.CauseExtractorFault, results[1].Failure.Cause)

	require.Equal(t, domain.RunFailed, results[2].Status)
	require.Equal(t, domain.CauseInvalidConfig, results[2].Failure.Cause)
}

// Many configurations over one worker pool: results stay indexed by config
// regardless of the completion order.
func TestCoordinatorResultOrder(t *testing.T) {
	bars := map[string][]domain.Bar{
		"AAPL": sweepBars("AAPL", 60),
		"MSFT": sweepBars("MSFT", 60),
	}

	reg := strategy.NewRegistry()
	reg.Register("hold", func(params map[string]float64) (strategy.Strategy, error) {
		return builtins.NewSMACross(params["size"])
	})

	var configs []RunConfig
	for i := 0; i < 12; i++ {
		configs = append(configs, RunConfig{
			Tag:            fmt.Sprintf("run-%02d", i),
			Strategy:       "hold",
			StrategyParams: map[string]float64{"size": float64(10 * (i + 1))},
			Feature:        feature.Params{ShortWindow: 5, LongWindow: 20, VolWindow: 10},
		})
	}

	opts := sweepOptions()
	opts.Workers = 3
	results, err := NewCoordinator(bars, reg, cache.New(0), opts, nil).Run(context.Background(), configs)
	require.NoError(t, err)
	require.Len(t, results, len(configs))
	for i, res := range results {
		require.Equal(t, configs[i].Tag, res.ConfigTag)
		require.Equal(t, domain.RunCompleted, res.Status)
	}
}
