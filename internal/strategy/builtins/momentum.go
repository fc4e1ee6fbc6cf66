package builtins

import (
	"fmt"
	"time"

	"kepler/internal/domain"
	"kepler/internal/feature"
	"kepler/internal/strategy"
)

var _ strategy.Strategy = (*Momentum)(nil)

// Momentum goes long targetSize shares while momentum exceeds the entry
// threshold and exits once it decays below the exit threshold. Hysteresis
// between the two thresholds avoids churning at the boundary.
type Momentum struct {
	entry      float64
	exit       float64
	targetSize float64
}

// NewMomentum creates a Momentum strategy. exit must not exceed entry.
func NewMomentum(entry, exit, size float64) (*Momentum, error) {
	if size <= 0 {
		return nil, fmt.Errorf("momentum: size must be positive, got %g", size)
	}
	if exit > entry {
		return nil, fmt.Errorf("momentum: exit threshold %g above entry %g", exit, entry)
	}
	return &Momentum{entry: entry, exit: exit, targetSize: size}, nil
}

// Name returns "momentum".
func (m *Momentum) Name() string { return "momentum" }

// OnTick emits the order that moves the position toward the threshold-implied
// target.
func (m *Momentum) OnTick(v feature.Vector, portfolio domain.PortfolioState) []domain.OrderIntent {
	held := portfolio.Position(v.Symbol)

	target := 0.0
	switch {
	case v.Momentum > m.entry:
		target = m.targetSize
	case held > 0 && v.Momentum > m.exit:
		target = held // inside the hysteresis band, hold
	}

	delta := target - held
	if delta == 0 {
		return nil
	}
	return []domain.OrderIntent{{
		Symbol:    v.Symbol,
		Size:      delta,
		Timestamp: msToTime(v.Timestamp),
	}}
}

// Defaults returns a registry with all built-in strategies registered.
// Recognized parameters:
//
//	sma-cross: size
//	momentum:  entry, exit, size
func Defaults() *strategy.Registry {
	r := strategy.NewRegistry()
	r.Register("sma-cross", func(params map[string]float64) (strategy.Strategy, error) {
		return NewSMACross(paramOr(params, "size", 100))
	})
	r.Register("momentum", func(params map[string]float64) (strategy.Strategy, error) {
		return NewMomentum(
			paramOr(params, "entry", 0.02),
			paramOr(params, "exit", 0),
			paramOr(params, "size", 100),
		)
	})
	return r
}

func paramOr(params map[string]float64, name string, def float64) float64 {
	if v, ok := params[name]; ok {
		return v
	}
	return def
}

func msToTime(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
