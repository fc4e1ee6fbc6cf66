// Package builtins provides the strategy implementations that ship with
// kepler and a Defaults registry containing all of them.
package builtins

import (
	"fmt"

	"kepler/internal/domain"
	"kepler/internal/feature"
	"kepler/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross holds a long position of targetSize shares while the short SMA is
// above the long SMA, and is flat otherwise. The SMAs come precomputed on
// the feature vector, so the strategy itself is stateless.
type SMACross struct {
	targetSize float64
}

// NewSMACross creates an SMACross targeting size shares when long.
func NewSMACross(size float64) (*SMACross, error) {
	if size <= 0 {
		return nil, fmt.Errorf("sma-cross: size must be positive, got %g", size)
	}
	return &SMACross{targetSize: size}, nil
}

// Name returns "sma-cross".
func (s *SMACross) Name() string { return "sma-cross" }

// OnTick emits the order that moves the position for this symbol to the
// target implied by the SMA relationship.
func (s *SMACross) OnTick(v feature.Vector, portfolio domain.PortfolioState) []domain.OrderIntent {
	var target float64
	if v.SMAShort > v.SMALong {
		target = s.targetSize
	}

	delta := target - portfolio.Position(v.Symbol)
	if delta == 0 {
		return nil
	}
	return []domain.OrderIntent{{
		Symbol:    v.Symbol,
		Size:      delta,
		Timestamp: msToTime(v.Timestamp),
	}}
}
