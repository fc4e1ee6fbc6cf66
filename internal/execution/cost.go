// Package execution maps order intents to realized fills under a
// configurable cost model: directional slippage, size-based market impact,
// commission, a participation-based liquidity cap, and optional seeded noise.
package execution

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"kepler/internal/domain"
)

// Config parameterizes the cost model. The same config and inputs always
// produce the same fill; NoiseBps adds a price perturbation drawn from a
// generator seeded by (Seed, symbol, timestamp, size), so noise is
// reproducible run to run.
type Config struct {
	SlippageBps      float64 `yaml:"slippage_bps"`
	ImpactBpsPer100  float64 `yaml:"impact_bps_per_100"` // extra bps per 100 shares
	CommissionPerShr float64 `yaml:"commission_per_share"`
	MinCommission    float64 `yaml:"min_commission"`
	MaxParticipation float64 `yaml:"max_participation"` // fraction of bar volume; 0 = uncapped
	NoiseBps         float64 `yaml:"noise_bps"`
	Seed             uint64  `yaml:"seed"`
}

// Model applies a Config to order intents.
type Model struct {
	cfg Config
}

// NewModel creates a cost model for the given config.
func NewModel(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// Apply produces the fill for intent against the bar visible at the decision
// tick. The base price is the bar close; slippage and impact push against the
// order direction. It returns ErrInsufficientLiquidity when the intent
// exceeds the configured participation cap, in which case the engine records
// a rejected order and the run continues.
func (m *Model) Apply(intent domain.OrderIntent, bar domain.Bar) (domain.Fill, error) {
	if intent.Size == 0 {
		return domain.Fill{}, fmt.Errorf("zero-size intent for %s", intent.Symbol)
	}

	size := math.Abs(intent.Size)
	if m.cfg.MaxParticipation > 0 {
		limit := m.cfg.MaxParticipation * float64(bar.Volume)
		if size > limit {
			return domain.Fill{}, fmt.Errorf("%w: %s size %.0f exceeds cap %.0f",
				domain.ErrInsufficientLiquidity, intent.Symbol, size, limit)
		}
	}

	// Slippage in bps, against the order: buys pay up, sells receive less.
	bps := m.cfg.SlippageBps + size/100*m.cfg.ImpactBpsPer100
	price := bar.Close
	if intent.Size > 0 {
		price *= 1 + bps/10000
	} else {
		price *= 1 - bps/10000
	}

	if m.cfg.NoiseBps > 0 {
		price *= 1 + m.noise(intent)*m.cfg.NoiseBps/10000
	}

	fee := size * m.cfg.CommissionPerShr
	if fee < m.cfg.MinCommission {
		fee = m.cfg.MinCommission
	}

	return domain.Fill{
		Symbol:    intent.Symbol,
		Price:     price,
		Size:      intent.Size,
		Fee:       fee,
		Timestamp: bar.Timestamp,
	}, nil
}

// noise returns a deterministic value in [-1, 1) derived from the configured
// seed and the intent's identity.
func (m *Model) noise(intent domain.OrderIntent) float64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%g", intent.Symbol, intent.Timestamp.UnixMilli(), intent.Size)
	rng := rand.New(rand.NewPCG(m.cfg.Seed, h.Sum64()))
	return rng.Float64()*2 - 1
}
