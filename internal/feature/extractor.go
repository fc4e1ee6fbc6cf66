// Package feature turns raw time-ordered bars into feature vectors. The
// transform is a pure function of its inputs: identical bars and parameters
// always produce identical vectors, which is what makes the feature cache
// safe to share across concurrent backtest runs.
package feature

import (
	"fmt"
	"math"

	"kepler/internal/domain"
)

// Version identifies the extraction semantics. Bump it whenever the meaning
// of any emitted field changes, so stale cache keys can never alias new ones.
const Version = 2

// Params configures one extraction. Windows are in bars.
type Params struct {
	ShortWindow int `yaml:"short_window"`
	LongWindow  int `yaml:"long_window"`
	VolWindow   int `yaml:"vol_window"`
}

// Validate checks that the parameters are in domain.
func (p Params) Validate() error {
	if p.ShortWindow <= 0 || p.LongWindow <= 0 || p.VolWindow <= 0 {
		return fmt.Errorf("%w: windows must be positive (short=%d long=%d vol=%d)",
			domain.ErrInvalidParameter, p.ShortWindow, p.LongWindow, p.VolWindow)
	}
	if p.ShortWindow >= p.LongWindow {
		return fmt.Errorf("%w: short window %d must be below long window %d",
			domain.ErrInvalidParameter, p.ShortWindow, p.LongWindow)
	}
	return nil
}

// WarmUp returns the minimum number of bars required before the first vector
// can be emitted. Returns need one prior close, volatility needs VolWindow
// returns, and the long SMA needs LongWindow closes.
func (p Params) WarmUp() int {
	return max(p.LongWindow, p.VolWindow+1)
}

// Vector is one feature sample, valid as-of Timestamp. An entry at time T
// depends only on bars with timestamps <= T.
type Vector struct {
	Symbol     string
	Timestamp  int64 // Unix ms, matches the bar it derives from
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Returns    float64
	Volatility float64
	Momentum   float64
	SMAShort   float64
	SMALong    float64
}

// Extract computes one Vector per input bar after the warm-up window. Bars
// must be a single symbol in non-decreasing timestamp order. It fails with
// ErrInvalidParameter for out-of-domain params and ErrInsufficientHistory
// when fewer than WarmUp() bars are supplied.
func Extract(bars []domain.Bar, p Params) ([]Vector, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	warm := p.WarmUp()
	if len(bars) < warm {
		return nil, fmt.Errorf("%w: have %d bars, need %d", domain.ErrInsufficientHistory, len(bars), warm)
	}

	out := make([]Vector, 0, len(bars)-warm+1)
	for i := warm - 1; i < len(bars); i++ {
		out = append(out, vectorAt(bars, i, p))
	}
	return out, nil
}

// vectorAt computes the feature vector for bars[i] using only bars[...i].
func vectorAt(bars []domain.Bar, i int, p Params) Vector {
	b := bars[i]
	v := Vector{
		Symbol:    b.Symbol,
		Timestamp: b.Timestamp.UnixMilli(),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    float64(b.Volume),
	}

	v.Returns = singleReturn(bars, i)

	// Volatility: stddev of the last VolWindow single-bar returns.
	var sum, sumSq float64
	for j := i - p.VolWindow + 1; j <= i; j++ {
		r := singleReturn(bars, j)
		sum += r
		sumSq += r * r
	}
	n := float64(p.VolWindow)
	mean := sum / n
	if variance := sumSq/n - mean*mean; variance > 0 {
		v.Volatility = math.Sqrt(variance)
	}

	// Momentum: return over the volatility window.
	if base := bars[i-p.VolWindow].Close; base != 0 {
		v.Momentum = b.Close/base - 1
	}

	v.SMAShort = smaAt(bars, i, p.ShortWindow)
	v.SMALong = smaAt(bars, i, p.LongWindow)
	return v
}

func singleReturn(bars []domain.Bar, i int) float64 {
	if i == 0 {
		return 0
	}
	prev := bars[i-1].Close
	if prev == 0 {
		return 0
	}
	return (bars[i].Close - prev) / prev
}

func smaAt(bars []domain.Bar, i, window int) float64 {
	var sum float64
	for j := i - window + 1; j <= i; j++ {
		sum += bars[j].Close
	}
	return sum / float64(window)
}
