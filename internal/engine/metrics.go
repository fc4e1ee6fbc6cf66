package engine

import (
	"math"

	"kepler/internal/domain"
)

// computeMetrics derives the summary statistics for an equity curve. Sharpe
// and sortino are per-tick ratios with no risk-free rate; drawdown is
// measured against the running peak.
func computeMetrics(curve []domain.EquityPoint, initialCapital float64) domain.Metrics {
	if len(curve) == 0 {
		return domain.Metrics{StartEquity: initialCapital, FinalEquity: initialCapital}
	}

	returns := make([]float64, 0, len(curve)-1)
	var maxDD, peak float64
	for i, p := range curve {
		if i > 0 {
			if prev := curve[i-1].Equity; prev > 0 {
				returns = append(returns, (p.Equity-prev)/prev)
			} else {
				returns = append(returns, 0)
			}
		}
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (p.Equity - peak) / peak; dd < maxDD {
				maxDD = dd
			}
		}
	}

	m := domain.Metrics{
		StartEquity: curve[0].Equity,
		FinalEquity: curve[len(curve)-1].Equity,
		MaxDrawdown: maxDD,
	}
	if m.StartEquity > 0 {
		m.TotalReturn = m.FinalEquity/m.StartEquity - 1
	}
	if len(returns) == 0 {
		return m
	}

	mean := meanOf(returns)
	m.Volatility = stddev(returns, mean)
	if m.Volatility > 0 {
		m.Sharpe = mean / m.Volatility
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) > 0 {
		if dstd := stddev(downside, 0); dstd > 0 {
			m.Sortino = mean / dstd
		}
	}
	return m
}

func meanOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev computes the population standard deviation of xs around center.
func stddev(xs []float64, center float64) float64 {
	var sumSq float64
	for _, x := range xs {
		d := x - center
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
