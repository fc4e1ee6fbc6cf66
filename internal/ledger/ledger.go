// Package ledger implements deterministic portfolio accounting for one
// backtest run: cash, average-cost positions, realized and unrealized P&L.
// A Ledger is owned exclusively by its run and is never shared.
package ledger

import "kepler/internal/domain"

// Ledger tracks portfolio state under the accounting identity
//
//	cash + sum(position * mark) = initial + realized + unrealized
//
// which holds exactly (to floating-point tolerance) after every fill and
// every mark-to-market.
type Ledger struct {
	initial    float64
	cash       float64
	positions  map[string]float64
	avgCost    map[string]float64
	lastMark   map[string]float64
	realized   float64
	unrealized float64
}

// New creates a Ledger holding initialCapital in cash.
func New(initialCapital float64) *Ledger {
	return &Ledger{
		initial:   initialCapital,
		cash:      initialCapital,
		positions: make(map[string]float64),
		avgCost:   make(map[string]float64),
		lastMark:  make(map[string]float64),
	}
}

// ApplyFill updates cash, position, cost basis, and realized P&L as one
// logical mutation. Fees reduce cash and realized P&L. A fill that flips a
// position through zero closes the prior position at the fill price and
// opens the remainder with the fill price as its cost basis.
func (l *Ledger) ApplyFill(f domain.Fill) {
	l.cash -= f.Size*f.Price + f.Fee
	l.realized -= f.Fee

	prior := l.positions[f.Symbol]
	next := prior + f.Size

	switch {
	case prior == 0 || prior*f.Size > 0:
		// Opening or adding: blend the average cost.
		if next != 0 {
			l.avgCost[f.Symbol] = (prior*l.avgCost[f.Symbol] + f.Size*f.Price) / next
		}
	case prior*next < 0:
		// Flip: realize the whole prior position, reopen the remainder.
		l.realized += (f.Price - l.avgCost[f.Symbol]) * prior
		l.avgCost[f.Symbol] = f.Price
	default:
		// Reduce or full close: realize the offset shares at fill price.
		l.realized += (f.Price - l.avgCost[f.Symbol]) * -f.Size
	}

	if next == 0 {
		delete(l.positions, f.Symbol)
		delete(l.avgCost, f.Symbol)
	} else {
		l.positions[f.Symbol] = next
	}
	l.lastMark[f.Symbol] = f.Price
}

// MarkToMarket recomputes unrealized P&L from the given prices without
// mutating positions, and returns the resulting equity. Symbols missing from
// prices keep their last observed mark.
func (l *Ledger) MarkToMarket(prices map[string]float64) float64 {
	var open float64
	for sym, qty := range l.positions {
		mark, ok := prices[sym]
		if !ok {
			mark, ok = l.lastMark[sym]
			if !ok {
				mark = l.avgCost[sym]
			}
		} else {
			l.lastMark[sym] = mark
		}
		open += qty * (mark - l.avgCost[sym])
	}
	l.unrealized = open
	return l.Equity()
}

// Equity returns initial capital plus cumulative realized and unrealized
// P&L as of the last mark.
func (l *Ledger) Equity() float64 {
	return l.initial + l.realized + l.unrealized
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 { return l.cash }

// RealizedPnL returns cumulative realized P&L net of fees.
func (l *Ledger) RealizedPnL() float64 { return l.realized }

// UnrealizedPnL returns the open P&L as of the last mark-to-market.
func (l *Ledger) UnrealizedPnL() float64 { return l.unrealized }

// Snapshot returns an immutable deep copy of the current portfolio state.
// Strategies receive snapshots only, never the live ledger.
func (l *Ledger) Snapshot() domain.PortfolioState {
	positions := make(map[string]float64, len(l.positions))
	for k, v := range l.positions {
		positions[k] = v
	}
	avg := make(map[string]float64, len(l.avgCost))
	for k, v := range l.avgCost {
		avg[k] = v
	}
	return domain.PortfolioState{
		Cash:          l.cash,
		Positions:     positions,
		AvgCost:       avg,
		RealizedPnL:   l.realized,
		UnrealizedPnL: l.unrealized,
		Equity:        l.Equity(),
	}
}
