package ledger

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kepler/internal/domain"
)

func fill(sym string, size, price, fee float64) domain.Fill {
	return domain.Fill{Symbol: sym, Size: size, Price: price, Fee: fee, Timestamp: time.Now()}
}

// identity checks cash + sum(position*mark) = initial + realized + unrealized
// against the ledger's own last marks.
func checkIdentity(t *testing.T, l *Ledger, initial float64, marks map[string]float64) {
	t.Helper()
	equity := l.MarkToMarket(marks)

	snap := l.Snapshot()
	var marketValue float64
	for sym, qty := range snap.Positions {
		mark, ok := marks[sym]
		require.True(t, ok, "missing mark for %s", sym)
		marketValue += qty * mark
	}
	lhs := snap.Cash + marketValue
	rhs := initial + snap.RealizedPnL + snap.UnrealizedPnL
	require.InEpsilon(t, rhs, lhs, 1e-9)
	require.InEpsilon(t, rhs, equity, 1e-9)
}

func TestOpenAndClose(t *testing.T) {
	l := New(10_000)
	l.ApplyFill(fill("AAPL", 100, 50, 1))

	require.InDelta(t, 10_000-100*50-1, l.Cash(), 1e-9)
	require.InDelta(t, -1, l.RealizedPnL(), 1e-9)

	l.ApplyFill(fill("AAPL", -100, 55, 1))
	require.InDelta(t, (55.0-50.0)*100-2, l.RealizedPnL(), 1e-9)

	snap := l.Snapshot()
	require.Empty(t, snap.Positions)
	require.InDelta(t, 10_000+498, snap.Cash, 1e-9)
}

func TestAddBlendsAvgCost(t *testing.T) {
	l := New(100_000)
	l.ApplyFill(fill("AAPL", 100, 50, 0))
	l.ApplyFill(fill("AAPL", 100, 60, 0))

	snap := l.Snapshot()
	require.InDelta(t, 200, snap.Positions["AAPL"], 1e-9)
	require.InDelta(t, 55, snap.AvgCost["AAPL"], 1e-9)
	require.InDelta(t, 0, snap.RealizedPnL, 1e-9)
}

func TestPartialReduce(t *testing.T) {
	l := New(100_000)
	l.ApplyFill(fill("AAPL", 200, 50, 0))
	l.ApplyFill(fill("AAPL", -80, 58, 0))

	snap := l.Snapshot()
	require.InDelta(t, 120, snap.Positions["AAPL"], 1e-9)
	require.InDelta(t, 50, snap.AvgCost["AAPL"], 1e-9)
	require.InDelta(t, 8.0*80, snap.RealizedPnL, 1e-9)
}

func TestFlipThroughZero(t *testing.T) {
	l := New(100_000)
	l.ApplyFill(fill("AAPL", 100, 50, 0))
	l.ApplyFill(fill("AAPL", -150, 60, 0))

	// Prior 100 shares realize 10 each; the remaining short 50 reopens at 60.
	snap := l.Snapshot()
	require.InDelta(t, -50, snap.Positions["AAPL"], 1e-9)
	require.InDelta(t, 60, snap.AvgCost["AAPL"], 1e-9)
	require.InDelta(t, 1000, snap.RealizedPnL, 1e-9)

	checkIdentity(t, l, 100_000, map[string]float64{"AAPL": 60})
}

func TestShortSideAccounting(t *testing.T) {
	l := New(100_000)
	l.ApplyFill(fill("TSLA", -100, 200, 0))
	require.InDelta(t, 100_000+100*200, l.Cash(), 1e-9)

	// Covering lower is a gain for a short.
	l.ApplyFill(fill("TSLA", 100, 180, 0))
	require.InDelta(t, 20.0*100, l.RealizedPnL(), 1e-9)
	require.Empty(t, l.Snapshot().Positions)
}

func TestMarkToMarketFallbacks(t *testing.T) {
	l := New(100_000)
	l.ApplyFill(fill("AAPL", 100, 50, 0))

	// Missing price: last mark (the fill price) is used, open P&L zero.
	equity := l.MarkToMarket(map[string]float64{})
	require.InDelta(t, 100_000, equity, 1e-9)

	equity = l.MarkToMarket(map[string]float64{"AAPL": 53})
	require.InDelta(t, 100_000+300, equity, 1e-9)

	// The new mark sticks for later calls without a price.
	equity = l.MarkToMarket(map[string]float64{})
	require.InDelta(t, 100_000+300, equity, 1e-9)
}

func TestSnapshotIsImmutable(t *testing.T) {
	l := New(100_000)
	l.ApplyFill(fill("AAPL", 100, 50, 0))

	snap := l.Snapshot()
	snap.Positions["AAPL"] = -999
	snap.AvgCost["AAPL"] = 0
	snap.Cash = 0

	fresh := l.Snapshot()
	require.InDelta(t, 100, fresh.Positions["AAPL"], 1e-9)
	require.InDelta(t, 50, fresh.AvgCost["AAPL"], 1e-9)
	require.InDelta(t, 100_000-5000, fresh.Cash, 1e-9)
}

// The accounting identity must survive an arbitrary interleaving of opens,
// adds, reductions, flips, and fees across symbols.
func TestAccountingIdentityRandomized(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	symbols := []string{"AAPL", "MSFT", "TSLA"}

	l := New(1_000_000)
	marks := make(map[string]float64)
	for _, sym := range symbols {
		marks[sym] = 100
	}

	for i := 0; i < 500; i++ {
		sym := symbols[rng.IntN(len(symbols))]
		marks[sym] *= 1 + (rng.Float64()-0.5)*0.04
		size := float64(rng.IntN(400) - 200)
		if size == 0 {
			continue
		}
		fee := math.Abs(size) * 0.005
		l.ApplyFill(fill(sym, size, marks[sym], fee))
		checkIdentity(t, l, 1_000_000, marks)
	}
}
