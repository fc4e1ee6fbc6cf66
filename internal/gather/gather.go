// Package gather fetches historical market data from external providers into
// the local bar store so backtests can run offline and reproducibly.
package gather

import (
	"context"
	"time"
)

// Gatherer is the interface for all data fetching processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs the fetch. It returns when the range is covered or ctx is
	// cancelled.
	Run(ctx context.Context) error
}

// DateRange is the inclusive time span to fetch.
type DateRange struct {
	Start time.Time
	End   time.Time
}
