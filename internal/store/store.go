// Package store defines storage interfaces for market data and sweep
// results, with Parquet and SQLite implementations.
package store

import (
	"context"
	"time"

	"kepler/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data. It is the data-access
// collaborator for the backtest engine: ReadBars delivers records in
// non-decreasing timestamp order with ingestion sequence numbers assigned.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// ResultStore persists sweep outcomes. Every run is stored with its exact
// configuration tag so parameters can be reconstructed from performance.
type ResultStore interface {
	// SaveResults persists all results of one sweep under sweepID.
	SaveResults(ctx context.Context, sweepID string, results []domain.RunResult) error

	// ListResults returns the stored results for sweepID in insertion order.
	ListResults(ctx context.Context, sweepID string) ([]domain.RunResult, error)
}
