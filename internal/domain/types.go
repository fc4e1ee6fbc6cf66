// Package domain defines the core value types shared across the kepler
// backtesting pipeline: market bars, order intents, fills, portfolio
// snapshots, and run results.
package domain

import "time"

// Market identifies which exchange universe a symbol belongs to.
type Market string

const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// Bar is a single OHLCV market record. Bars are immutable once ingested and
// ordered by (Timestamp, Symbol, Seq); Seq is the ingestion sequence number
// assigned at load time and breaks timestamp ties deterministically.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
	Seq        int64
}

// OrderIntent is a strategy's request to change a position. Size is signed:
// positive buys, negative sells. An intent is consumed by the engine within
// the tick that produced it.
type OrderIntent struct {
	Symbol    string
	Size      float64
	Timestamp time.Time
}

// Fill is the realized outcome of an OrderIntent after the execution cost
// model has been applied. Immutable.
type Fill struct {
	Symbol    string
	Price     float64
	Size      float64
	Fee       float64
	Timestamp time.Time
}

// PortfolioState is an immutable snapshot of a run's portfolio. The maps are
// deep copies; mutating a snapshot never affects the owning ledger.
type PortfolioState struct {
	Cash          float64
	Positions     map[string]float64
	AvgCost       map[string]float64
	RealizedPnL   float64
	UnrealizedPnL float64
	Equity        float64
}

// Position returns the signed position size for symbol, zero if flat.
func (p PortfolioState) Position(symbol string) float64 {
	return p.Positions[symbol]
}

// EquityPoint is one sample of the equity curve, recorded after
// mark-to-market at the end of a tick.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
	OpenPnL   float64
	ClosedPnL float64
}

// RunStatus is the lifecycle state of one backtest run.
type RunStatus string

const (
	RunInitialized RunStatus = "initialized"
	RunReplaying   RunStatus = "replaying"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
)

// Metrics holds the summary statistics computed from an equity curve.
type Metrics struct {
	TotalReturn float64
	MaxDrawdown float64
	Sharpe      float64
	Sortino     float64
	Volatility  float64
	FinalEquity float64
	StartEquity float64
}

// RunResult is the immutable outcome of one engine run. Every result carries
// the exact configuration tag that produced it so parameters can be mapped
// back to performance. Failed runs carry their EngineFailure and no final
// portfolio.
type RunResult struct {
	ConfigTag      string
	Status         RunStatus
	Failure        *EngineFailure
	Final          PortfolioState
	EquityCurve    []EquityPoint
	Metrics        Metrics
	TradeCount     int
	RejectedOrders int
}
