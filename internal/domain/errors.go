package domain

import (
	"errors"
	"fmt"
	"time"
)

// Caller-input faults. These are surfaced immediately and never retried.
var (
	// ErrInsufficientHistory is returned by the feature extractor when the
	// input range is shorter than the minimum warm-up window.
	ErrInsufficientHistory = errors.New("insufficient history for warm-up window")

	// ErrInvalidParameter is returned when extractor parameters are out of
	// domain, e.g. a non-positive window length.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInsufficientLiquidity is returned by the execution cost model when
	// an order exceeds the configured liquidity cap. The engine records a
	// rejected order and continues the run.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)

// CacheComputationError wraps a failure that occurred inside a cache compute
// function. All concurrent waiters on the same key receive the identical
// error, and the key reverts to absent so a later request can retry.
type CacheComputationError struct {
	Key string
	Err error
}

func (e *CacheComputationError) Error() string {
	return fmt.Sprintf("cache computation for %s: %v", e.Key, e.Err)
}

func (e *CacheComputationError) Unwrap() error { return e.Err }

// FailureCause classifies why an engine run failed. Exhausting the data
// range is normal completion, not a failure.
type FailureCause string

const (
	CauseLookaheadViolation FailureCause = "lookahead_violation"
	CauseCancelled          FailureCause = "cancelled"
	CauseCostModelFault     FailureCause = "cost_model_fault"
	CauseExtractorFault     FailureCause = "extractor_fault"
	CauseInvalidConfig      FailureCause = "invalid_config"
)

// EngineFailure terminates the owning run only. At is the timestamp of the
// failing tick (zero when the run never reached its first tick), retained so
// a data problem can be told apart from a strategy or cache fault.
type EngineFailure struct {
	Cause FailureCause
	At    time.Time
	Err   error
}

func (e *EngineFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("engine failure (%s) at %s", e.Cause, e.At.Format(time.RFC3339))
	}
	return fmt.Sprintf("engine failure (%s) at %s: %v", e.Cause, e.At.Format(time.RFC3339), e.Err)
}

func (e *EngineFailure) Unwrap() error { return e.Err }
