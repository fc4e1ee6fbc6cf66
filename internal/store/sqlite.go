package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kepler/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

// SQLiteStore implements ResultStore backed by a SQLite database. It stores
// one row per run: the configuration tag, outcome, failure cause, and summary
// metrics. Equity curves and final portfolios stay in-process; the sink
// exists so the analyst can reconstruct which parameters produced which
// performance after the sweep ends.
type SQLiteStore struct {
	db *sql.DB
}

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	sweep_id        TEXT NOT NULL,
	config_tag      TEXT NOT NULL,
	status          TEXT NOT NULL,
	failure_cause   TEXT,
	failure_at      INTEGER,
	total_return    REAL,
	max_drawdown    REAL,
	sharpe          REAL,
	sortino         REAL,
	volatility      REAL,
	start_equity    REAL,
	final_equity    REAL,
	trade_count     INTEGER,
	rejected_orders INTEGER,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_sweep ON runs(sweep_id);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(runsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveResults persists all results of one sweep in a single transaction.
func (s *SQLiteStore) SaveResults(ctx context.Context, sweepID string, results []domain.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO runs (
			sweep_id, config_tag, status, failure_cause, failure_at,
			total_return, max_drawdown, sharpe, sortino, volatility,
			start_equity, final_equity, trade_count, rejected_orders, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, r := range results {
		var cause sql.NullString
		var failedAt sql.NullInt64
		if r.Failure != nil {
			cause = sql.NullString{String: string(r.Failure.Cause), Valid: true}
			if !r.Failure.At.IsZero() {
				failedAt = sql.NullInt64{Int64: r.Failure.At.UnixMilli(), Valid: true}
			}
		}
		if _, err := stmt.ExecContext(ctx,
			sweepID, r.ConfigTag, string(r.Status), cause, failedAt,
			r.Metrics.TotalReturn, r.Metrics.MaxDrawdown, r.Metrics.Sharpe,
			r.Metrics.Sortino, r.Metrics.Volatility,
			r.Metrics.StartEquity, r.Metrics.FinalEquity,
			r.TradeCount, r.RejectedOrders, now,
		); err != nil {
			return fmt.Errorf("inserting run %s: %w", r.ConfigTag, err)
		}
	}
	return tx.Commit()
}

// ListResults returns the stored results for sweepID in insertion order.
func (s *SQLiteStore) ListResults(ctx context.Context, sweepID string) ([]domain.RunResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT config_tag, status, failure_cause, failure_at,
		       total_return, max_drawdown, sharpe, sortino, volatility,
		       start_equity, final_equity, trade_count, rejected_orders
		FROM runs WHERE sweep_id = ? ORDER BY id`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.RunResult
	for rows.Next() {
		var r domain.RunResult
		var status string
		var cause sql.NullString
		var failedAt sql.NullInt64
		if err := rows.Scan(&r.ConfigTag, &status, &cause, &failedAt,
			&r.Metrics.TotalReturn, &r.Metrics.MaxDrawdown, &r.Metrics.Sharpe,
			&r.Metrics.Sortino, &r.Metrics.Volatility,
			&r.Metrics.StartEquity, &r.Metrics.FinalEquity,
			&r.TradeCount, &r.RejectedOrders,
		); err != nil {
			return nil, err
		}
		r.Status = domain.RunStatus(status)
		if cause.Valid {
			failure := &domain.EngineFailure{Cause: domain.FailureCause(cause.String)}
			if failedAt.Valid {
				failure.At = time.UnixMilli(failedAt.Int64).UTC()
			}
			r.Failure = failure
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
