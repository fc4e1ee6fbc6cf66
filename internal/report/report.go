// Package report turns aggregated sweep results into ranked, human-readable
// output for the analyst: a dataframe sorted by a chosen metric, a terminal
// table, and CSV export.
package report

import (
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/jedib0t/go-pretty/v6/table"

	"kepler/internal/domain"
)

// Row flattens one RunResult for tabular output. Field names become
// dataframe column names.
type Row struct {
	ConfigTag   string
	Status      string
	Cause       string
	TotalReturn float64
	MaxDrawdown float64
	Sharpe      float64
	Sortino     float64
	Volatility  float64
	Trades      int
	Rejected    int
}

// Rows flattens results preserving their order.
func Rows(results []domain.RunResult) []Row {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		row := Row{
			ConfigTag:   r.ConfigTag,
			Status:      string(r.Status),
			TotalReturn: r.Metrics.TotalReturn,
			MaxDrawdown: r.Metrics.MaxDrawdown,
			Sharpe:      r.Metrics.Sharpe,
			Sortino:     r.Metrics.Sortino,
			Volatility:  r.Metrics.Volatility,
			Trades:      r.TradeCount,
			Rejected:    r.RejectedOrders,
		}
		if r.Failure != nil {
			row.Cause = string(r.Failure.Cause)
		}
		rows = append(rows, row)
	}
	return rows
}

// Rank builds a dataframe over results sorted descending by metric (a Row
// field name, e.g. "Sharpe" or "TotalReturn").
func Rank(results []domain.RunResult, metric string) (dataframe.DataFrame, error) {
	df := dataframe.LoadStructs(Rows(results))
	if df.Error() != nil {
		return df, fmt.Errorf("building dataframe: %w", df.Error())
	}

	found := false
	for _, name := range df.Names() {
		if name == metric {
			found = true
			break
		}
	}
	if !found {
		return df, fmt.Errorf("unknown ranking metric %q", metric)
	}

	sorted := df.Arrange(dataframe.RevSort(metric))
	if sorted.Error() != nil {
		return sorted, fmt.Errorf("ranking by %s: %w", metric, sorted.Error())
	}
	return sorted, nil
}

// Render writes the top rows of a ranked dataframe as a table. topN <= 0
// renders everything.
func Render(w io.Writer, df dataframe.DataFrame, topN int) {
	records := df.Records()
	if len(records) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := make(table.Row, len(records[0]))
	for i, name := range records[0] {
		header[i] = name
	}
	t.AppendHeader(header)

	rows := records[1:]
	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}
	for _, rec := range rows {
		row := make(table.Row, len(rec))
		for i, cell := range rec {
			row[i] = cell
		}
		t.AppendRow(row)
	}
	t.Render()
}

// WriteCSV exports the dataframe as CSV.
func WriteCSV(w io.Writer, df dataframe.DataFrame) error {
	return df.WriteCSV(w)
}
