package sweep

import (
	"errors"
	"fmt"
	"math"

	"github.com/nexus-trading/cyclelab/internal/backtest"
	"github.com/nexus-trading/cyclelab/internal/report"
)

var (
	// ErrUnknownMetric is returned when selecting on a metric the table
	// does not carry.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrNoViableCombination is returned when every row is NaN for the
	// selection metric.
	ErrNoViableCombination = errors.New("no viable combination")
)

// Row is one evaluated combination. A failed combination keeps NaN stats
// and the error text.
type Row struct {
	Index int
	Combo Combo
	Stats backtest.Stats
	Err   string
}

// Failed reports whether the combination could not be evaluated.
func (r Row) Failed() bool { return r.Err != "" }

// Metric returns the named metric of the row.
func (r Row) Metric(name string) (float64, bool) { return r.Stats.Metric(name) }

func failedRow(index int, combo Combo, err error) Row {
	return Row{Index: index, Combo: combo, Stats: backtest.NaNStats(), Err: err.Error()}
}

// Table is the result of one sweep. Rows are in grid order.
type Table struct {
	RunID      string
	Rows       []Row
	Robustness float64
}

func newTable(runID string, rows []Row) *Table {
	t := &Table{RunID: runID, Rows: rows}
	basic := make([]backtest.BasicMetrics, len(rows))
	for i, r := range rows {
		basic[i] = r.Stats.Basic
	}
	t.Robustness = backtest.RobustnessScore(basic)
	return t
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Failed counts rows that carry an error.
func (t *Table) Failed() int {
	n := 0
	for _, r := range t.Rows {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Column returns one metric for every row.
func (t *Table) Column(metric string) ([]float64, error) {
	if !backtest.IsMetric(metric) {
		return nil, fmt.Errorf("sweep: %q: %w", metric, ErrUnknownMetric)
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i], _ = r.Metric(metric)
	}
	return out, nil
}

// Records flattens the table for a report sink.
func (t *Table) Records() []report.SweepRecord {
	out := make([]report.SweepRecord, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = report.SweepRecord{
			RunID:                t.RunID,
			Index:                int64(r.Index),
			CycleLength:          int64(r.Combo.CycleLength),
			Displacement:         int64(r.Combo.Displacement),
			CotLongThreshold:     r.Combo.CotLongThreshold,
			CotShortThreshold:    r.Combo.CotShortThreshold,
			SeasonalScoreMinimum: int64(r.Combo.SeasonalScoreMinimum),
			Metrics:              report.MetricsFrom(r.Stats),
			Error:                r.Err,
		}
	}
	return out
}

// GetBestParameters returns the row with the largest (or, when ascending,
// smallest) value of metric. NaN rows are skipped and ties go to the row
// seen first.
func GetBestParameters(t *Table, metric string, ascending bool) (Row, error) {
	if !backtest.IsMetric(metric) {
		return Row{}, fmt.Errorf("sweep: %q: %w", metric, ErrUnknownMetric)
	}

	best := -1
	var bestVal float64
	for i, r := range t.Rows {
		v, _ := r.Metric(metric)
		if math.IsNaN(v) {
			continue
		}
		if best < 0 || (ascending && v < bestVal) || (!ascending && v > bestVal) {
			best, bestVal = i, v
		}
	}
	if best < 0 {
		return Row{}, fmt.Errorf("sweep: %s: %w", metric, ErrNoViableCombination)
	}
	return t.Rows[best], nil
}
