package walkforward

import (
	"math"

	"github.com/nexus-trading/cyclelab/internal/backtest"
	"github.com/nexus-trading/cyclelab/internal/report"
	"github.com/nexus-trading/cyclelab/internal/sweep"
)

// Row is the outcome of one split: the combination chosen in-sample and
// how it fared out-of-sample. Err is set when the out-of-sample pass
// failed; OutSample is then NaN.
type Row struct {
	Split              Split
	Combo              sweep.Combo
	InSample           backtest.Stats
	OutSample          backtest.Stats
	InSampleRobustness float64
	OutSampleTrades    int
	SweepRunID         string
	Err                string
}

// Summary aggregates a walk-forward table.
type Summary struct {
	Splits        int
	MeanInSample  float64 // mean optimisation metric over training windows
	MeanOutSample float64 // mean optimisation metric over test windows
	// Efficiency is MeanOutSample / MeanInSample, 0 when the in-sample mean is 0.
	Efficiency          float64
	ProfitablePct       float64 // share of test windows with positive PnL, in percent
	CompoundedReturnPct float64 // test-window returns chained together, in percent
}

// Table is the result of one walk-forward run, rows in split order.
type Table struct {
	RunID   string
	Metric  string
	Rows    []Row
	Summary Summary
}

func newTable(runID, metric string, rows []Row) *Table {
	return &Table{RunID: runID, Metric: metric, Rows: rows, Summary: summarize(metric, rows)}
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

func summarize(metric string, rows []Row) Summary {
	s := Summary{Splits: len(rows)}
	var isVals, osVals []float64
	profitable, evaluated := 0, 0
	growth := 1.0
	for _, r := range rows {
		if v, _ := r.InSample.Metric(metric); finite(v) {
			isVals = append(isVals, v)
		}
		if r.OutSample.Failed() {
			continue
		}
		if v, _ := r.OutSample.Metric(metric); finite(v) {
			osVals = append(osVals, v)
		}
		evaluated++
		if r.OutSample.Basic.TotalPnL > 0 {
			profitable++
		}
		growth *= 1 + r.OutSample.Basic.ReturnPct/100
	}

	s.MeanInSample = mean(isVals)
	s.MeanOutSample = mean(osVals)
	if s.MeanInSample != 0 {
		s.Efficiency = s.MeanOutSample / s.MeanInSample
	}
	if evaluated > 0 {
		s.ProfitablePct = 100 * float64(profitable) / float64(evaluated)
		s.CompoundedReturnPct = (growth - 1) * 100
	}
	return s
}

// Records flattens the table for a report sink.
func (t *Table) Records() []report.WalkForwardRecord {
	out := make([]report.WalkForwardRecord, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = report.WalkForwardRecord{
			RunID:                t.RunID,
			Split:                int64(r.Split.Index),
			TrainStart:           r.Split.TrainFrom.UnixMilli(),
			TrainEnd:             r.Split.TrainTo.UnixMilli(),
			TestStart:            r.Split.TestFrom.UnixMilli(),
			TestEnd:              r.Split.TestTo.UnixMilli(),
			TrainBars:            int64(r.Split.TrainBars()),
			TestBars:             int64(r.Split.TestBars()),
			CycleLength:          int64(r.Combo.CycleLength),
			Displacement:         int64(r.Combo.Displacement),
			CotLongThreshold:     r.Combo.CotLongThreshold,
			CotShortThreshold:    r.Combo.CotShortThreshold,
			SeasonalScoreMinimum: int64(r.Combo.SeasonalScoreMinimum),
			InSampleRobustness:   r.InSampleRobustness,
			InSample:             report.MetricsFrom(r.InSample),
			OutSample:            report.MetricsFrom(r.OutSample),
			Error:                r.Err,
		}
	}
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
