package backtest

import (
	"fmt"
	"math"
	"time"
)

// ---------------------------------------------------------------------------
// ReplayConfig
// ---------------------------------------------------------------------------

// ReplayConfig sets the tolerances used when comparing two runs.
// A zero tolerance demands bit-identical values.
type ReplayConfig struct {
	EquityTolerance float64 // max |delta| per equity bar
	PnLTolerance    float64 // max |delta| per trade PnL
}

// ---------------------------------------------------------------------------
// DivergenceReport
// ---------------------------------------------------------------------------

// DivergenceReport captures differences between an original run and a
// replay of the same inputs.
type DivergenceReport struct {
	Bars           int          `json:"bars"`
	MismatchedBars int          `json:"mismatched_bars"`
	Trades         int          `json:"trades"`
	MismatchTrades int          `json:"mismatched_trades"`
	MaxEquityDelta float64      `json:"max_equity_delta"`
	FinalPnLDelta  float64      `json:"final_pnl_delta"`
	Passed         bool         `json:"passed"`
	Divergences    []Divergence `json:"divergences"`
}

// Divergence captures a single difference between two runs.
type Divergence struct {
	Timestamp time.Time `json:"ts"`
	Type      string    `json:"type"` // length_mismatch, equity_delta, return_delta, trade_mismatch
	Expected  string    `json:"expected"`
	Actual    string    `json:"actual"`
	Delta     float64   `json:"delta"`
}

// maxDivergences caps the detail list; counters keep counting past it.
const maxDivergences = 50

// ---------------------------------------------------------------------------
// CompareRuns
// ---------------------------------------------------------------------------

// CompareRuns compares two backtest results bar by bar and trade by trade.
// It backs the determinism check: running the same inputs twice must pass
// with zero tolerance.
func CompareRuns(original, replayed *Result, config ReplayConfig) *DivergenceReport {
	report := &DivergenceReport{
		Bars:   original.Equity.Len(),
		Trades: len(original.Trades),
	}

	add := func(d Divergence) {
		if len(report.Divergences) < maxDivergences {
			report.Divergences = append(report.Divergences, d)
		}
	}

	if original.Equity.Len() != replayed.Equity.Len() {
		add(Divergence{
			Type:     "length_mismatch",
			Expected: fmt.Sprintf("%d bars", original.Equity.Len()),
			Actual:   fmt.Sprintf("%d bars", replayed.Equity.Len()),
		})
		report.MismatchedBars = abs(original.Equity.Len() - replayed.Equity.Len())
	}

	n := min(original.Equity.Len(), replayed.Equity.Len())
	for i := 0; i < n; i++ {
		ts := original.Equity.Index[i]
		delta := replayed.Equity.Values[i] - original.Equity.Values[i]
		mismatch := false
		if !sameFloat(original.Equity.Values[i], replayed.Equity.Values[i], config.EquityTolerance) {
			mismatch = true
			add(Divergence{
				Timestamp: ts,
				Type:      "equity_delta",
				Expected:  fmt.Sprintf("%.6f", original.Equity.Values[i]),
				Actual:    fmt.Sprintf("%.6f", replayed.Equity.Values[i]),
				Delta:     delta,
			})
		}
		if !sameFloat(original.Returns.Values[i], replayed.Returns.Values[i], config.EquityTolerance) {
			mismatch = true
			add(Divergence{
				Timestamp: ts,
				Type:      "return_delta",
				Expected:  fmt.Sprintf("%.8f", original.Returns.Values[i]),
				Actual:    fmt.Sprintf("%.8f", replayed.Returns.Values[i]),
				Delta:     replayed.Returns.Values[i] - original.Returns.Values[i],
			})
		}
		if !ts.Equal(replayed.Equity.Index[i]) {
			mismatch = true
		}
		if mismatch {
			report.MismatchedBars++
		}
		if d := math.Abs(delta); d > report.MaxEquityDelta {
			report.MaxEquityDelta = d
		}
	}

	if len(original.Trades) != len(replayed.Trades) {
		report.MismatchTrades = abs(len(original.Trades) - len(replayed.Trades))
		add(Divergence{
			Type:     "trade_mismatch",
			Expected: fmt.Sprintf("%d trades", len(original.Trades)),
			Actual:   fmt.Sprintf("%d trades", len(replayed.Trades)),
			Delta:    float64(len(replayed.Trades) - len(original.Trades)),
		})
	}
	for i := 0; i < min(len(original.Trades), len(replayed.Trades)); i++ {
		o, r := original.Trades[i], replayed.Trades[i]
		if o.EntryIndex != r.EntryIndex || o.ExitIndex != r.ExitIndex ||
			o.Direction != r.Direction || o.IsOpen != r.IsOpen ||
			!sameFloat(o.PnL, r.PnL, config.PnLTolerance) {
			report.MismatchTrades++
			add(Divergence{
				Timestamp: o.EntryTime,
				Type:      "trade_mismatch",
				Expected:  describeTrade(o),
				Actual:    describeTrade(r),
				Delta:     r.PnL - o.PnL,
			})
		}
	}

	report.FinalPnLDelta = replayed.Stats.Basic.TotalPnL - original.Stats.Basic.TotalPnL
	report.Passed = report.MismatchedBars == 0 && report.MismatchTrades == 0
	return report
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// sameFloat compares with tolerance; NaN equals NaN so failed bars compare
// as identical.
func sameFloat(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	if tol == 0 {
		return a == b
	}
	return math.Abs(a-b) <= tol
}

func describeTrade(t TradeRecord) string {
	state := "closed"
	if t.IsOpen {
		state = "open"
	}
	return fmt.Sprintf("%s %d->%d pnl=%.6f %s", t.Direction, t.EntryIndex, t.ExitIndex, t.PnL, state)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
