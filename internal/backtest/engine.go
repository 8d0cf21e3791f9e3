package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexus-trading/cyclelab/internal/series"
)

// Result holds the outputs of one backtest run. It is owned by the caller
// and never modified by the engine after Run returns.
type Result struct {
	Config        Config
	Equity        series.Series // starts from InitialCapital less any bar-0 entry cost
	Returns       series.Series // bar-over-bar fractional change of Equity
	Trades        []TradeRecord
	TotalCosts    float64 // sum of all transaction costs charged
	PositionMoves int     // number of position changes charged a cost
	Stats         Stats
}

// Run simulates PnL bar by bar from a price series and a position series.
//
// For bar i > 0 the mark-to-market PnL is
// positions[i-1] * (prices[i] - prices[i-1]) * contract_size * contracts.
// Whenever the position changes a transaction cost is charged: one change to
// enter from flat, one to exit to flat, two to flip sign, one to resize on
// the same side. Run is deterministic: identical inputs give identical
// outputs.
func Run(prices, positions series.Series, cfg Config) (*Result, error) {
	if err := validateInputs(prices, positions, cfg); err != nil {
		return nil, err
	}

	n := prices.Len()
	p := prices.Values
	pos := positions.Values

	costPerChange := cfg.CostPerChange()
	pv := cfg.pointValue()

	equity := make([]float64, n)
	returns := make([]float64, n)
	totalCost := decimal.Zero
	moves := 0

	capital := cfg.InitialCapital

	if c := positionChanges(0, pos[0]); c > 0 {
		charge := costPerChange.Mul(decimal.NewFromInt(int64(c)))
		capital -= charge.InexactFloat64()
		totalCost = totalCost.Add(charge)
		moves += c
	}
	equity[0] = capital
	returns[0] = equity[0]/cfg.InitialCapital - 1

	for i := 1; i < n; i++ {
		capital += pos[i-1] * (p[i] - p[i-1]) * pv

		if c := positionChanges(pos[i-1], pos[i]); c > 0 {
			charge := costPerChange.Mul(decimal.NewFromInt(int64(c)))
			capital -= charge.InexactFloat64()
			totalCost = totalCost.Add(charge)
			moves += c
		}

		equity[i] = capital
		if equity[i-1] != 0 {
			returns[i] = equity[i]/equity[i-1] - 1
		} else {
			returns[i] = math.NaN()
		}
	}

	trades := extractTrades(prices, positions, cfg)

	res := &Result{
		Config:        cfg,
		Equity:        series.Series{Index: cloneIndex(prices), Values: equity},
		Returns:       series.Series{Index: cloneIndex(prices), Values: returns},
		Trades:        trades,
		TotalCosts:    totalCost.InexactFloat64(),
		PositionMoves: moves,
	}
	res.Stats = Stats{
		Basic:  ComputeBasicMetrics(equity, cfg.InitialCapital, float64(cfg.PeriodsPerYear)),
		Trades: ComputeTradeMetrics(trades),
	}
	return res, nil
}

// positionChanges counts the cost-bearing changes between two consecutive
// positions.
func positionChanges(prev, cur float64) int {
	if prev == cur {
		return 0
	}
	pd, cd := directionOf(prev), directionOf(cur)
	if pd != 0 && cd != 0 && pd != cd {
		return 2
	}
	return 1
}

func validateInputs(prices, positions series.Series, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if prices.Empty() {
		return fmt.Errorf("%w: price series is empty", series.ErrValidation)
	}
	if err := prices.Validate(); err != nil {
		return fmt.Errorf("prices: %w", err)
	}
	if err := positions.Validate(); err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	if err := series.RequireSameIndex(prices, positions); err != nil {
		return fmt.Errorf("prices vs positions: %w", err)
	}
	for i, v := range prices.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite price at bar %d", series.ErrValidation, i)
		}
	}
	for i, v := range positions.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite position at bar %d", series.ErrValidation, i)
		}
	}
	return nil
}

func cloneIndex(s series.Series) []time.Time {
	idx := make([]time.Time, len(s.Index))
	copy(idx, s.Index)
	return idx
}
