package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/cyclelab/internal/series"
)

var baseTime = time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)

func mkSeries(vals ...float64) series.Series {
	return series.MustNew(series.DailyIndex(baseTime, len(vals)), vals)
}

func zeroCostConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialCapital = 100_000
	return cfg
}

func TestRun_ScenarioA_SingleClosedTrade(t *testing.T) {
	prices := mkSeries(100, 101, 102, 103, 104)
	positions := mkSeries(0, 1, 1, 1, 0)

	res, err := Run(prices, positions, zeroCostConfig())
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, Long, tr.Direction)
	assert.Equal(t, 101.0, tr.EntryPrice)
	assert.Equal(t, 103.0, tr.ExitPrice, "exit is priced at the bar before the flat signal")
	assert.InDelta(t, 2.0, tr.PnL, floatTol)
	assert.Equal(t, 3, tr.BarsHeld)
	assert.False(t, tr.IsOpen)

	assert.Equal(t, []float64{100_000, 100_000, 100_001, 100_002, 100_003}, res.Equity.Values)
}

func TestRun_ScenarioB_FlipsOnFlatPrices(t *testing.T) {
	prices := series.Constant(series.DailyIndex(baseTime, 10), 100)
	vals := make([]float64, 10)
	for i := range vals {
		vals[i] = 1
		if i%2 == 1 {
			vals[i] = -1
		}
	}
	positions := series.MustNew(prices.Index, vals)

	cfg := zeroCostConfig()
	cfg.Commission = 1.0

	res, err := Run(prices, positions, cfg)
	require.NoError(t, err)

	assert.Len(t, res.Trades, 10)
	assert.True(t, res.Trades[9].IsOpen)
	// One entry at bar 0 plus an exit and an entry for each of the nine flips.
	assert.Equal(t, 19, res.PositionMoves)
	assert.InDelta(t, 19.0, res.TotalCosts, floatTol)
	assert.InDelta(t, 100_000-19.0, res.Stats.Basic.FinalEquity, floatTol)

	var gross float64
	for _, tr := range res.Trades {
		gross += (tr.ExitPrice - tr.EntryPrice) * float64(tr.Direction)
	}
	assert.Equal(t, 0.0, gross, "constant prices give zero gross PnL")
	assert.InDelta(t, -19.0, res.Stats.Trades.TotalPnL, floatTol)
}

func TestRun_NoTrades(t *testing.T) {
	prices := mkSeries(100, 99, 104, 101, 107)
	positions := series.Constant(prices.Index, 0)

	cfg := zeroCostConfig()
	cfg.Commission = 2.5
	res, err := Run(prices, positions, cfg)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Equal(t, 0.0, res.Stats.Basic.TotalPnL)
	assert.Equal(t, 0.0, res.TotalCosts)
	for _, v := range res.Equity.Values {
		assert.Equal(t, cfg.InitialCapital, v)
	}
	assert.Equal(t, TradeMetrics{}, res.Stats.Trades)
}

func TestRun_EquityReconcilesBarByBar(t *testing.T) {
	prices := mkSeries(100, 102, 101, 105, 103, 103, 99, 98, 104, 106, 101)
	positions := mkSeries(1, 1, 0, -1, -1, 2, 2, 0, 1, -1, -1)

	cfg := zeroCostConfig()
	cfg.Commission = 0.75
	cfg.Slippage = 0.5
	cfg.Contracts = 3
	cfg.ContractSize = 50

	res, err := Run(prices, positions, cfg)
	require.NoError(t, err)

	cost := (0.75 + 0.5) * 3
	p, pos := prices.Values, positions.Values

	assert.InDelta(t, cfg.InitialCapital-cost, res.Equity.Values[0], floatTol)
	for i := 1; i < prices.Len(); i++ {
		pnl := pos[i-1] * (p[i] - p[i-1]) * cfg.ContractSize * float64(cfg.Contracts)
		charge := float64(positionChanges(pos[i-1], pos[i])) * cost
		got := res.Equity.Values[i] - res.Equity.Values[i-1]
		assert.InDelta(t, pnl-charge, got, 1e-6, "bar %d", i)
		assert.InDelta(t, res.Equity.Values[i]/res.Equity.Values[i-1]-1, res.Returns.Values[i], floatTol)
	}
}

func TestRun_TradePnLReconcilesWithEquity(t *testing.T) {
	// Exits happen on bars whose price equals the previous bar, so the
	// previous-bar exit convention loses no mark-to-market PnL.
	prices := mkSeries(100, 102, 105, 105, 103, 101, 101, 104, 107)
	positions := mkSeries(1, 1, 1, 0, -1, -1, 0, 1, 1)

	res, err := Run(prices, positions, zeroCostConfig())
	require.NoError(t, err)

	require.Len(t, res.Trades, 3)
	var sum float64
	for _, tr := range res.Trades {
		sum += tr.PnL
	}
	assert.InDelta(t, 10.0, sum, floatTol)
	assert.InDelta(t, res.Stats.Basic.FinalEquity-100_000, sum, floatTol)
	assert.True(t, res.Trades[2].IsOpen)
}

func TestRun_Deterministic(t *testing.T) {
	prices := mkSeries(100, 101, 99, 103, 104, 102, 100, 105)
	positions := mkSeries(0, 1, 1, -1, -1, 0, 1, 1)
	cfg := zeroCostConfig()
	cfg.Commission = 1.25

	a, err := Run(prices, positions, cfg)
	require.NoError(t, err)
	b, err := Run(prices, positions, cfg)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	report := CompareRuns(a, b, ReplayConfig{})
	assert.True(t, report.Passed)
	assert.Empty(t, report.Divergences)
}

func TestRun_ValidationErrors(t *testing.T) {
	prices := mkSeries(100, 101, 102)

	t.Run("empty prices", func(t *testing.T) {
		_, err := Run(series.Series{}, series.Series{}, zeroCostConfig())
		assert.ErrorIs(t, err, series.ErrValidation)
	})

	t.Run("index mismatch", func(t *testing.T) {
		shifted := series.MustNew(series.DailyIndex(baseTime.AddDate(0, 0, 1), 3), []float64{0, 1, 0})
		_, err := Run(prices, shifted, zeroCostConfig())
		assert.ErrorIs(t, err, series.ErrValidation)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := Run(prices, mkSeries(0, 1), zeroCostConfig())
		assert.ErrorIs(t, err, series.ErrValidation)
	})

	t.Run("non-finite position", func(t *testing.T) {
		_, err := Run(prices, mkSeries(0, math.NaN(), 1), zeroCostConfig())
		assert.ErrorIs(t, err, series.ErrValidation)
	})

	t.Run("bad contracts", func(t *testing.T) {
		cfg := zeroCostConfig()
		cfg.Contracts = 0
		_, err := Run(prices, mkSeries(0, 1, 0), cfg)
		assert.ErrorIs(t, err, series.ErrValidation)
	})
}

func TestPositionChanges(t *testing.T) {
	assert.Equal(t, 0, positionChanges(1, 1))
	assert.Equal(t, 1, positionChanges(0, 1))
	assert.Equal(t, 1, positionChanges(-1, 0))
	assert.Equal(t, 2, positionChanges(1, -1))
	assert.Equal(t, 1, positionChanges(1, 2))
}

func TestConfig_CostPerChange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Commission = 2.1
	cfg.Slippage = 0.2
	cfg.Contracts = 3
	assert.Equal(t, "6.9", cfg.CostPerChange().String())
}
