package sweep

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/cyclelab/internal/backtest"
)

func rowWith(index int, sharpe, totalPnL float64) Row {
	return Row{
		Index: index,
		Combo: Combo{CycleLength: 10 * (index + 1)},
		Stats: backtest.Stats{Basic: backtest.BasicMetrics{SharpeRatio: sharpe, TotalPnL: totalPnL, ReturnPct: totalPnL / 1000}},
	}
}

func TestGetBestParameters_Descending(t *testing.T) {
	table := newTable("t", []Row{
		rowWith(0, 0.5, 100),
		rowWith(1, 1.5, 50),
		failedRow(2, Combo{CycleLength: 30}, errors.New("boom")),
		rowWith(3, 1.5, 75),
	})

	best, err := GetBestParameters(table, backtest.MetricSharpe, false)
	require.NoError(t, err)
	assert.Equal(t, 1, best.Index, "ties go to the first row")

	best, err = GetBestParameters(table, backtest.MetricTotalPnL, false)
	require.NoError(t, err)
	assert.Equal(t, 0, best.Index)
}

func TestGetBestParameters_Ascending(t *testing.T) {
	table := newTable("t", []Row{
		rowWith(0, 0.5, 100),
		rowWith(1, -0.2, 50),
		rowWith(2, -0.2, 20),
	})
	best, err := GetBestParameters(table, backtest.MetricSharpe, true)
	require.NoError(t, err)
	assert.Equal(t, 1, best.Index)
}

func TestGetBestParameters_InfinityWins(t *testing.T) {
	rows := []Row{rowWith(0, 1, 1), rowWith(1, 1, 1)}
	rows[0].Stats.Basic.CalmarRatio = 3
	rows[1].Stats.Basic.CalmarRatio = math.Inf(1)
	best, err := GetBestParameters(newTable("t", rows), backtest.MetricCalmar, false)
	require.NoError(t, err)
	assert.Equal(t, 1, best.Index)
}

func TestGetBestParameters_Errors(t *testing.T) {
	table := newTable("t", []Row{rowWith(0, 1, 1)})
	_, err := GetBestParameters(table, "alpha", false)
	assert.ErrorIs(t, err, ErrUnknownMetric)

	allFailed := newTable("t", []Row{
		failedRow(0, Combo{}, errors.New("a")),
		failedRow(1, Combo{}, errors.New("b")),
	})
	_, err = GetBestParameters(allFailed, backtest.MetricCalmar, false)
	assert.ErrorIs(t, err, ErrNoViableCombination)

	_, err = GetBestParameters(newTable("t", nil), backtest.MetricCAGR, false)
	assert.ErrorIs(t, err, ErrNoViableCombination)
}

func TestTable_ColumnAndRecords(t *testing.T) {
	table := newTable("run-9", []Row{
		rowWith(0, 0.5, 100),
		failedRow(1, Combo{CycleLength: 20, Displacement: 3}, errors.New("boom")),
	})
	assert.Equal(t, 1, table.Failed())

	col, err := table.Column(backtest.MetricSharpe)
	require.NoError(t, err)
	assert.Equal(t, 0.5, col[0])
	assert.True(t, math.IsNaN(col[1]))

	_, err = table.Column("nope")
	assert.ErrorIs(t, err, ErrUnknownMetric)

	recs := table.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "run-9", recs[1].RunID)
	assert.Equal(t, int64(20), recs[1].CycleLength)
	assert.Equal(t, int64(3), recs[1].Displacement)
	assert.Equal(t, "boom", recs[1].Error)
	assert.True(t, math.IsNaN(recs[1].Metrics.FinalEquity))
	assert.Equal(t, 100.0, recs[0].Metrics.TotalPnL)
}

func TestTable_RobustnessIgnoresFailedRows(t *testing.T) {
	rows := []Row{rowWith(0, 1, 100), rowWith(1, 1, 200)}
	rows[0].Stats.Basic.CalmarRatio = 1
	rows[1].Stats.Basic.CalmarRatio = 2
	clean := newTable("a", rows)
	withFailure := newTable("b", append(rows, failedRow(2, Combo{}, errors.New("x"))))

	assert.Equal(t, backtest.RobustnessScore([]backtest.BasicMetrics{rows[0].Stats.Basic, rows[1].Stats.Basic}), clean.Robustness)
	assert.Equal(t, clean.Robustness, withFailure.Robustness)
	assert.Greater(t, clean.Robustness, 0.0)
}
