package walkforward

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/cyclelab/internal/backtest"
	"github.com/nexus-trading/cyclelab/internal/progress"
	"github.com/nexus-trading/cyclelab/internal/series"
	"github.com/nexus-trading/cyclelab/internal/strategy"
	"github.com/nexus-trading/cyclelab/internal/sweep"
)

// Twenty bars per "year" keeps the fixtures small: 60 bars give three full
// splits of 20 training and 10 test bars.
const ppy = 20

func smallConfig() Config {
	return Config{
		InSampleYears:      1,
		OutSampleYears:     0.5,
		StepYears:          0.5,
		PeriodsPerYear:     ppy,
		MinBars:            ppy,
		EmbargoBars:        1,
		OptimizationMetric: backtest.MetricCAGR,
		SplitWorkers:       1,
	}
}

func sweepConfig() sweep.RunnerConfig {
	bt := backtest.DefaultConfig()
	bt.PeriodsPerYear = ppy
	return sweep.RunnerConfig{Backtest: bt, Workers: 2}
}

func risingInputs(n int) strategy.Inputs {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = 100 + float64(i)
	}
	return strategy.Inputs{Prices: series.MustNew(series.DailyIndex(start, n), vals)}
}

// stubGenerator: cycle 10 goes long, 20 short, 30 fails.
var stubGenerator = strategy.GeneratorFunc(func(_ context.Context, cfg strategy.Config, in strategy.Inputs) (series.Series, error) {
	switch cfg.CycleLength {
	case 10:
		return series.Constant(in.Prices.Index, 1), nil
	case 20:
		return series.Constant(in.Prices.Index, -1), nil
	}
	return series.Series{}, errors.New("no signal")
})

func grid(cycles ...int) []sweep.Combo {
	return sweep.BuildGrid(sweep.Config{CycleLengths: cycles}, strategy.Config{CycleLength: 10, Displacement: 5})
}

type splitObserver struct {
	progress.Nop
	mu       sync.Mutex
	sweeps   int
	started  int
	done     []progress.Split
	finished []progress.WalkForwardEnd
}

func (o *splitObserver) SweepStarted(progress.SweepStart) {
	o.mu.Lock()
	o.sweeps++
	o.mu.Unlock()
}

func (o *splitObserver) SplitStarted(progress.SplitStart) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *splitObserver) SplitDone(e progress.Split) {
	o.mu.Lock()
	o.done = append(o.done, e)
	o.mu.Unlock()
}

func (o *splitObserver) WalkForwardFinished(e progress.WalkForwardEnd) {
	o.mu.Lock()
	o.finished = append(o.finished, e)
	o.mu.Unlock()
}

func TestRunner_SelectsBestInSampleAndValidates(t *testing.T) {
	obs := &splitObserver{}
	r := NewRunner(stubGenerator, smallConfig(), sweepConfig(), obs)

	table, err := r.Run(context.Background(), risingInputs(60), strategy.Config{}, grid(10, 20, 30))
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, backtest.MetricCAGR, table.Metric)

	for i, row := range table.Rows {
		assert.Equal(t, i, row.Split.Index)
		assert.Equal(t, 10, row.Combo.CycleLength, "long wins on rising prices")
		assert.Greater(t, row.InSample.Basic.CAGR, 0.0)
		assert.Greater(t, row.OutSample.Basic.TotalPnL, 0.0)
		assert.Equal(t, 10, row.Split.TestBars())
		assert.Equal(t, 1, row.OutSampleTrades)
		assert.NotEmpty(t, row.SweepRunID)
		assert.Empty(t, row.Err)
	}
	// Out-of-sample long over 10 rising bars earns 9 points.
	assert.InDelta(t, 9.0, table.Rows[0].OutSample.Basic.TotalPnL, 1e-9)

	s := table.Summary
	assert.Equal(t, 3, s.Splits)
	assert.Equal(t, 100.0, s.ProfitablePct)
	assert.Greater(t, s.CompoundedReturnPct, 0.0)
	assert.Greater(t, s.MeanInSample, 0.0)
	assert.InDelta(t, s.MeanOutSample/s.MeanInSample, s.Efficiency, 1e-12)

	assert.Equal(t, 3, obs.sweeps)
	assert.Equal(t, 3, obs.started)
	require.Len(t, obs.done, 3)
	for _, e := range obs.done {
		assert.NoError(t, e.Err)
		assert.Contains(t, e.Params, "cycle_length=10")
	}
	require.Len(t, obs.finished, 1)
	assert.Equal(t, 3, obs.finished[0].Completed)
}

func TestRunner_PartialFinalWindow(t *testing.T) {
	cfg := smallConfig()
	cfg.AllowPartialFinalWindow = true
	table, err := NewRunner(stubGenerator, cfg, sweepConfig(), nil).Run(context.Background(), risingInputs(60), strategy.Config{}, grid(10, 20))
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())
	last := table.Rows[3].Split
	assert.True(t, last.Partial)
	assert.Equal(t, 9, last.TestBars())
}

func TestRunner_NoViableCombinationAborts(t *testing.T) {
	obs := &splitObserver{}
	table, err := NewRunner(stubGenerator, smallConfig(), sweepConfig(), obs).Run(context.Background(), risingInputs(60), strategy.Config{}, grid(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, sweep.ErrNoViableCombination)
	require.NotNil(t, table)
	assert.Equal(t, 0, table.Len())
	require.Len(t, obs.finished, 1)
	assert.Error(t, obs.finished[0].Err)
}

func TestRunner_OutOfSampleFailureIsRecorded(t *testing.T) {
	// Fails only on the short test windows.
	gen := strategy.GeneratorFunc(func(_ context.Context, _ strategy.Config, in strategy.Inputs) (series.Series, error) {
		if in.Prices.Len() < 15 {
			panic("window too short")
		}
		return series.Constant(in.Prices.Index, 1), nil
	})
	table, err := NewRunner(gen, smallConfig(), sweepConfig(), nil).Run(context.Background(), risingInputs(60), strategy.Config{}, grid(10))
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	for _, row := range table.Rows {
		assert.Contains(t, row.Err, "out-of-sample: panic: window too short")
		assert.True(t, row.OutSample.Failed())
		assert.False(t, row.InSample.Failed())
	}
	assert.Equal(t, 0.0, table.Summary.ProfitablePct)
	assert.Equal(t, 0.0, table.Summary.MeanOutSample)

	recs := table.Records()
	require.Len(t, recs, 3)
	assert.True(t, math.IsNaN(recs[0].OutSample.CAGR))
	assert.NotEmpty(t, recs[0].Error)
}

func TestRunner_ParallelSplitsMatchSequential(t *testing.T) {
	in := risingInputs(80)
	seq, err := NewRunner(stubGenerator, smallConfig(), sweepConfig(), nil).Run(context.Background(), in, strategy.Config{}, grid(10, 20, 30))
	require.NoError(t, err)

	cfg := smallConfig()
	cfg.SplitWorkers = 4
	par, err := NewRunner(stubGenerator, cfg, sweepConfig(), nil).Run(context.Background(), in, strategy.Config{}, grid(10, 20, 30))
	require.NoError(t, err)

	require.Equal(t, seq.Len(), par.Len())
	for i := range seq.Rows {
		assert.Equal(t, seq.Rows[i].Split, par.Rows[i].Split)
		assert.Equal(t, seq.Rows[i].Combo, par.Rows[i].Combo)
		assert.Equal(t, seq.Rows[i].InSample, par.Rows[i].InSample)
		assert.Equal(t, seq.Rows[i].OutSample, par.Rows[i].OutSample)
	}
	assert.Equal(t, seq.Summary, par.Summary)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	table, err := NewRunner(stubGenerator, smallConfig(), sweepConfig(), nil).Run(ctx, risingInputs(60), strategy.Config{}, grid(10))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, table)
	assert.Equal(t, 0, table.Len())
}

func TestRunner_FatalValidation(t *testing.T) {
	cfg := smallConfig()
	cfg.MinBars = 100
	_, err := NewRunner(stubGenerator, cfg, sweepConfig(), nil).Run(context.Background(), risingInputs(60), strategy.Config{}, grid(10))
	assert.ErrorIs(t, err, series.ErrValidation)

	cfg = smallConfig()
	cfg.OptimizationMetric = "win_rate"
	_, err = NewRunner(stubGenerator, cfg, sweepConfig(), nil).Run(context.Background(), risingInputs(60), strategy.Config{}, grid(10))
	assert.ErrorIs(t, err, series.ErrValidation)
}

func TestSummarize(t *testing.T) {
	row := func(isCAGR, osCAGR, osReturnPct, osPnL float64) Row {
		return Row{
			InSample:  backtest.Stats{Basic: backtest.BasicMetrics{CAGR: isCAGR}},
			OutSample: backtest.Stats{Basic: backtest.BasicMetrics{CAGR: osCAGR, ReturnPct: osReturnPct, TotalPnL: osPnL}},
		}
	}
	failed := Row{InSample: backtest.Stats{Basic: backtest.BasicMetrics{CAGR: 0.4}}, OutSample: backtest.NaNStats()}

	s := summarize(backtest.MetricCAGR, []Row{
		row(0.2, 0.1, 10, 1000),
		row(0.4, -0.1, -5, -500),
		failed,
	})
	assert.Equal(t, 3, s.Splits)
	assert.InDelta(t, (0.2+0.4+0.4)/3, s.MeanInSample, 1e-12)
	assert.InDelta(t, 0.0, s.MeanOutSample, 1e-12)
	assert.Equal(t, 0.0, s.Efficiency)
	assert.Equal(t, 50.0, s.ProfitablePct)
	assert.InDelta(t, (1.10*0.95-1)*100, s.CompoundedReturnPct, 1e-9)

	assert.Equal(t, Summary{}, summarize(backtest.MetricCAGR, nil))
}
