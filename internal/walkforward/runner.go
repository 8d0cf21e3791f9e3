package walkforward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nexus-trading/cyclelab/internal/backtest"
	"github.com/nexus-trading/cyclelab/internal/progress"
	"github.com/nexus-trading/cyclelab/internal/strategy"
	"github.com/nexus-trading/cyclelab/internal/sweep"
)

// Runner performs walk-forward optimisation: for each split it sweeps the
// grid on the training window, picks the best combination by the
// optimisation metric and backtests that combination on the test window.
type Runner struct {
	gen      strategy.SignalGenerator
	sweeper  *sweep.Runner
	backtest backtest.Config
	config   Config
	observer progress.Observer
}

// NewRunner creates a walk-forward runner. The inner sweeps use sweepCfg;
// observer may be nil.
func NewRunner(gen strategy.SignalGenerator, cfg Config, sweepCfg sweep.RunnerConfig, observer progress.Observer) *Runner {
	if cfg.SplitWorkers <= 0 {
		cfg.SplitWorkers = DefaultSplitWorkers
	}
	obs := progress.OrNop(observer)
	return &Runner{
		gen:      gen,
		sweeper:  sweep.NewRunner(gen, sweepCfg, obs),
		backtest: sweepCfg.Backtest,
		config:   cfg,
		observer: obs,
	}
}

// Run walks the splits of in. A split whose sweep has no viable
// combination aborts the run with an error wrapping
// sweep.ErrNoViableCombination. On error or cancellation the rows finished
// so far are returned with the error.
func (r *Runner) Run(ctx context.Context, in strategy.Inputs, base strategy.Config, grid []sweep.Combo) (*Table, error) {
	if err := r.backtest.Validate(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	splits, err := SplitIndex(in.Prices.Index, r.config)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	started := time.Now()
	r.observer.WalkForwardStarted(progress.WalkForwardStart{
		RunID:  runID,
		Splits: len(splits),
		Metric: r.config.OptimizationMetric,
	})

	rows := make([]Row, len(splits))
	done := make([]bool, len(splits))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.SplitWorkers)
	for i, sp := range splits {
		if gctx.Err() != nil {
			break
		}
		i, sp := i, sp
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, err := r.runSplit(gctx, runID, sp, len(splits), in, base, grid)
			if err != nil {
				return err
			}
			rows[i], done[i] = row, true
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	kept := make([]Row, 0, len(rows))
	for i, ok := range done {
		if ok {
			kept = append(kept, rows[i])
		}
	}
	table := newTable(runID, r.config.OptimizationMetric, kept)

	r.observer.WalkForwardFinished(progress.WalkForwardEnd{
		RunID:     runID,
		Splits:    len(splits),
		Completed: len(kept),
		Duration:  time.Since(started),
		Err:       err,
	})
	return table, err
}

func (r *Runner) runSplit(ctx context.Context, runID string, sp Split, total int, in strategy.Inputs, base strategy.Config, grid []sweep.Combo) (Row, error) {
	started := time.Now()
	r.observer.SplitStarted(progress.SplitStart{
		RunID:     runID,
		Index:     sp.Index,
		Total:     total,
		TrainBars: sp.TrainBars(),
		TestBars:  sp.TestBars(),
	})

	row, err := r.evaluateSplit(ctx, sp, in, base, grid)

	ev := progress.Split{
		RunID:     runID,
		Index:     sp.Index,
		Total:     total,
		TrainBars: sp.TrainBars(),
		TestBars:  sp.TestBars(),
		Duration:  time.Since(started),
		Err:       err,
	}
	if err == nil {
		ev.Params = row.Combo.String()
		ev.InSample, _ = row.InSample.Metric(r.config.OptimizationMetric)
		ev.OutSample, _ = row.OutSample.Metric(r.config.OptimizationMetric)
		if row.Err != "" {
			ev.Err = errors.New(row.Err)
		}
	}
	r.observer.SplitDone(ev)
	return row, err
}

// evaluateSplit returns an error only for conditions that abort the run.
// Failures of the out-of-sample pass are recorded on the row.
func (r *Runner) evaluateSplit(ctx context.Context, sp Split, in strategy.Inputs, base strategy.Config, grid []sweep.Combo) (Row, error) {
	table, err := r.sweeper.Run(ctx, in.Slice(sp.TrainStart, sp.TrainEnd), base, grid)
	if err != nil {
		return Row{}, fmt.Errorf("walkforward: split %d: sweep: %w", sp.Index, err)
	}
	best, err := sweep.GetBestParameters(table, r.config.OptimizationMetric, false)
	if err != nil {
		return Row{}, fmt.Errorf("walkforward: split %d: %w", sp.Index, err)
	}

	row := Row{
		Split:              sp,
		Combo:              best.Combo,
		InSample:           best.Stats,
		InSampleRobustness: table.Robustness,
		SweepRunID:         table.RunID,
	}

	oos, err := r.outOfSample(ctx, best.Combo.Apply(base), in.Slice(sp.TestStart, sp.TestEnd))
	if err != nil {
		if ctx.Err() != nil {
			return Row{}, ctx.Err()
		}
		row.OutSample = backtest.NaNStats()
		row.Err = err.Error()
		return row, nil
	}
	row.OutSample = oos.Stats
	row.OutSampleTrades = len(oos.Trades)
	return row, nil
}

// outOfSample runs the chosen configuration on the test window, converting
// a panic in the generator into an error.
func (r *Runner) outOfSample(ctx context.Context, cfg strategy.Config, test strategy.Inputs) (res *backtest.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("out-of-sample: panic: %v", p)
		}
	}()

	positions, err := r.gen.Generate(ctx, cfg, test)
	if err != nil {
		return nil, fmt.Errorf("out-of-sample: generate: %w", err)
	}
	res, err = backtest.Run(test.Prices, positions, r.backtest)
	if err != nil {
		return nil, fmt.Errorf("out-of-sample: backtest: %w", err)
	}
	return res, nil
}
