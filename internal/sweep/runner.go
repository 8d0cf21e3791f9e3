// Package sweep evaluates a strategy over every combination of a parameter
// grid and collects the results into a table.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nexus-trading/cyclelab/internal/backtest"
	"github.com/nexus-trading/cyclelab/internal/progress"
	"github.com/nexus-trading/cyclelab/internal/strategy"
)

// RunnerConfig holds runner-level settings.
type RunnerConfig struct {
	Backtest backtest.Config
	// Workers bounds concurrent combinations. Defaults to runtime.NumCPU()
	// if zero or negative.
	Workers int
}

// Runner evaluates parameter grids. It holds no per-run state and may be
// shared between goroutines.
type Runner struct {
	gen      strategy.SignalGenerator
	config   RunnerConfig
	observer progress.Observer
}

// NewRunner creates a sweep runner. observer may be nil.
func NewRunner(gen strategy.SignalGenerator, config RunnerConfig, observer progress.Observer) *Runner {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	return &Runner{
		gen:      gen,
		config:   config,
		observer: progress.OrNop(observer),
	}
}

// Workers returns the worker bound in effect.
func (r *Runner) Workers() int { return r.config.Workers }

// Run evaluates every combination of grid against in. A combination that
// fails becomes a NaN row; the table always has len(grid) rows unless ctx
// is cancelled, in which case the rows completed so far are returned along
// with ctx.Err().
func (r *Runner) Run(ctx context.Context, in strategy.Inputs, base strategy.Config, grid []Combo) (*Table, error) {
	if err := r.config.Backtest.Validate(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	started := time.Now()
	r.observer.SweepStarted(progress.SweepStart{
		RunID:        runID,
		Combinations: len(grid),
		Workers:      r.config.Workers,
	})

	rows := make([]Row, len(grid))
	completed := make([]bool, len(grid))

	var g errgroup.Group
	g.SetLimit(r.config.Workers)
	for i, combo := range grid {
		if ctx.Err() != nil {
			break
		}
		i, combo := i, combo
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			row, ok := r.evaluate(ctx, runID, i, len(grid), combo, base, in)
			rows[i], completed[i] = row, ok
			return nil
		})
	}
	_ = g.Wait()

	table := newTable(runID, rows)
	err := ctx.Err()
	if err != nil {
		kept := make([]Row, 0, len(rows))
		for i, ok := range completed {
			if ok {
				kept = append(kept, rows[i])
			}
		}
		table = newTable(runID, kept)
	}

	r.observer.SweepFinished(progress.SweepEnd{
		RunID:     runID,
		Total:     len(grid),
		Completed: table.Len(),
		Failed:    table.Failed(),
		Duration:  time.Since(started),
		Err:       err,
	})
	return table, err
}

// evaluate runs one combination. The bool is false when the combination
// was interrupted by cancellation and should not be reported.
func (r *Runner) evaluate(ctx context.Context, runID string, index, total int, combo Combo, base strategy.Config, in strategy.Inputs) (row Row, ok bool) {
	started := time.Now()
	var trades int

	defer func() {
		if p := recover(); p != nil {
			row, ok = failedRow(index, combo, fmt.Errorf("panic: %v", p)), true
		}
		if !ok {
			return
		}
		ev := progress.Combination{
			RunID:    runID,
			Index:    index,
			Total:    total,
			Params:   combo.String(),
			Trades:   trades,
			Metric:   row.Stats.Basic.ReturnPct,
			Duration: time.Since(started),
		}
		if row.Failed() {
			ev.Err = errors.New(row.Err)
		}
		r.observer.CombinationDone(ev)
	}()

	cfg := combo.Apply(base)
	positions, err := r.gen.Generate(ctx, cfg, in)
	if err != nil {
		if ctx.Err() != nil {
			return Row{}, false
		}
		return failedRow(index, combo, fmt.Errorf("generate: %w", err)), true
	}

	res, err := backtest.Run(in.Prices, positions, r.config.Backtest)
	if err != nil {
		return failedRow(index, combo, fmt.Errorf("backtest: %w", err)), true
	}
	trades = len(res.Trades)
	return Row{Index: index, Combo: combo, Stats: res.Stats}, true
}
