package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nexus-trading/cyclelab/internal/report"
	"github.com/nexus-trading/cyclelab/internal/sweep"
	"github.com/nexus-trading/cyclelab/internal/walkforward"
)

var (
	wfSplitWorkers int
	wfWorkers      int
	wfOutput       string
	wfFormat       string
	wfMetric       string
	wfPartial      bool
)

// walkforwardCmd optimises on rolling training windows and scores each
// choice on the following test window
var walkforwardCmd = &cobra.Command{
	Use:   "walkforward",
	Short: "Run a rolling walk-forward evaluation",
	Long: `Split the price series into rolling train/test windows, sweep the
parameter grid on each training window, pick the best combination by the
optimisation metric and backtest it on the test window.

Examples:
  cyclelab walkforward --config cyclelab.yaml
  cyclelab walkforward --config cyclelab.yaml --metric sharpe_ratio --partial
  cyclelab walkforward --config cyclelab.yaml --split-workers 2 --format parquet`,
	RunE: runWalkForward,
}

func init() {
	rootCmd.AddCommand(walkforwardCmd)

	f := walkforwardCmd.Flags()
	f.IntVar(&wfSplitWorkers, "split-workers", 0, "Override walk_forward.split_workers")
	f.IntVar(&wfWorkers, "workers", 0, "Override sweep.workers used inside each split")
	f.StringVar(&wfOutput, "output", "", "Override walk_forward.output_path")
	f.StringVar(&wfFormat, "format", "", "Override walk_forward.output_format: csv, json, parquet")
	f.StringVar(&wfMetric, "metric", "", "Override walk_forward.optimization_metric")
	f.BoolVar(&wfPartial, "partial", false, "Keep a shorter final test window")
}

func runWalkForward(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	if flags.Changed("split-workers") {
		cfg.WalkForward.SplitWorkers = wfSplitWorkers
	}
	if flags.Changed("workers") {
		cfg.Sweep.Workers = wfWorkers
	}
	if flags.Changed("output") {
		cfg.WalkForward.OutputPath = wfOutput
	}
	if flags.Changed("format") {
		f, err := report.ParseFormat(wfFormat)
		if err != nil {
			return err
		}
		cfg.WalkForward.OutputFormat = f
	}
	if flags.Changed("metric") {
		cfg.WalkForward.OptimizationMetric = wfMetric
	}
	if flags.Changed("partial") {
		cfg.WalkForward.AllowPartialFinalWindow = wfPartial
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	in, err := loadInputs(cfg.Data)
	if err != nil {
		return err
	}
	gen, err := lookupGenerator(cfg.Strategy.Name)
	if err != nil {
		return err
	}

	grid := sweep.BuildGrid(cfg.Sweep.Config, cfg.Strategy)
	runner := walkforward.NewRunner(gen, cfg.WalkForwardEngine(), cfg.SweepRunner(), newObserver())
	table, runErr := runner.Run(cmd.Context(), in, cfg.Strategy, grid)
	if table == nil {
		return runErr
	}

	path := cfg.WalkForwardPath()
	if err := report.WriteFile(path, cfg.WalkForward.OutputFormat, table.Records()); err != nil {
		return err
	}

	s := table.Summary
	log.Info().
		Str("run_id", table.RunID).
		Str("path", path).
		Str("metric", table.Metric).
		Int("splits", s.Splits).
		Float64("mean_in_sample", s.MeanInSample).
		Float64("mean_out_sample", s.MeanOutSample).
		Float64("efficiency", s.Efficiency).
		Float64("profitable_pct", s.ProfitablePct).
		Float64("compounded_return_pct", s.CompoundedReturnPct).
		Msg("walkforward: results written")
	return runErr
}
