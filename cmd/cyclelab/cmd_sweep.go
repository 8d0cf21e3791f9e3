package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nexus-trading/cyclelab/internal/backtest"
	"github.com/nexus-trading/cyclelab/internal/report"
	"github.com/nexus-trading/cyclelab/internal/sweep"
)

var (
	swWorkers   int
	swOutput    string
	swFormat    string
	swMetric    string
	swAscending bool
)

// sweepCmd evaluates every combination of the configured parameter grid
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate the parameter grid over the full price series",
	Long: `Build the cartesian grid from the sweep section, backtest every
combination in parallel and write one result row per combination.

Examples:
  cyclelab sweep --config cyclelab.yaml
  cyclelab sweep --config cyclelab.yaml --workers 4 --format json
  cyclelab sweep --config cyclelab.yaml --metric max_drawdown`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().IntVar(&swWorkers, "workers", 0, "Override sweep.workers (0 means one per CPU)")
	sweepCmd.Flags().StringVar(&swOutput, "output", "", "Override sweep.output_path")
	sweepCmd.Flags().StringVar(&swFormat, "format", "", "Override sweep.output_format: csv, json, parquet")
	sweepCmd.Flags().StringVar(&swMetric, "metric", backtest.MetricCalmar, "Metric used to report the best combination")
	sweepCmd.Flags().BoolVar(&swAscending, "ascending", false, "Prefer the smallest metric value")
}

func runSweep(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Sweep.Workers = swWorkers
	}
	if flags.Changed("output") {
		cfg.Sweep.OutputPath = swOutput
	}
	if flags.Changed("format") {
		f, err := report.ParseFormat(swFormat)
		if err != nil {
			return err
		}
		cfg.Sweep.OutputFormat = f
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
	runner := sweep.NewRunner(gen, cfg.SweepRunner(), newObserver())
	table, runErr := runner.Run(cmd.Context(), in, cfg.Strategy, grid)
	if table == nil {
		return runErr
	}

	// Partial tables from a cancelled run are still written.
	path := cfg.Sweep.SuggestedPath()
	if err := report.WriteFile(path, cfg.Sweep.OutputFormat, table.Records()); err != nil {
		return err
	}
	log.Info().
		Str("run_id", table.RunID).
		Str("path", path).
		Int("rows", table.Len()).
		Int("failed", table.Failed()).
		Float64("robustness", table.Robustness).
		Msg("sweep: results written")

	if runErr != nil {
		return runErr
	}

	best, err := sweep.GetBestParameters(table, swMetric, swAscending)
	if err != nil {
		log.Warn().Err(err).Str("metric", swMetric).Msg("sweep: no best combination")
		return nil
	}
	value, _ := best.Metric(swMetric)
	log.Info().
		Int("index", best.Index).
		Str("params", best.Combo.String()).
		Str("metric", swMetric).
		Float64("value", value).
		Msg("sweep: best combination")
	return nil
}
