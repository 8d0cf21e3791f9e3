package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nexus-trading/cyclelab/internal/backtest"
	"github.com/nexus-trading/cyclelab/internal/observability"
	"github.com/nexus-trading/cyclelab/internal/report"
)

var (
	btTradesOut string
	btFormat    string
	btVerify    bool
)

// backtestCmd runs the configured strategy once over the full price series
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a single backtest with the configured strategy",
	Long: `Generate positions with the configured strategy, simulate them against
the price series and report equity and trade statistics.

Examples:
  cyclelab backtest --prices data/gold.csv
  cyclelab backtest --config cyclelab.yaml --trades-out out/trades.parquet --format parquet
  cyclelab backtest --config cyclelab.yaml --verify`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btTradesOut, "trades-out", "", "Write the trade list to this file")
	backtestCmd.Flags().StringVar(&btFormat, "format", string(report.DefaultFormat), "Trade list format: csv, json, parquet")
	backtestCmd.Flags().BoolVar(&btVerify, "verify", false, "Replay the run and fail if the two results differ")
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	format, err := report.ParseFormat(btFormat)
	if err != nil {
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

	run := func() (*backtest.Result, error) {
		positions, err := gen.Generate(ctx, cfg.Strategy, in)
		if err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		return backtest.Run(in.Prices, positions, cfg.BacktestEngine())
	}

	res, err := run()
	if err != nil {
		return err
	}
	registry.LookupCounter(observability.TradesTotal).Add(float64(res.Stats.Trades.NumTrades))

	b, tm := res.Stats.Basic, res.Stats.Trades
	log.Info().
		Int("bars", b.Bars).
		Float64("final_equity", b.FinalEquity).
		Float64("return_pct", b.ReturnPct).
		Float64("cagr", b.CAGR).
		Float64("max_drawdown", b.MaxDrawdown).
		Float64("sharpe_ratio", b.SharpeRatio).
		Float64("calmar_ratio", b.CalmarRatio).
		Int("trades", tm.NumTrades).
		Float64("win_rate", tm.WinRate).
		Float64("total_costs", res.TotalCosts).
		Int("position_moves", res.PositionMoves).
		Msg("backtest: done")

	if btVerify {
		replayed, err := run()
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		rep := backtest.CompareRuns(res, replayed, backtest.ReplayConfig{})
		if !rep.Passed {
			for _, d := range rep.Divergences {
				log.Error().
					Time("ts", d.Timestamp).
					Str("type", d.Type).
					Str("expected", d.Expected).
					Str("actual", d.Actual).
					Msg("backtest: divergence")
			}
			return fmt.Errorf("replay diverged: %d bars and %d trades differ", rep.MismatchedBars, rep.MismatchTrades)
		}
		log.Info().Int("bars", rep.Bars).Int("trades", rep.Trades).Msg("backtest: replay identical")
	}

	if btTradesOut != "" {
		if err := report.WriteFile(btTradesOut, format, report.TradeRows(res.Trades)); err != nil {
			return err
		}
		log.Info().Str("path", btTradesOut).Int("trades", len(res.Trades)).Msg("backtest: trades written")
	}
	return nil
}
