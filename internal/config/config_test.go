package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/cyclelab/internal/backtest"
	"github.com/nexus-trading/cyclelab/internal/report"
	"github.com/nexus-trading/cyclelab/internal/series"
	"github.com/nexus-trading/cyclelab/internal/walkforward"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "cyclelab-config-*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	_, err = tmpFile.WriteString(body)
	require.NoError(t, err)
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoadConfig(t *testing.T) {
	yaml := `
logging:
  level: "debug"
  format: "text"

data:
  prices_path: "data/gold.csv"
  periods_per_year: 52

backtest:
  initial_capital: 50000
  commission: 2.5
  slippage: 0.5
  contract_size: 100
  contracts: 2

strategy:
  name: fld
  cycle_length: 40
  displacement: 20
  cot_long_threshold: 60
  cot_short_threshold: 40

sweep:
  cycle_lengths: [20, 40, 80]
  displacements: [10, 20]
  workers: 4
  output_path: "out/sweep"
  output_format: parquet

walk_forward:
  in_sample_years: 2
  out_sample_years: 0.5
  step_years: 0.5
  min_bars: 100
  embargo_bars: 0
  optimization_metric: sharpe_ratio
  split_workers: 2
`
	cfg, err := Load(writeTemp(t, yaml))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "data/gold.csv", cfg.Data.PricesPath)
	assert.Equal(t, "close", cfg.Data.PriceColumn)

	bt := cfg.BacktestEngine()
	assert.Equal(t, 50000.0, bt.InitialCapital)
	assert.Equal(t, 2, bt.Contracts)
	assert.Equal(t, 52, bt.PeriodsPerYear)
	assert.Equal(t, "6", bt.CostPerChange().String())

	assert.Equal(t, 40, cfg.Strategy.CycleLength)
	assert.Equal(t, 20, cfg.Strategy.Displacement)
	assert.Equal(t, 60.0, cfg.Strategy.CotLongThreshold)

	assert.Equal(t, []int{20, 40, 80}, cfg.Sweep.CycleLengths)
	assert.Equal(t, report.Parquet, cfg.Sweep.OutputFormat)
	assert.Equal(t, "out/sweep/results.parquet", cfg.Sweep.SuggestedPath())
	assert.Equal(t, 4, cfg.SweepRunner().Workers)

	wf := cfg.WalkForwardEngine()
	assert.Equal(t, 2.0, wf.InSampleYears)
	assert.Equal(t, 0, wf.EmbargoBars, "explicit zero embargo is kept")
	assert.Equal(t, 52, wf.PeriodsPerYear)
	assert.Equal(t, backtest.MetricSharpe, wf.OptimizationMetric)
	assert.Equal(t, 2, wf.SplitWorkers)
}

func TestLoadConfigDefaults(t *testing.T) {
	yaml := `
data:
  prices_path: "prices.csv"
`
	cfg, err := Load(writeTemp(t, yaml))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, backtest.DefaultConfig(), cfg.BacktestEngine())
	assert.Equal(t, "fld", cfg.Strategy.Name)
	assert.Equal(t, 20, cfg.Strategy.CycleLength)
	assert.Equal(t, 10, cfg.Strategy.Displacement)
	assert.Equal(t, 0, cfg.Sweep.Workers)
	assert.Equal(t, "results/sweep/results.csv", cfg.Sweep.SuggestedPath())
	assert.Equal(t, "results/walkforward/results.csv", cfg.WalkForwardPath())
	assert.Equal(t, walkforward.DefaultConfig(), cfg.WalkForwardEngine())
}

func TestLoadConfigEnvExpansion(t *testing.T) {
	t.Setenv("CYCLELAB_TEST_PRICES", "/data/crude.csv")

	yaml := `
data:
  prices_path: "${CYCLELAB_TEST_PRICES}"
`
	cfg, err := Load(writeTemp(t, yaml))
	require.NoError(t, err)
	assert.Equal(t, "/data/crude.csv", cfg.Data.PricesPath)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]string{
		"logging level":  "logging:\n  level: loud\n",
		"logging format": "logging:\n  format: xml\n",
		"backtest":       "backtest:\n  commission: -1\n",
		"strategy":       "strategy:\n  cycle_length: -3\n",
		"sweep format":   "sweep:\n  output_format: xlsx\n",
		"walk forward":   "walk_forward:\n  optimization_metric: win_rate\n",
		"embargo":        "walk_forward:\n  embargo_bars: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeTemp(t, body))
			assert.ErrorIs(t, err, series.ErrValidation)
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := Load("/nonexistent/cyclelab.yaml")
	assert.Error(t, err)

	_, err = Load(writeTemp(t, "logging: [unclosed"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.WalkForward.EmbargoBars)
	assert.Equal(t, walkforward.DefaultEmbargoBars, *cfg.WalkForward.EmbargoBars)
}
