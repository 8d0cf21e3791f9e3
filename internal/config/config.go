package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/nexus-trading/cyclelab/internal/backtest"
	"github.com/nexus-trading/cyclelab/internal/report"
	"github.com/nexus-trading/cyclelab/internal/series"
	"github.com/nexus-trading/cyclelab/internal/strategy"
	"github.com/nexus-trading/cyclelab/internal/sweep"
	"github.com/nexus-trading/cyclelab/internal/walkforward"
)

// Config is the root configuration structure for cyclelab.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Data        DataConfig        `yaml:"data"`
	Backtest    BacktestConfig    `yaml:"backtest"`
	Strategy    strategy.Config   `yaml:"strategy"`
	Sweep       SweepConfig       `yaml:"sweep"`
	WalkForward WalkForwardConfig `yaml:"walk_forward"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json|text
}

// DataConfig points at the CSV inputs. Only the price file is required.
type DataConfig struct {
	PricesPath     string `yaml:"prices_path"`
	PriceColumn    string `yaml:"price_column"`
	COTPath        string `yaml:"cot_path"`
	COTColumn      string `yaml:"cot_column"`
	SeasonalPath   string `yaml:"seasonal_path"`
	SeasonalColumn string `yaml:"seasonal_column"`
	PeriodsPerYear int    `yaml:"periods_per_year"`
}

type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
	Commission     float64 `yaml:"commission"`
	Slippage       float64 `yaml:"slippage"`
	ContractSize   float64 `yaml:"contract_size"`
	Contracts      int     `yaml:"contracts"`
}

type SweepConfig struct {
	sweep.Config `yaml:",inline"`
	Workers      int `yaml:"workers"` // 0 means one per CPU
}

type WalkForwardConfig struct {
	InSampleYears           float64       `yaml:"in_sample_years"`
	OutSampleYears          float64       `yaml:"out_sample_years"`
	StepYears               float64       `yaml:"step_years"`
	MinBars                 int           `yaml:"min_bars"`
	EmbargoBars             *int          `yaml:"embargo_bars"` // nil means the default of 1
	AllowPartialFinalWindow bool          `yaml:"allow_partial_final_window"`
	OptimizationMetric      string        `yaml:"optimization_metric"`
	SplitWorkers            int           `yaml:"split_workers"`
	OutputPath              string        `yaml:"output_path"`
	OutputFormat            report.Format `yaml:"output_format"`
}

// Load reads, expands environment variables in, defaults and validates the
// YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Data.PriceColumn == "" {
		cfg.Data.PriceColumn = "close"
	}
	if cfg.Data.COTColumn == "" {
		cfg.Data.COTColumn = "cot_index"
	}
	if cfg.Data.SeasonalColumn == "" {
		cfg.Data.SeasonalColumn = "score"
	}
	if cfg.Data.PeriodsPerYear == 0 {
		cfg.Data.PeriodsPerYear = backtest.DefaultPeriodsPerYear
	}
	if cfg.Backtest.InitialCapital == 0 {
		cfg.Backtest.InitialCapital = backtest.DefaultInitialCapital
	}
	if cfg.Backtest.ContractSize == 0 {
		cfg.Backtest.ContractSize = backtest.DefaultContractSize
	}
	if cfg.Backtest.Contracts == 0 {
		cfg.Backtest.Contracts = backtest.DefaultContracts
	}
	if cfg.Strategy.Name == "" {
		cfg.Strategy.Name = "fld"
	}
	if cfg.Strategy.CycleLength == 0 {
		// FLD displaces by half a cycle unless told otherwise.
		cfg.Strategy.CycleLength = 20
		if cfg.Strategy.Displacement == 0 {
			cfg.Strategy.Displacement = 10
		}
	}
	if cfg.Sweep.OutputPath == "" {
		cfg.Sweep.OutputPath = "results/sweep"
	}
	if cfg.Sweep.OutputFormat == "" {
		cfg.Sweep.OutputFormat = report.DefaultFormat
	}

	wf := &cfg.WalkForward
	if wf.InSampleYears == 0 {
		wf.InSampleYears = walkforward.DefaultInSampleYears
	}
	if wf.OutSampleYears == 0 {
		wf.OutSampleYears = walkforward.DefaultOutSampleYears
	}
	if wf.StepYears == 0 {
		wf.StepYears = walkforward.DefaultStepYears
	}
	if wf.MinBars == 0 {
		wf.MinBars = walkforward.DefaultMinBars
	}
	if wf.EmbargoBars == nil {
		embargo := walkforward.DefaultEmbargoBars
		wf.EmbargoBars = &embargo
	}
	if wf.OptimizationMetric == "" {
		wf.OptimizationMetric = walkforward.DefaultOptimizationMetric
	}
	if wf.SplitWorkers == 0 {
		wf.SplitWorkers = walkforward.DefaultSplitWorkers
	}
	if wf.OutputPath == "" {
		wf.OutputPath = "results/walkforward"
	}
	if wf.OutputFormat == "" {
		wf.OutputFormat = report.DefaultFormat
	}
}

// Validate checks every section against the engine's own rules.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: logging.level: %v: %w", err, series.ErrValidation)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("config: logging.format %q must be json or text: %w", c.Logging.Format, series.ErrValidation)
	}
	if c.Data.PeriodsPerYear <= 0 {
		return fmt.Errorf("config: data.periods_per_year must be > 0: %w", series.ErrValidation)
	}
	if err := c.BacktestEngine().Validate(); err != nil {
		return fmt.Errorf("config: backtest: %w", err)
	}
	if err := c.Strategy.Validate(); err != nil {
		return fmt.Errorf("config: strategy: %w", err)
	}
	if err := c.Sweep.Validate(); err != nil {
		return fmt.Errorf("config: sweep: %w", err)
	}
	if err := c.WalkForwardEngine().Validate(); err != nil {
		return fmt.Errorf("config: walk_forward: %w", err)
	}
	if err := c.WalkForward.OutputFormat.Validate(); err != nil {
		return fmt.Errorf("config: walk_forward: %w", err)
	}
	return nil
}

// BacktestEngine converts the backtest section.
func (c *Config) BacktestEngine() backtest.Config {
	return backtest.Config{
		InitialCapital: c.Backtest.InitialCapital,
		Commission:     c.Backtest.Commission,
		Slippage:       c.Backtest.Slippage,
		ContractSize:   c.Backtest.ContractSize,
		Contracts:      c.Backtest.Contracts,
		PeriodsPerYear: c.Data.PeriodsPerYear,
	}
}

// SweepRunner converts the sweep section into runner settings.
func (c *Config) SweepRunner() sweep.RunnerConfig {
	return sweep.RunnerConfig{Backtest: c.BacktestEngine(), Workers: c.Sweep.Workers}
}

// WalkForwardEngine converts the walk_forward section.
func (c *Config) WalkForwardEngine() walkforward.Config {
	wf := c.WalkForward
	embargo := walkforward.DefaultEmbargoBars
	if wf.EmbargoBars != nil {
		embargo = *wf.EmbargoBars
	}
	return walkforward.Config{
		InSampleYears:           wf.InSampleYears,
		OutSampleYears:          wf.OutSampleYears,
		StepYears:               wf.StepYears,
		PeriodsPerYear:          c.Data.PeriodsPerYear,
		MinBars:                 wf.MinBars,
		EmbargoBars:             embargo,
		AllowPartialFinalWindow: wf.AllowPartialFinalWindow,
		OptimizationMetric:      wf.OptimizationMetric,
		SplitWorkers:            wf.SplitWorkers,
	}
}

// WalkForwardPath is where the walk-forward table should be written.
func (c *Config) WalkForwardPath() string {
	return report.SuggestedPath(c.WalkForward.OutputPath, c.WalkForward.OutputFormat)
}
