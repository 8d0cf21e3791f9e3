// Package walkforward optimises strategy parameters on rolling training
// windows and validates each choice on the window that follows.
package walkforward

import (
	"fmt"
	"time"

	"github.com/nexus-trading/cyclelab/internal/backtest"
	"github.com/nexus-trading/cyclelab/internal/series"
)

// Defaults for Config fields.
const (
	DefaultInSampleYears      = 3.0
	DefaultOutSampleYears     = 1.0
	DefaultStepYears          = 1.0
	DefaultPeriodsPerYear     = 252
	DefaultMinBars            = 252
	DefaultEmbargoBars        = 1
	DefaultOptimizationMetric = backtest.MetricCalmar
	DefaultSplitWorkers       = 1
)

// OptimizationMetrics are the metrics a walk-forward run may select on.
// Selection is always descending.
var OptimizationMetrics = []string{backtest.MetricCalmar, backtest.MetricCAGR, backtest.MetricSharpe}

// Config holds the window geometry and selection settings.
type Config struct {
	InSampleYears  float64 `yaml:"in_sample_years"`
	OutSampleYears float64 `yaml:"out_sample_years"`
	StepYears      float64 `yaml:"step_years"`
	PeriodsPerYear int     `yaml:"periods_per_year"`
	MinBars        int     `yaml:"min_bars"`
	// EmbargoBars separates the last training bar from the first test bar.
	EmbargoBars             int    `yaml:"embargo_bars"`
	AllowPartialFinalWindow bool   `yaml:"allow_partial_final_window"`
	OptimizationMetric      string `yaml:"optimization_metric"`
	// SplitWorkers bounds how many splits run at once.
	SplitWorkers int `yaml:"split_workers"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		InSampleYears:      DefaultInSampleYears,
		OutSampleYears:     DefaultOutSampleYears,
		StepYears:          DefaultStepYears,
		PeriodsPerYear:     DefaultPeriodsPerYear,
		MinBars:            DefaultMinBars,
		EmbargoBars:        DefaultEmbargoBars,
		OptimizationMetric: DefaultOptimizationMetric,
		SplitWorkers:       DefaultSplitWorkers,
	}
}

// Bars converts the year settings to bar counts: in-sample, out-of-sample
// and step.
func (c Config) Bars() (isBars, osBars, stepBars int) {
	ppy := float64(c.PeriodsPerYear)
	return int(c.InSampleYears * ppy), int(c.OutSampleYears * ppy), int(c.StepYears * ppy)
}

// Validate checks the window geometry and the optimisation metric.
func (c Config) Validate() error {
	if c.PeriodsPerYear <= 0 {
		return fmt.Errorf("walkforward: periods_per_year must be > 0, got %d: %w", c.PeriodsPerYear, series.ErrValidation)
	}
	isBars, osBars, stepBars := c.Bars()
	switch {
	case isBars <= 0:
		return fmt.Errorf("walkforward: in_sample_years %g gives %d bars: %w", c.InSampleYears, isBars, series.ErrValidation)
	case osBars <= 0:
		return fmt.Errorf("walkforward: out_sample_years %g gives %d bars: %w", c.OutSampleYears, osBars, series.ErrValidation)
	case stepBars <= 0:
		return fmt.Errorf("walkforward: step_years %g gives %d bars: %w", c.StepYears, stepBars, series.ErrValidation)
	case c.MinBars < 0:
		return fmt.Errorf("walkforward: min_bars must be >= 0: %w", series.ErrValidation)
	case c.EmbargoBars < 0:
		return fmt.Errorf("walkforward: embargo_bars must be >= 0: %w", series.ErrValidation)
	}
	if !isOptimizationMetric(c.OptimizationMetric) {
		return fmt.Errorf("walkforward: optimization_metric %q not in %v: %w", c.OptimizationMetric, OptimizationMetrics, series.ErrValidation)
	}
	return nil
}

func isOptimizationMetric(name string) bool {
	for _, m := range OptimizationMetrics {
		if m == name {
			return true
		}
	}
	return false
}

// Split is one train/test window pair. Bar ranges are half-open.
type Split struct {
	Index      int
	TrainStart int
	TrainEnd   int
	TestStart  int
	TestEnd    int
	// Timestamps of the first and last bar of each window.
	TrainFrom time.Time
	TrainTo   time.Time
	TestFrom  time.Time
	TestTo    time.Time
	// Partial is set on a final test window shorter than the configured size.
	Partial bool
}

// TrainBars is the training window length.
func (s Split) TrainBars() int { return s.TrainEnd - s.TrainStart }

// TestBars is the test window length.
func (s Split) TestBars() int { return s.TestEnd - s.TestStart }

// SplitIndex lays training and test windows over index. Each window starts
// step bars after the previous one; the test window begins EmbargoBars after
// the training window ends. Iteration stops when the training window no
// longer fits, when a short test window is not allowed, or once a test
// window reaches the last bar. The result may be empty.
func SplitIndex(index []time.Time, cfg Config) ([]Split, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := len(index)
	if n < cfg.MinBars {
		return nil, fmt.Errorf("walkforward: %d bars, need at least %d: %w", n, cfg.MinBars, series.ErrValidation)
	}

	isBars, osBars, stepBars := cfg.Bars()
	var splits []Split
	for start := 0; ; start += stepBars {
		trainEnd := start + isBars
		if trainEnd > n {
			break
		}
		testStart := trainEnd + cfg.EmbargoBars
		if testStart >= n {
			break
		}
		testEnd := min(testStart+osBars, n)
		partial := testEnd-testStart < osBars
		if partial && !cfg.AllowPartialFinalWindow {
			break
		}

		splits = append(splits, Split{
			Index:      len(splits),
			TrainStart: start,
			TrainEnd:   trainEnd,
			TestStart:  testStart,
			TestEnd:    testEnd,
			TrainFrom:  index[start],
			TrainTo:    index[trainEnd-1],
			TestFrom:   index[testStart],
			TestTo:     index[testEnd-1],
			Partial:    partial,
		})
		if testEnd == n {
			break
		}
	}
	return splits, nil
}
