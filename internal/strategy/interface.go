package strategy

import (
	"context"
	"fmt"

	"github.com/nexus-trading/cyclelab/internal/series"
)

// Config holds configuration for a strategy instance. The typed fields are
// the ones a sweep overwrites; Params carries generator-specific extras.
type Config struct {
	Name                 string         `json:"name" yaml:"name"`
	CycleLength          int            `json:"cycle_length" yaml:"cycle_length"`
	Displacement         int            `json:"displacement" yaml:"displacement"`
	CotLongThreshold     float64        `json:"cot_long_threshold" yaml:"cot_long_threshold"`
	CotShortThreshold    float64        `json:"cot_short_threshold" yaml:"cot_short_threshold"`
	SeasonalScoreMinimum int            `json:"seasonal_score_minimum" yaml:"seasonal_score_minimum"`
	Params               map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Clone returns a copy that shares no maps with c.
func (c Config) Clone() Config {
	out := c
	if c.Params != nil {
		out.Params = make(map[string]any, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	return out
}

// Validate checks the swept fields.
func (c Config) Validate() error {
	if c.CycleLength < 1 {
		return fmt.Errorf("strategy: cycle_length must be >= 1, got %d: %w", c.CycleLength, series.ErrValidation)
	}
	if c.Displacement < 0 {
		return fmt.Errorf("strategy: displacement must be >= 0, got %d: %w", c.Displacement, series.ErrValidation)
	}
	return nil
}

// Inputs bundles the series a generator reads. COT and Seasonal are
// optional; when present they must share the price index.
type Inputs struct {
	Prices   series.Series
	COT      series.Series
	Seasonal series.Series
}

// Validate checks that the optional series line up with the prices.
func (in Inputs) Validate() error {
	if in.Prices.Empty() {
		return fmt.Errorf("strategy: empty price series: %w", series.ErrValidation)
	}
	if !in.COT.Empty() {
		if err := series.RequireSameIndex(in.Prices, in.COT); err != nil {
			return fmt.Errorf("strategy: cot: %w", err)
		}
	}
	if !in.Seasonal.Empty() {
		if err := series.RequireSameIndex(in.Prices, in.Seasonal); err != nil {
			return fmt.Errorf("strategy: seasonal: %w", err)
		}
	}
	return nil
}

// Slice returns the inputs restricted to bars [start, end).
func (in Inputs) Slice(start, end int) Inputs {
	out := Inputs{Prices: in.Prices.Slice(start, end)}
	if !in.COT.Empty() {
		out.COT = in.COT.Slice(start, end)
	}
	if !in.Seasonal.Empty() {
		out.Seasonal = in.Seasonal.Slice(start, end)
	}
	return out
}

// SignalGenerator turns a strategy configuration and its inputs into a
// position series on the price index.
//
// Rules:
//   - Deterministic: same inputs produce the same positions.
//   - No I/O, no wall clock.
//   - Safe for concurrent use; sweeps call Generate from many goroutines.
type SignalGenerator interface {
	Generate(ctx context.Context, cfg Config, in Inputs) (series.Series, error)
}

// GeneratorFunc adapts a plain function to SignalGenerator.
type GeneratorFunc func(ctx context.Context, cfg Config, in Inputs) (series.Series, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, cfg Config, in Inputs) (series.Series, error) {
	return f(ctx, cfg, in)
}
