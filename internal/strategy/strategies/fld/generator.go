// Package fld implements a future-line-of-demarcation crossover signal
// generator with optional COT and seasonal filters.
package fld

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nexus-trading/cyclelab/internal/series"
	"github.com/nexus-trading/cyclelab/internal/strategy"
)

// Name is the registry name of the generator.
const Name = "fld"

// Parameter keys read from strategy.Config.Params.
const (
	ParamAllowShort = "allow_short"
)

// Default parameter values.
const (
	DefaultAllowShort = true
)

// Generator emits +1 while the price sits above its FLD and -1 while it
// sits below. The FLD at bar i is the mean of the cycle_length prices that
// end displacement bars before i. Bars without enough history are flat.
//
// Rules:
//   - Deterministic: same inputs produce same positions.
//   - Stateless, so a single value is safe for concurrent sweeps.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// Generate implements strategy.SignalGenerator.
func (g *Generator) Generate(ctx context.Context, cfg strategy.Config, in strategy.Inputs) (series.Series, error) {
	if err := ctx.Err(); err != nil {
		return series.Series{}, err
	}
	if err := cfg.Validate(); err != nil {
		return series.Series{}, err
	}
	if err := in.Validate(); err != nil {
		return series.Series{}, err
	}

	line := Line(in.Prices.Values, cfg.CycleLength, cfg.Displacement)
	allowShort := paramBool(cfg.Params, ParamAllowShort, DefaultAllowShort)

	p := in.Prices.Values
	out := make([]float64, len(p))
	var raw float64
	for i := range p {
		if math.IsNaN(line[i]) {
			continue
		}
		switch {
		case p[i] > line[i]:
			raw = 1
		case p[i] < line[i]:
			raw = -1
		}
		sig := raw
		if sig < 0 && !allowShort {
			sig = 0
		}
		out[i] = filter(sig, i, cfg, in)
	}

	pos, err := series.New(cloneIndex(in.Prices.Index), out)
	if err != nil {
		return series.Series{}, fmt.Errorf("fld: build positions: %w", err)
	}
	return pos, nil
}

// Line computes the displaced moving average. Entries without a full
// window are NaN.
func Line(prices []float64, cycleLength, displacement int) []float64 {
	means := make([]float64, len(prices))
	var sum float64
	for i := range prices {
		sum += prices[i]
		if i >= cycleLength {
			sum -= prices[i-cycleLength]
		}
		means[i] = math.NaN()
		if i >= cycleLength-1 {
			means[i] = sum / float64(cycleLength)
		}
	}

	out := make([]float64, len(prices))
	for i := range out {
		out[i] = math.NaN()
		if i >= displacement {
			out[i] = means[i-displacement]
		}
	}
	return out
}

// filter applies the COT and seasonal gates to a raw signal at bar i.
func filter(sig float64, i int, cfg strategy.Config, in strategy.Inputs) float64 {
	if sig == 0 {
		return 0
	}
	if !in.COT.Empty() {
		cot := in.COT.Values[i]
		if sig > 0 && cot < cfg.CotLongThreshold {
			return 0
		}
		if sig < 0 && cot > cfg.CotShortThreshold {
			return 0
		}
	}
	if !in.Seasonal.Empty() && cfg.SeasonalScoreMinimum > 0 {
		score := in.Seasonal.Values[i]
		floor := float64(cfg.SeasonalScoreMinimum)
		if sig > 0 && score < floor {
			return 0
		}
		if sig < 0 && score > -floor {
			return 0
		}
	}
	return sig
}

func cloneIndex(idx []time.Time) []time.Time {
	out := make([]time.Time, len(idx))
	copy(out, idx)
	return out
}

// paramBool extracts a bool parameter from the params map, returning the
// default if missing or not convertible.
func paramBool(params map[string]any, key string, defaultVal bool) bool {
	v, ok := params[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch val {
		case "true", "yes", "1":
			return true
		case "false", "no", "0":
			return false
		}
	}
	return defaultVal
}
