package sweep

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nexus-trading/cyclelab/internal/report"
	"github.com/nexus-trading/cyclelab/internal/strategy"
)

// Config lists the values to sweep for each strategy field. An empty list
// keeps the base strategy's value.
type Config struct {
	CycleLengths          []int     `yaml:"cycle_lengths"`
	Displacements         []int     `yaml:"displacements"`
	CotLongThresholds     []float64 `yaml:"cot_long_thresholds"`
	CotShortThresholds    []float64 `yaml:"cot_short_thresholds"`
	SeasonalScoreMinimums []int     `yaml:"seasonal_score_minimums"`

	OutputPath   string        `yaml:"output_path"`
	OutputFormat report.Format `yaml:"output_format"`
}

// Validate checks the output format.
func (c Config) Validate() error {
	if c.OutputFormat == "" {
		return nil
	}
	if err := c.OutputFormat.Validate(); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	return nil
}

// SuggestedPath is where a sink should write this sweep's table.
func (c Config) SuggestedPath() string {
	f := c.OutputFormat
	if f == "" {
		f = report.DefaultFormat
	}
	return report.SuggestedPath(c.OutputPath, f)
}

// Combo is one point of the parameter grid.
type Combo struct {
	CycleLength          int     `json:"cycle_length"`
	Displacement         int     `json:"displacement"`
	CotLongThreshold     float64 `json:"cot_long_threshold"`
	CotShortThreshold    float64 `json:"cot_short_threshold"`
	SeasonalScoreMinimum int     `json:"seasonal_score_minimum"`
}

// Apply returns a copy of base with the swept fields overwritten.
func (c Combo) Apply(base strategy.Config) strategy.Config {
	out := base.Clone()
	out.CycleLength = c.CycleLength
	out.Displacement = c.Displacement
	out.CotLongThreshold = c.CotLongThreshold
	out.CotShortThreshold = c.CotShortThreshold
	out.SeasonalScoreMinimum = c.SeasonalScoreMinimum
	return out
}

func (c Combo) String() string {
	var b strings.Builder
	b.WriteString("cycle_length=")
	b.WriteString(strconv.Itoa(c.CycleLength))
	b.WriteString(" displacement=")
	b.WriteString(strconv.Itoa(c.Displacement))
	b.WriteString(" cot_long=")
	b.WriteString(strconv.FormatFloat(c.CotLongThreshold, 'g', -1, 64))
	b.WriteString(" cot_short=")
	b.WriteString(strconv.FormatFloat(c.CotShortThreshold, 'g', -1, 64))
	b.WriteString(" seasonal_min=")
	b.WriteString(strconv.Itoa(c.SeasonalScoreMinimum))
	return b.String()
}

// ComboOf extracts the swept fields from a strategy config.
func ComboOf(cfg strategy.Config) Combo {
	return Combo{
		CycleLength:          cfg.CycleLength,
		Displacement:         cfg.Displacement,
		CotLongThreshold:     cfg.CotLongThreshold,
		CotShortThreshold:    cfg.CotShortThreshold,
		SeasonalScoreMinimum: cfg.SeasonalScoreMinimum,
	}
}

// BuildGrid expands cfg into its Cartesian product. Outer to inner:
// cycle_length, displacement, cot_long_threshold, cot_short_threshold,
// seasonal_score_minimum. The grid always has at least one combination.
func BuildGrid(cfg Config, base strategy.Config) []Combo {
	cycles := orDefault(cfg.CycleLengths, base.CycleLength)
	disps := orDefault(cfg.Displacements, base.Displacement)
	longs := orDefault(cfg.CotLongThresholds, base.CotLongThreshold)
	shorts := orDefault(cfg.CotShortThresholds, base.CotShortThreshold)
	seasonal := orDefault(cfg.SeasonalScoreMinimums, base.SeasonalScoreMinimum)

	tuples := Cartesian(len(cycles), len(disps), len(longs), len(shorts), len(seasonal))
	grid := make([]Combo, len(tuples))
	for i, t := range tuples {
		grid[i] = Combo{
			CycleLength:          cycles[t[0]],
			Displacement:         disps[t[1]],
			CotLongThreshold:     longs[t[2]],
			CotShortThreshold:    shorts[t[3]],
			SeasonalScoreMinimum: seasonal[t[4]],
		}
	}
	return grid
}

// GridSize is len(BuildGrid(cfg, base)) without building it.
func GridSize(cfg Config) int {
	n := 1
	for _, l := range []int{
		len(cfg.CycleLengths), len(cfg.Displacements), len(cfg.CotLongThresholds),
		len(cfg.CotShortThresholds), len(cfg.SeasonalScoreMinimums),
	} {
		if l > 0 {
			n *= l
		}
	}
	return n
}

// Cartesian returns every index tuple over lists of the given sizes with the
// last position varying fastest. No sizes yields one empty tuple; any zero
// size yields none.
func Cartesian(sizes ...int) [][]int {
	total := 1
	for _, s := range sizes {
		if s <= 0 {
			return nil
		}
		total *= s
	}

	out := make([][]int, 0, total)
	cur := make([]int, len(sizes))
	for {
		out = append(out, append([]int(nil), cur...))

		// Odometer increment from the right.
		pos := len(sizes) - 1
		for pos >= 0 {
			cur[pos]++
			if cur[pos] < sizes[pos] {
				break
			}
			cur[pos] = 0
			pos--
		}
		if pos < 0 {
			return out
		}
	}
}

func orDefault[T any](values []T, fallback T) []T {
	if len(values) == 0 {
		return []T{fallback}
	}
	return values
}
