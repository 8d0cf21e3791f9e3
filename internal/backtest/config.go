package backtest

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/nexus-trading/cyclelab/internal/series"
)

// Defaults applied by DefaultConfig and the config loader.
const (
	DefaultInitialCapital = 100_000.0
	DefaultContractSize   = 1.0
	DefaultContracts      = 1
	DefaultPeriodsPerYear = 252
)

// Config configures a single backtest run. It is a value type and is never
// modified by the engine.
type Config struct {
	InitialCapital float64 // starting equity
	Commission     float64 // per contract, per position change
	Slippage       float64 // per contract, per position change
	ContractSize   float64 // point value multiplier
	Contracts      int     // contracts traded per unit of position
	PeriodsPerYear int     // bars per year, used for annualisation
}

// DefaultConfig returns a Config with every field set to its documented
// default and zero trading costs.
func DefaultConfig() Config {
	return Config{
		InitialCapital: DefaultInitialCapital,
		ContractSize:   DefaultContractSize,
		Contracts:      DefaultContracts,
		PeriodsPerYear: DefaultPeriodsPerYear,
	}
}

// Validate rejects configurations the simulator cannot evaluate.
func (c Config) Validate() error {
	switch {
	case !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0):
		return fmt.Errorf("%w: initial capital must be positive, got %v", series.ErrValidation, c.InitialCapital)
	case c.Commission < 0 || math.IsNaN(c.Commission):
		return fmt.Errorf("%w: commission must be >= 0, got %v", series.ErrValidation, c.Commission)
	case c.Slippage < 0 || math.IsNaN(c.Slippage):
		return fmt.Errorf("%w: slippage must be >= 0, got %v", series.ErrValidation, c.Slippage)
	case !(c.ContractSize > 0):
		return fmt.Errorf("%w: contract size must be positive, got %v", series.ErrValidation, c.ContractSize)
	case c.Contracts < 1:
		return fmt.Errorf("%w: contracts must be >= 1, got %d", series.ErrValidation, c.Contracts)
	case c.PeriodsPerYear < 1:
		return fmt.Errorf("%w: periods per year must be >= 1, got %d", series.ErrValidation, c.PeriodsPerYear)
	}
	return nil
}

// CostPerChange is the transaction cost of one position change:
// |commission + slippage| * contracts. It is independent of direction.
func (c Config) CostPerChange() decimal.Decimal {
	return decimal.NewFromFloat(c.Commission).
		Add(decimal.NewFromFloat(c.Slippage)).
		Abs().
		Mul(decimal.NewFromInt(int64(c.Contracts)))
}

// pointValue is the cash value of a one-point move for one unit of position.
func (c Config) pointValue() float64 {
	return c.ContractSize * float64(c.Contracts)
}
