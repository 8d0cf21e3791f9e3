package main

import (
	"fmt"

	"github.com/nexus-trading/cyclelab/internal/config"
	"github.com/nexus-trading/cyclelab/internal/series"
	"github.com/nexus-trading/cyclelab/internal/strategy"
	"github.com/nexus-trading/cyclelab/internal/strategy/strategies/fld"
)

// generators lists every signal generator the CLI can run.
func generators() (*strategy.Registry, error) {
	reg := strategy.NewRegistry()
	if err := reg.Register(fld.Name, fld.New()); err != nil {
		return nil, err
	}
	return reg, nil
}

func lookupGenerator(name string) (strategy.SignalGenerator, error) {
	reg, err := generators()
	if err != nil {
		return nil, err
	}
	return reg.Lookup(name)
}

// loadInputs reads the configured CSV files. Optional series must already
// share the price file's timestamps.
func loadInputs(d config.DataConfig) (strategy.Inputs, error) {
	if d.PricesPath == "" {
		return strategy.Inputs{}, fmt.Errorf("no price file: set data.prices_path or --prices: %w", series.ErrValidation)
	}

	var (
		in  strategy.Inputs
		err error
	)
	if in.Prices, err = series.LoadCSV(d.PricesPath, d.PriceColumn); err != nil {
		return strategy.Inputs{}, fmt.Errorf("load prices: %w", err)
	}
	if d.COTPath != "" {
		if in.COT, err = series.LoadCSV(d.COTPath, d.COTColumn); err != nil {
			return strategy.Inputs{}, fmt.Errorf("load cot: %w", err)
		}
	}
	if d.SeasonalPath != "" {
		if in.Seasonal, err = series.LoadCSV(d.SeasonalPath, d.SeasonalColumn); err != nil {
			return strategy.Inputs{}, fmt.Errorf("load seasonal: %w", err)
		}
	}
	if err := in.Validate(); err != nil {
		return strategy.Inputs{}, err
	}
	return in, nil
}
