package backtest

import (
	"time"

	"github.com/nexus-trading/cyclelab/internal/series"
)

// Direction is the side of a trade: +1 long, -1 short.
type Direction int

const (
	Short Direction = -1
	Long  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// TradeRecord is one contiguous run of same-signed, non-zero position.
type TradeRecord struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryIndex int
	ExitIndex  int
	EntryPrice float64
	ExitPrice  float64
	Direction  Direction
	BarsHeld   int     // bars from entry through exit, inclusive
	EntryCost  float64 // one position change
	ExitCost   float64 // one position change; zero while the trade is open
	PnL        float64 // (exit-entry)*direction*point value - costs
	IsOpen     bool    // still active at the end of the series
}

// ExtractTrades turns a position series into discrete trades.
//
// A trade opens on the bar where the position becomes non-zero and closes
// when the position returns to zero or flips sign. Closed trades are valued
// at the price of the bar before the closing signal. A trade still active on
// the last bar is emitted with IsOpen set, valued at the last price.
func ExtractTrades(prices, positions series.Series, cfg Config) ([]TradeRecord, error) {
	if err := validateInputs(prices, positions, cfg); err != nil {
		return nil, err
	}
	return extractTrades(prices, positions, cfg), nil
}

// tradeState is the FLAT / IN_TRADE state machine.
type tradeState struct {
	inTrade    bool
	entryIndex int
	direction  Direction
}

func extractTrades(prices, positions series.Series, cfg Config) []TradeRecord {
	var (
		trades []TradeRecord
		st     tradeState
	)
	cost := cfg.CostPerChange().InexactFloat64()
	pv := cfg.pointValue()

	closeAt := func(exitIdx int, open bool) {
		tr := TradeRecord{
			EntryTime:  prices.Index[st.entryIndex],
			ExitTime:   prices.Index[exitIdx],
			EntryIndex: st.entryIndex,
			ExitIndex:  exitIdx,
			EntryPrice: prices.Values[st.entryIndex],
			ExitPrice:  prices.Values[exitIdx],
			Direction:  st.direction,
			BarsHeld:   exitIdx - st.entryIndex + 1,
			EntryCost:  cost,
			IsOpen:     open,
		}
		if !open {
			tr.ExitCost = cost
		}
		gross := (tr.ExitPrice - tr.EntryPrice) * float64(tr.Direction) * pv
		tr.PnL = gross - (tr.EntryCost + tr.ExitCost)
		trades = append(trades, tr)
		st = tradeState{}
	}

	for i, pos := range positions.Values {
		dir := directionOf(pos)
		switch {
		case !st.inTrade:
			if dir != 0 {
				st = tradeState{inTrade: true, entryIndex: i, direction: dir}
			}
		case dir == 0:
			closeAt(i-1, false)
		case dir != st.direction:
			closeAt(i-1, false)
			st = tradeState{inTrade: true, entryIndex: i, direction: dir}
		}
	}
	if st.inTrade {
		closeAt(positions.Len()-1, true)
	}
	return trades
}

func directionOf(pos float64) Direction {
	switch {
	case pos > 0:
		return Long
	case pos < 0:
		return Short
	default:
		return 0
	}
}
