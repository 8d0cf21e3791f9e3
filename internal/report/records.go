package report

import (
	"time"

	"github.com/nexus-trading/cyclelab/internal/backtest"
)

// Field is one named cell of a record, in column order.
type Field struct {
	Name  string
	Value any
}

// Record is a row that knows its own columns. CSV and JSON sinks walk
// Fields; the Parquet sink uses the struct tags.
type Record interface {
	Fields() []Field
}

// MetricRecord is the flattened metric block shared by result tables.
type MetricRecord struct {
	FinalEquity  float64 `parquet:"final_equity"`
	TotalPnL     float64 `parquet:"total_pnl"`
	ReturnPct    float64 `parquet:"return_pct"`
	CAGR         float64 `parquet:"cagr"`
	MaxDrawdown  float64 `parquet:"max_drawdown"`
	Volatility   float64 `parquet:"volatility"`
	SharpeRatio  float64 `parquet:"sharpe_ratio"`
	SortinoRatio float64 `parquet:"sortino_ratio"`
	CalmarRatio  float64 `parquet:"calmar_ratio"`
	NumTrades    float64 `parquet:"num_trades"`
	WinRate      float64 `parquet:"win_rate"`
	AvgWin       float64 `parquet:"avg_win"`
	AvgLoss      float64 `parquet:"avg_loss"`
	PayoffRatio  float64 `parquet:"payoff_ratio"`
	Expectancy   float64 `parquet:"expectancy"`
	ProfitFactor float64 `parquet:"profit_factor"`
}

// MetricsFrom flattens stats. Failed runs keep their NaNs.
func MetricsFrom(s backtest.Stats) MetricRecord {
	v := func(name string) float64 {
		x, _ := s.Metric(name)
		return x
	}
	return MetricRecord{
		FinalEquity:  v(backtest.MetricFinalEquity),
		TotalPnL:     v(backtest.MetricTotalPnL),
		ReturnPct:    v(backtest.MetricReturnPct),
		CAGR:         v(backtest.MetricCAGR),
		MaxDrawdown:  v(backtest.MetricMaxDrawdown),
		Volatility:   v(backtest.MetricVolatility),
		SharpeRatio:  v(backtest.MetricSharpe),
		SortinoRatio: v(backtest.MetricSortino),
		CalmarRatio:  v(backtest.MetricCalmar),
		NumTrades:    v(backtest.MetricNumTrades),
		WinRate:      v(backtest.MetricWinRate),
		AvgWin:       v(backtest.MetricAvgWin),
		AvgLoss:      v(backtest.MetricAvgLoss),
		PayoffRatio:  v(backtest.MetricPayoffRatio),
		Expectancy:   v(backtest.MetricExpectancy),
		ProfitFactor: v(backtest.MetricProfitFactor),
	}
}

// fields returns the metric columns, each name prefixed.
func (m MetricRecord) fields(prefix string) []Field {
	values := []float64{
		m.FinalEquity, m.TotalPnL, m.ReturnPct, m.CAGR, m.MaxDrawdown,
		m.Volatility, m.SharpeRatio, m.SortinoRatio, m.CalmarRatio, m.NumTrades,
		m.WinRate, m.AvgWin, m.AvgLoss, m.PayoffRatio, m.Expectancy, m.ProfitFactor,
	}
	names := backtest.MetricNames()
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: prefix + n, Value: values[i]}
	}
	return out
}

// SweepRecord is one row of a sweep table on disk.
type SweepRecord struct {
	RunID                string  `parquet:"run_id"`
	Index                int64   `parquet:"index"`
	CycleLength          int64   `parquet:"cycle_length"`
	Displacement         int64   `parquet:"displacement"`
	CotLongThreshold     float64 `parquet:"cot_long_threshold"`
	CotShortThreshold    float64 `parquet:"cot_short_threshold"`
	SeasonalScoreMinimum int64   `parquet:"seasonal_score_minimum"`

	Metrics MetricRecord `parquet:"metrics"`
	Error   string       `parquet:"error"`
}

func (r SweepRecord) Fields() []Field {
	out := []Field{
		{"run_id", r.RunID},
		{"index", r.Index},
		{"cycle_length", r.CycleLength},
		{"displacement", r.Displacement},
		{"cot_long_threshold", r.CotLongThreshold},
		{"cot_short_threshold", r.CotShortThreshold},
		{"seasonal_score_minimum", r.SeasonalScoreMinimum},
	}
	out = append(out, r.Metrics.fields("")...)
	return append(out, Field{"error", r.Error})
}

// WalkForwardRecord is one split of a walk-forward table on disk. In-sample
// and out-of-sample metrics carry is_ and oos_ prefixes.
type WalkForwardRecord struct {
	RunID                string  `parquet:"run_id"`
	Split                int64   `parquet:"split"`
	TrainStart           int64   `parquet:"train_start,timestamp(millisecond)"`
	TrainEnd             int64   `parquet:"train_end,timestamp(millisecond)"`
	TestStart            int64   `parquet:"test_start,timestamp(millisecond)"`
	TestEnd              int64   `parquet:"test_end,timestamp(millisecond)"`
	TrainBars            int64   `parquet:"train_bars"`
	TestBars             int64   `parquet:"test_bars"`
	CycleLength          int64   `parquet:"cycle_length"`
	Displacement         int64   `parquet:"displacement"`
	CotLongThreshold     float64 `parquet:"cot_long_threshold"`
	CotShortThreshold    float64 `parquet:"cot_short_threshold"`
	SeasonalScoreMinimum int64   `parquet:"seasonal_score_minimum"`
	InSampleRobustness   float64 `parquet:"is_robustness"`

	InSample  MetricRecord `parquet:"is"`
	OutSample MetricRecord `parquet:"oos"`
	Error     string       `parquet:"error"`
}

func (r WalkForwardRecord) Fields() []Field {
	out := []Field{
		{"run_id", r.RunID},
		{"split", r.Split},
		{"train_start", formatMillis(r.TrainStart)},
		{"train_end", formatMillis(r.TrainEnd)},
		{"test_start", formatMillis(r.TestStart)},
		{"test_end", formatMillis(r.TestEnd)},
		{"train_bars", r.TrainBars},
		{"test_bars", r.TestBars},
		{"cycle_length", r.CycleLength},
		{"displacement", r.Displacement},
		{"cot_long_threshold", r.CotLongThreshold},
		{"cot_short_threshold", r.CotShortThreshold},
		{"seasonal_score_minimum", r.SeasonalScoreMinimum},
		{"is_robustness", r.InSampleRobustness},
	}
	out = append(out, r.InSample.fields("is_")...)
	out = append(out, r.OutSample.fields("oos_")...)
	return append(out, Field{"error", r.Error})
}

// TradeRow is one extracted trade on disk.
type TradeRow struct {
	EntryTime  int64   `parquet:"entry_time,timestamp(millisecond)"`
	ExitTime   int64   `parquet:"exit_time,timestamp(millisecond)"`
	Direction  string  `parquet:"direction"`
	EntryPrice float64 `parquet:"entry_price"`
	ExitPrice  float64 `parquet:"exit_price"`
	BarsHeld   int64   `parquet:"bars_held"`
	EntryCost  float64 `parquet:"entry_cost"`
	ExitCost   float64 `parquet:"exit_cost"`
	PnL        float64 `parquet:"pnl"`
	IsOpen     bool    `parquet:"is_open"`
}

// TradeRows converts extracted trades.
func TradeRows(trades []backtest.TradeRecord) []TradeRow {
	out := make([]TradeRow, len(trades))
	for i, t := range trades {
		out[i] = TradeRow{
			EntryTime:  t.EntryTime.UnixMilli(),
			ExitTime:   t.ExitTime.UnixMilli(),
			Direction:  t.Direction.String(),
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			BarsHeld:   int64(t.BarsHeld),
			EntryCost:  t.EntryCost,
			ExitCost:   t.ExitCost,
			PnL:        t.PnL,
			IsOpen:     t.IsOpen,
		}
	}
	return out
}

func (r TradeRow) Fields() []Field {
	return []Field{
		{"entry_time", formatMillis(r.EntryTime)},
		{"exit_time", formatMillis(r.ExitTime)},
		{"direction", r.Direction},
		{"entry_price", r.EntryPrice},
		{"exit_price", r.ExitPrice},
		{"bars_held", r.BarsHeld},
		{"entry_cost", r.EntryCost},
		{"exit_cost", r.ExitCost},
		{"pnl", r.PnL},
		{"is_open", r.IsOpen},
	}
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
