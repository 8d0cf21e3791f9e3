package backtest

import "math"

// Metric names shared by sweep selection and result sinks.
const (
	MetricFinalEquity  = "final_equity"
	MetricTotalPnL     = "total_pnl"
	MetricReturnPct    = "return_pct"
	MetricCAGR         = "cagr"
	MetricMaxDrawdown  = "max_drawdown"
	MetricVolatility   = "volatility"
	MetricSharpe       = "sharpe_ratio"
	MetricSortino      = "sortino_ratio"
	MetricCalmar       = "calmar_ratio"
	MetricNumTrades    = "num_trades"
	MetricWinRate      = "win_rate"
	MetricAvgWin       = "avg_win"
	MetricAvgLoss      = "avg_loss"
	MetricPayoffRatio  = "payoff_ratio"
	MetricExpectancy   = "expectancy"
	MetricProfitFactor = "profit_factor"
)

// metricNames fixes the column order of flattened metric records.
var metricNames = []string{
	MetricFinalEquity,
	MetricTotalPnL,
	MetricReturnPct,
	MetricCAGR,
	MetricMaxDrawdown,
	MetricVolatility,
	MetricSharpe,
	MetricSortino,
	MetricCalmar,
	MetricNumTrades,
	MetricWinRate,
	MetricAvgWin,
	MetricAvgLoss,
	MetricPayoffRatio,
	MetricExpectancy,
	MetricProfitFactor,
}

// MetricNames returns the flattened metric columns in their fixed order.
func MetricNames() []string {
	out := make([]string, len(metricNames))
	copy(out, metricNames)
	return out
}

// IsMetric reports whether name is a known metric column.
func IsMetric(name string) bool {
	for _, n := range metricNames {
		if n == name {
			return true
		}
	}
	return false
}

// Stats is the combined equity and trade statistics of one run.
type Stats struct {
	Basic  BasicMetrics
	Trades TradeMetrics
}

// NaNStats returns a record with every metric set to NaN. Sweeps use it for
// combinations that failed to evaluate.
func NaNStats() Stats {
	nan := math.NaN()
	return Stats{
		Basic: BasicMetrics{
			FinalEquity:  nan,
			TotalPnL:     nan,
			ReturnPct:    nan,
			CAGR:         nan,
			MaxDrawdown:  nan,
			Volatility:   nan,
			SharpeRatio:  nan,
			SortinoRatio: nan,
			CalmarRatio:  nan,
		},
		Trades: TradeMetrics{
			WinRate:      nan,
			AvgWin:       nan,
			AvgLoss:      nan,
			PayoffRatio:  nan,
			Expectancy:   nan,
			ProfitFactor: nan,
			LargestWin:   nan,
			LargestLoss:  nan,
			AvgBarsHeld:  nan,
			TotalPnL:     nan,
		},
	}
}

// Failed reports whether the record came from NaNStats.
func (s Stats) Failed() bool {
	return math.IsNaN(s.Basic.FinalEquity)
}

// Metric returns the named metric. The bool is false for unknown names.
// Trade counts of a failed record are reported as NaN.
func (s Stats) Metric(name string) (float64, bool) {
	switch name {
	case MetricFinalEquity:
		return s.Basic.FinalEquity, true
	case MetricTotalPnL:
		return s.Basic.TotalPnL, true
	case MetricReturnPct:
		return s.Basic.ReturnPct, true
	case MetricCAGR:
		return s.Basic.CAGR, true
	case MetricMaxDrawdown:
		return s.Basic.MaxDrawdown, true
	case MetricVolatility:
		return s.Basic.Volatility, true
	case MetricSharpe:
		return s.Basic.SharpeRatio, true
	case MetricSortino:
		return s.Basic.SortinoRatio, true
	case MetricCalmar:
		return s.Basic.CalmarRatio, true
	case MetricNumTrades:
		if s.Failed() {
			return math.NaN(), true
		}
		return float64(s.Trades.NumTrades), true
	case MetricWinRate:
		return s.Trades.WinRate, true
	case MetricAvgWin:
		return s.Trades.AvgWin, true
	case MetricAvgLoss:
		return s.Trades.AvgLoss, true
	case MetricPayoffRatio:
		return s.Trades.PayoffRatio, true
	case MetricExpectancy:
		return s.Trades.Expectancy, true
	case MetricProfitFactor:
		return s.Trades.ProfitFactor, true
	}
	return 0, false
}

// Values returns every metric in MetricNames order.
func (s Stats) Values() []float64 {
	out := make([]float64, len(metricNames))
	for i, n := range metricNames {
		out[i], _ = s.Metric(n)
	}
	return out
}
