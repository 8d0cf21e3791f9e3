package backtest

import (
	"math"
)

// BasicMetrics holds equity-curve statistics for one run.
type BasicMetrics struct {
	FinalEquity  float64 // last equity value
	TotalPnL     float64 // FinalEquity - initial capital
	ReturnPct    float64 // total return in percent
	CAGR         float64 // (final/initial)^(periods_per_year/bars) - 1
	MaxDrawdown  float64 // min((equity-cummax)/cummax), a fraction <= 0
	Volatility   float64 // annualised std of bar returns
	SharpeRatio  float64 // mean*periods_per_year / Volatility
	SortinoRatio float64 // annualised, downside deviation only
	CalmarRatio  float64 // CAGR / |MaxDrawdown|
	Bars         int
}

// TradeMetrics holds trade-level statistics for one run.
type TradeMetrics struct {
	NumTrades    int
	OpenTrades   int
	WinRate      float64 // fraction of trades with PnL > 0, [0, 1]
	AvgWin       float64
	AvgLoss      float64 // mean PnL of losing trades (negative)
	PayoffRatio  float64 // AvgWin / |AvgLoss|
	Expectancy   float64 // WinRate*AvgWin + (1-WinRate)*AvgLoss
	ProfitFactor float64 // gross profit / gross loss
	LargestWin   float64
	LargestLoss  float64
	AvgBarsHeld  float64
	TotalPnL     float64 // sum of trade PnL, open trades included
}

// ComputeBasicMetrics computes equity statistics. Empty or degenerate input yields
// the zero record. Zero-variance returns give zero volatility and Sharpe.
// Calmar is +Inf when the curve never draws down and CAGR is positive, and
// zero when both are zero.
func ComputeBasicMetrics(equity []float64, initialCapital, periodsPerYear float64) BasicMetrics {
	m := BasicMetrics{}
	if len(equity) == 0 || !(initialCapital > 0) || !(periodsPerYear > 0) {
		return m
	}

	m.Bars = len(equity)
	m.FinalEquity = equity[len(equity)-1]
	m.TotalPnL = m.FinalEquity - initialCapital

	ratio := m.FinalEquity / initialCapital
	m.ReturnPct = (ratio - 1) * 100
	if ratio > 0 {
		m.CAGR = math.Pow(ratio, periodsPerYear/float64(len(equity))) - 1
	} else {
		m.CAGR = -1
	}

	m.MaxDrawdown = MaxDrawdownFromEquity(equity)

	returns := equityReturns(equity)
	std := stddev(returns, mean(returns))
	m.Volatility = std * math.Sqrt(periodsPerYear)
	m.SharpeRatio = SharpeFromReturns(returns, periodsPerYear)
	m.SortinoRatio = SortinoFromReturns(returns, periodsPerYear)
	m.CalmarRatio = calmar(m.CAGR, m.MaxDrawdown)

	return m
}

// ComputeTradeMetrics computes trade statistics. Zero trades yield the zero
// record.
func ComputeTradeMetrics(trades []TradeRecord) TradeMetrics {
	m := TradeMetrics{}
	if len(trades) == 0 {
		return m
	}
	m.NumTrades = len(trades)

	var (
		wins, losses         int
		winSum, lossSum      float64
		grossProfit, grossLs float64
		barsSum              int
	)
	for _, tr := range trades {
		m.TotalPnL += tr.PnL
		barsSum += tr.BarsHeld
		if tr.IsOpen {
			m.OpenTrades++
		}
		switch {
		case tr.PnL > 0:
			wins++
			winSum += tr.PnL
			grossProfit += tr.PnL
			if tr.PnL > m.LargestWin {
				m.LargestWin = tr.PnL
			}
		case tr.PnL < 0:
			losses++
			lossSum += tr.PnL
			grossLs += -tr.PnL
			if tr.PnL < m.LargestLoss {
				m.LargestLoss = tr.PnL
			}
		}
	}

	m.WinRate = float64(wins) / float64(m.NumTrades)
	if wins > 0 {
		m.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		m.AvgLoss = lossSum / float64(losses)
	}
	m.AvgBarsHeld = float64(barsSum) / float64(m.NumTrades)

	switch {
	case m.AvgLoss != 0:
		m.PayoffRatio = m.AvgWin / math.Abs(m.AvgLoss)
	case m.AvgWin > 0:
		m.PayoffRatio = math.Inf(1)
	}
	m.Expectancy = m.WinRate*m.AvgWin + (1-m.WinRate)*m.AvgLoss
	m.ProfitFactor = profitFactor(grossProfit, grossLs)

	return m
}

// Robustness blend weights.
const (
	robustWeightProfitable = 0.3
	robustWeightMAR        = 0.3
	robustWeightSmoothness = 0.4
)

// RobustnessScore ranks a set of sweep outcomes: 0.3 * share of profitable
// combinations + 0.3 * average MAR (Calmar) + 0.4 * smoothness, where
// smoothness is 1 - min(|std/mean|, 1) of the combinations' ReturnPct.
// Failed combinations (NaN ReturnPct) are ignored. Infinite Calmar values
// are left out of the MAR average.
func RobustnessScore(results []BasicMetrics) float64 {
	var rets, mars []float64
	profitable := 0
	for _, r := range results {
		if math.IsNaN(r.ReturnPct) {
			continue
		}
		rets = append(rets, r.ReturnPct)
		if r.ReturnPct > 0 {
			profitable++
		}
		if !math.IsNaN(r.CalmarRatio) && !math.IsInf(r.CalmarRatio, 0) {
			mars = append(mars, r.CalmarRatio)
		}
	}
	if len(rets) == 0 {
		return 0
	}

	pctProfitable := float64(profitable) / float64(len(rets))
	avgMAR := mean(mars)

	smoothness := 0.0
	if mu := mean(rets); mu != 0 {
		cv := math.Abs(stddev(rets, mu) / mu)
		smoothness = 1 - math.Min(cv, 1)
	}

	return robustWeightProfitable*pctProfitable +
		robustWeightMAR*avgMAR +
		robustWeightSmoothness*smoothness
}

// SharpeFromReturns computes the annualized Sharpe ratio from periodic returns:
// mean * periodsPerYear / (std * sqrt(periodsPerYear)).
// Returns 0 if there are fewer than 2 returns or std is zero.
func SharpeFromReturns(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mu := mean(returns)
	std := stddev(returns, mu)
	if std == 0 {
		return 0
	}
	return mu * periodsPerYear / (std * math.Sqrt(periodsPerYear))
}

// SortinoFromReturns computes the annualized Sortino ratio from periodic returns.
// Only negative returns contribute to the downside deviation.
func SortinoFromReturns(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	downDev := downsideDeviation(returns)
	if downDev == 0 {
		return 0
	}
	return (mean(returns) / downDev) * math.Sqrt(periodsPerYear)
}

// MaxDrawdownFromEquity returns the deepest peak-to-trough decline as a
// fraction of the running peak, expressed as a value <= 0.
func MaxDrawdownFromEquity(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, eq := range equity {
		if eq > peak {
			peak = eq
		}
		if peak <= 0 {
			continue
		}
		if dd := (eq - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func calmar(cagr, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		if cagr > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return cagr / math.Abs(maxDrawdown)
}

func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

// --- Internal helpers ---

// equityReturns is the bar-over-bar fractional change of an equity curve,
// skipping the first bar. Bars following a zero equity are dropped.
func equityReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

// mean returns the arithmetic mean of a slice.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev returns the sample standard deviation of a slice given its mean.
func stddev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// downsideDeviation returns the downside deviation (target = 0) from a slice of returns.
func downsideDeviation(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sumSq := 0.0
	count := 0
	for _, x := range xs {
		if x < 0 {
			sumSq += x * x
			count++
		}
	}
	if count == 0 {
		return 0
	}
	// Total count in the denominator, as a semi-deviation.
	return math.Sqrt(sumSq / float64(len(xs)-1))
}
