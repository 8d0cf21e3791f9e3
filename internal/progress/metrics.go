package progress

import (
	"sync/atomic"

	"github.com/nexus-trading/cyclelab/internal/observability"
)

// MetricsObserver feeds run events into an observability registry.
type MetricsObserver struct {
	combos       *observability.Counter
	failed       *observability.Counter
	trades       *observability.Counter
	sweeps       *observability.Counter
	splits       *observability.Counter
	progress     *observability.Gauge
	inFlight     *observability.Gauge
	comboLatency *observability.Histogram
	splitLatency *observability.Histogram

	done  atomic.Int64
	total atomic.Int64
}

// NewMetricsObserver registers (or reuses) the engine instruments on reg.
func NewMetricsObserver(reg *observability.Registry) *MetricsObserver {
	return &MetricsObserver{
		combos:       reg.Counter(observability.CombinationsTotal, "Parameter combinations evaluated", nil),
		failed:       reg.Counter(observability.CombinationsFailedTotal, "Parameter combinations recorded as failed rows", nil),
		trades:       reg.Counter(observability.TradesTotal, "Trades extracted across all evaluated combinations", nil),
		sweeps:       reg.Counter(observability.SweepsTotal, "Sweeps completed", nil),
		splits:       reg.Counter(observability.SplitsTotal, "Walk-forward splits completed", nil),
		progress:     reg.Gauge(observability.SweepProgress, "Fraction of the current sweep grid evaluated", nil),
		inFlight:     reg.Gauge(observability.SplitsInFlight, "Walk-forward splits currently running", nil),
		comboLatency: reg.Histogram(observability.CombinationDurationMs, "Wall time per combination in milliseconds", nil, observability.DurationBuckets),
		splitLatency: reg.Histogram(observability.SplitDurationMs, "Wall time per walk-forward split in milliseconds", nil, observability.DurationBuckets),
	}
}

func (m *MetricsObserver) SweepStarted(e SweepStart) {
	m.done.Store(0)
	m.total.Store(int64(e.Combinations))
	m.progress.Set(0)
}

func (m *MetricsObserver) CombinationDone(e Combination) {
	m.combos.Inc()
	if e.Err != nil {
		m.failed.Inc()
	} else {
		m.trades.Add(float64(e.Trades))
	}
	m.comboLatency.Observe(float64(e.Duration.Microseconds()) / 1000)

	done := m.done.Add(1)
	if total := m.total.Load(); total > 0 {
		m.progress.Set(float64(done) / float64(total))
	}
}

func (m *MetricsObserver) SweepFinished(SweepEnd) {
	m.sweeps.Inc()
}

func (m *MetricsObserver) WalkForwardStarted(WalkForwardStart) {}

func (m *MetricsObserver) SplitStarted(SplitStart) {
	m.inFlight.Inc()
}

func (m *MetricsObserver) SplitDone(e Split) {
	m.inFlight.Dec()
	if e.Err == nil {
		m.splits.Inc()
	}
	m.splitLatency.Observe(float64(e.Duration.Microseconds()) / 1000)
}

func (m *MetricsObserver) WalkForwardFinished(WalkForwardEnd) {}
