package observability

import (
	"sort"
	"sync"
)

// Registry owns a set of named instruments. It is safe for concurrent use.
// Asking for an existing name returns the instrument already registered.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// Counter returns the counter called name, creating it if needed.
func (r *Registry) Counter(name, help string, labels map[string]string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: name, help: help, labels: copyLabels(labels)}
	r.counters[name] = c
	return c
}

// Gauge returns the gauge called name, creating it if needed.
func (r *Registry) Gauge(name, help string, labels map[string]string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: name, help: help, labels: copyLabels(labels)}
	r.gauges[name] = g
	return g
}

// Histogram returns the histogram called name, creating it with the given
// bucket bounds if needed.
func (r *Registry) Histogram(name, help string, labels map[string]string, bounds []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	sorted := append([]float64(nil), bounds...)
	sort.Float64s(sorted)
	h := &Histogram{
		name:   name,
		help:   help,
		labels: copyLabels(labels),
		bounds: sorted,
		counts: make([]int64, len(sorted)),
	}
	r.histograms[name] = h
	return h
}

// LookupCounter returns a registered counter or nil.
func (r *Registry) LookupCounter(name string) *Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// LookupGauge returns a registered gauge or nil.
func (r *Registry) LookupGauge(name string) *Gauge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

// LookupHistogram returns a registered histogram or nil.
func (r *Registry) LookupHistogram(name string) *Histogram {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.histograms[name]
}

// Samples returns counters, then gauges, then histograms, each sorted by name.
func (r *Registry) Samples() []Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Sample, 0, len(r.counters)+len(r.gauges)+len(r.histograms))
	for _, name := range sortedKeys(r.counters) {
		out = append(out, r.counters[name].Sample())
	}
	for _, name := range sortedKeys(r.gauges) {
		out = append(out, r.gauges[name].Sample())
	}
	for _, name := range sortedKeys(r.histograms) {
		out = append(out, r.histograms[name].Sample())
	}
	return out
}

// DurationBuckets are histogram bounds in milliseconds.
var DurationBuckets = []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000, 30000}

// Metric names registered by EngineMetrics.
const (
	CombinationsTotal       = "cyclelab_combinations_total"
	CombinationsFailedTotal = "cyclelab_combinations_failed_total"
	TradesTotal             = "cyclelab_trades_total"
	SweepsTotal             = "cyclelab_sweeps_total"
	SplitsTotal             = "cyclelab_splits_total"
	SweepProgress           = "cyclelab_sweep_progress_ratio"
	SplitsInFlight          = "cyclelab_splits_in_flight"
	CombinationDurationMs   = "cyclelab_combination_duration_ms"
	SplitDurationMs         = "cyclelab_split_duration_ms"
)

// EngineMetrics creates a registry preloaded with the evaluation engine's
// instruments.
func EngineMetrics() *Registry {
	r := NewRegistry()

	r.Counter(CombinationsTotal, "Parameter combinations evaluated", nil)
	r.Counter(CombinationsFailedTotal, "Parameter combinations recorded as failed rows", nil)
	r.Counter(TradesTotal, "Trades extracted across all evaluated combinations", nil)
	r.Counter(SweepsTotal, "Sweeps completed", nil)
	r.Counter(SplitsTotal, "Walk-forward splits completed", nil)

	r.Gauge(SweepProgress, "Fraction of the current sweep grid evaluated", nil)
	r.Gauge(SplitsInFlight, "Walk-forward splits currently running", nil)

	r.Histogram(CombinationDurationMs, "Wall time per combination in milliseconds", nil, DurationBuckets)
	r.Histogram(SplitDurationMs, "Wall time per walk-forward split in milliseconds", nil, DurationBuckets)

	return r
}

func copyLabels(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
