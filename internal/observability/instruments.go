package observability

import (
	"math"
	"sync"
	"sync/atomic"
)

// Kind identifies the kind of instrument.
type Kind string

const (
	KindCounter   Kind = "counter"
	KindGauge     Kind = "gauge"
	KindHistogram Kind = "histogram"
)

// Sample is a point-in-time reading of one instrument.
type Sample struct {
	Name   string            `json:"name"`
	Kind   Kind              `json:"kind"`
	Help   string            `json:"help"`
	Value  float64           `json:"value"`
	Labels map[string]string `json:"labels,omitempty"`
}

// Counter only goes up. The value is kept in thousandths so that fractional
// adds stay lock-free.
type Counter struct {
	name   string
	help   string
	labels map[string]string
	milli  atomic.Int64
}

// Inc adds one.
func (c *Counter) Inc() { c.milli.Add(1000) }

// Add adds delta. Negative deltas are dropped.
func (c *Counter) Add(delta float64) {
	if delta < 0 || math.IsNaN(delta) {
		return
	}
	c.milli.Add(int64(math.Round(delta * 1000)))
}

// Value returns the current total.
func (c *Counter) Value() float64 { return float64(c.milli.Load()) / 1000 }

// Sample returns a snapshot.
func (c *Counter) Sample() Sample {
	return Sample{Name: c.name, Kind: KindCounter, Help: c.help, Value: c.Value(), Labels: copyLabels(c.labels)}
}

// Gauge holds a value that can move both ways.
type Gauge struct {
	name   string
	help   string
	labels map[string]string
	bits   atomic.Uint64
}

// Set stores v.
func (g *Gauge) Set(v float64) { g.bits.Store(math.Float64bits(v)) }

// Add moves the gauge by delta.
func (g *Gauge) Add(delta float64) {
	for {
		old := g.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if g.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Inc adds one.
func (g *Gauge) Inc() { g.Add(1) }

// Dec subtracts one.
func (g *Gauge) Dec() { g.Add(-1) }

// Value returns the current value.
func (g *Gauge) Value() float64 { return math.Float64frombits(g.bits.Load()) }

// Sample returns a snapshot.
func (g *Gauge) Sample() Sample {
	return Sample{Name: g.name, Kind: KindGauge, Help: g.help, Value: g.Value(), Labels: copyLabels(g.labels)}
}

// Histogram counts observations into cumulative upper-bound buckets:
// v <= bounds[i] increments counts[i].
type Histogram struct {
	name   string
	help   string
	labels map[string]string

	mu     sync.Mutex
	bounds []float64
	counts []int64
	sum    float64
	total  int64
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.total++
	for i, b := range h.bounds {
		if v <= b {
			h.counts[i]++
		}
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

// Sum returns the sum of observations.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Mean returns Sum/Count, or 0 with no observations.
func (h *Histogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.total == 0 {
		return 0
	}
	return h.sum / float64(h.total)
}

// Quantile estimates the q-th quantile (0..1) by interpolating inside the
// bucket that holds the target rank.
func (h *Histogram) Quantile(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.total == 0 || q < 0 || q > 1 || len(h.bounds) == 0 {
		return 0
	}

	rank := q * float64(h.total)
	var lower, below float64
	for i, upper := range h.bounds {
		cum := float64(h.counts[i])
		if cum >= rank {
			inBucket := cum - below
			if inBucket == 0 {
				return upper
			}
			return lower + (rank-below)/inBucket*(upper-lower)
		}
		lower, below = upper, cum
	}
	return h.bounds[len(h.bounds)-1]
}

// Buckets returns copies of the bounds and cumulative counts plus sum and count.
func (h *Histogram) Buckets() (bounds []float64, counts []int64, sum float64, total int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	bounds = append([]float64(nil), h.bounds...)
	counts = append([]int64(nil), h.counts...)
	return bounds, counts, h.sum, h.total
}

// Sample returns a snapshot whose value is the observation count.
func (h *Histogram) Sample() Sample {
	return Sample{Name: h.name, Kind: KindHistogram, Help: h.help, Value: float64(h.Count()), Labels: copyLabels(h.labels)}
}
