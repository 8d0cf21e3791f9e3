package observability

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// TextExporter renders a registry in the Prometheus text exposition format.
// The CLI dumps it after a run.
type TextExporter struct {
	registry *Registry
}

// NewTextExporter creates an exporter backed by registry.
func NewTextExporter(registry *Registry) *TextExporter {
	return &TextExporter{registry: registry}
}

// Format returns the exposition text.
func (e *TextExporter) Format() string {
	var b strings.Builder
	_ = e.Write(&b)
	return b.String()
}

// Write renders every instrument to w:
//
//	# HELP <name> <help>
//	# TYPE <name> <kind>
//	<name>{labels} <value>
func (e *TextExporter) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	e.registry.mu.RLock()
	counters := make([]*Counter, 0, len(e.registry.counters))
	for _, n := range sortedKeys(e.registry.counters) {
		counters = append(counters, e.registry.counters[n])
	}
	gauges := make([]*Gauge, 0, len(e.registry.gauges))
	for _, n := range sortedKeys(e.registry.gauges) {
		gauges = append(gauges, e.registry.gauges[n])
	}
	hists := make([]*Histogram, 0, len(e.registry.histograms))
	for _, n := range sortedKeys(e.registry.histograms) {
		hists = append(hists, e.registry.histograms[n])
	}
	e.registry.mu.RUnlock()

	for _, c := range counters {
		header(bw, c.name, c.help, KindCounter)
		fmt.Fprintf(bw, "%s%s %s\n\n", c.name, formatLabels(c.labels), formatFloat(c.Value()))
	}
	for _, g := range gauges {
		header(bw, g.name, g.help, KindGauge)
		fmt.Fprintf(bw, "%s%s %s\n\n", g.name, formatLabels(g.labels), formatFloat(g.Value()))
	}
	for _, h := range hists {
		bounds, counts, sum, total := h.Buckets()
		header(bw, h.name, h.help, KindHistogram)
		for i, le := range bounds {
			fmt.Fprintf(bw, "%s_bucket%s %d\n", h.name, withLabel(h.labels, "le", formatFloat(le)), counts[i])
		}
		fmt.Fprintf(bw, "%s_bucket%s %d\n", h.name, withLabel(h.labels, "le", "+Inf"), total)
		fmt.Fprintf(bw, "%s_sum%s %s\n", h.name, formatLabels(h.labels), formatFloat(sum))
		fmt.Fprintf(bw, "%s_count%s %d\n\n", h.name, formatLabels(h.labels), total)
	}
	return bw.Flush()
}

func header(w io.Writer, name, help string, kind Kind) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

// formatLabels renders {k1="v1",k2="v2"} with sorted keys, or "" when empty.
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.Quote(labels[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func withLabel(base map[string]string, key, value string) string {
	merged := copyLabels(base)
	if merged == nil {
		merged = make(map[string]string, 1)
	}
	merged[key] = value
	return formatLabels(merged)
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
