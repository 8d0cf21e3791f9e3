package progress

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/cyclelab/internal/observability"
)

// countingObserver records how many events of each kind arrived.
type countingObserver struct {
	Nop
	mu     sync.Mutex
	combos int
	splits int
}

func (c *countingObserver) CombinationDone(Combination) {
	c.mu.Lock()
	c.combos++
	c.mu.Unlock()
}

func (c *countingObserver) SplitDone(Split) {
	c.mu.Lock()
	c.splits++
	c.mu.Unlock()
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	m := NewMulti(a, nil, b)
	require.Len(t, m, 2)

	m.CombinationDone(Combination{})
	m.CombinationDone(Combination{})
	m.SplitDone(Split{})
	m.SweepStarted(SweepStart{})

	assert.Equal(t, 2, a.combos)
	assert.Equal(t, 2, b.combos)
	assert.Equal(t, 1, b.splits)
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop{}, OrNop(nil))
	c := &countingObserver{}
	assert.Same(t, c, OrNop(c))
}

func TestLogObserver_Levels(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLogObserver(zerolog.New(&buf).Level(zerolog.InfoLevel))

	obs.SweepStarted(SweepStart{RunID: "r1", Combinations: 4, Workers: 2})
	obs.CombinationDone(Combination{RunID: "r1", Index: 0, Params: "cycle_length=10", Metric: 1.5})
	obs.CombinationDone(Combination{RunID: "r1", Index: 1, Params: "cycle_length=20", Metric: math.NaN(), Err: errors.New("boom")})
	obs.SweepFinished(SweepEnd{RunID: "r1", Total: 4, Completed: 4, Failed: 1, Duration: time.Second})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3, "debug combination line is filtered")
	assert.Contains(t, lines[0], `"message":"sweep: started"`)
	assert.Contains(t, lines[0], `"combinations":4`)
	assert.Contains(t, lines[1], `"level":"warn"`)
	assert.Contains(t, lines[1], `"error":"boom"`)
	assert.Contains(t, lines[2], `"failed":1`)
}

func TestLogObserver_WalkForward(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLogObserver(zerolog.New(&buf))

	obs.WalkForwardStarted(WalkForwardStart{RunID: "wf", Splits: 2, Metric: "sharpe_ratio"})
	obs.SplitDone(Split{RunID: "wf", Index: 0, Total: 2, InSample: 1.2, OutSample: 0.4})
	obs.SplitDone(Split{RunID: "wf", Index: 1, Err: errors.New("no viable")})
	obs.WalkForwardFinished(WalkForwardEnd{RunID: "wf", Splits: 2, Completed: 1, Err: errors.New("no viable")})

	out := buf.String()
	assert.Contains(t, out, `"metric":"sharpe_ratio"`)
	assert.Contains(t, out, `"in_sample":1.2`)
	assert.Contains(t, out, `"message":"walkforward: split failed"`)
	assert.Equal(t, 2, strings.Count(out, `"level":"error"`))
}

func TestMetricsObserver_Counts(t *testing.T) {
	reg := observability.EngineMetrics()
	obs := NewMetricsObserver(reg)

	obs.SweepStarted(SweepStart{Combinations: 4})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev := Combination{Index: i, Trades: 3, Duration: 2 * time.Millisecond}
			if i == 3 {
				ev.Err = errors.New("bad")
			}
			obs.CombinationDone(ev)
		}(i)
	}
	wg.Wait()
	obs.SweepFinished(SweepEnd{})

	assert.Equal(t, 4.0, reg.LookupCounter(observability.CombinationsTotal).Value())
	assert.Equal(t, 1.0, reg.LookupCounter(observability.CombinationsFailedTotal).Value())
	assert.Equal(t, 9.0, reg.LookupCounter(observability.TradesTotal).Value())
	assert.Equal(t, 1.0, reg.LookupCounter(observability.SweepsTotal).Value())
	assert.Equal(t, 1.0, reg.LookupGauge(observability.SweepProgress).Value())
	assert.Equal(t, int64(4), reg.LookupHistogram(observability.CombinationDurationMs).Count())

	obs.SplitStarted(SplitStart{})
	assert.Equal(t, 1.0, reg.LookupGauge(observability.SplitsInFlight).Value())
	obs.SplitDone(Split{Duration: time.Millisecond})
	assert.Equal(t, 0.0, reg.LookupGauge(observability.SplitsInFlight).Value())
	assert.Equal(t, 1.0, reg.LookupCounter(observability.SplitsTotal).Value())
}
