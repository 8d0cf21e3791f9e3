// Package progress carries run events out of the sweep and walk-forward
// runners. The runners never log; callers subscribe an Observer instead.
package progress

import "time"

// SweepStart is emitted once before the first combination is evaluated.
type SweepStart struct {
	RunID        string
	Combinations int
	Workers      int
}

// Combination is emitted after each grid point has been evaluated.
type Combination struct {
	RunID    string
	Index    int // position in the grid
	Total    int
	Params   string
	Trades   int
	Metric   float64 // return_pct of the run, NaN on failure
	Duration time.Duration
	Err      error
}

// SweepEnd is emitted once the sweep returns, including on cancellation.
type SweepEnd struct {
	RunID     string
	Total     int
	Completed int
	Failed    int
	Duration  time.Duration
	Err       error
}

// WalkForwardStart is emitted once the windows have been computed.
type WalkForwardStart struct {
	RunID  string
	Splits int
	Metric string
}

// SplitStart is emitted when a walk-forward window begins its in-sample
// sweep.
type SplitStart struct {
	RunID     string
	Index     int
	Total     int
	TrainBars int
	TestBars  int
}

// Split is emitted when a walk-forward window has finished its in-sample
// sweep and out-of-sample run.
type Split struct {
	RunID     string
	Index     int
	Total     int
	TrainBars int
	TestBars  int
	Params    string
	InSample  float64 // optimisation metric on the training window
	OutSample float64 // same metric on the test window
	Duration  time.Duration
	Err       error
}

// WalkForwardEnd is emitted once the walk-forward run returns.
type WalkForwardEnd struct {
	RunID     string
	Splits    int
	Completed int
	Duration  time.Duration
	Err       error
}

// Observer receives run events. Combination and Split events arrive from
// worker goroutines, so implementations must be safe for concurrent use.
type Observer interface {
	SweepStarted(SweepStart)
	CombinationDone(Combination)
	SweepFinished(SweepEnd)
	WalkForwardStarted(WalkForwardStart)
	SplitStarted(SplitStart)
	SplitDone(Split)
	WalkForwardFinished(WalkForwardEnd)
}

// Nop ignores every event. Embed it to implement only the events you need.
type Nop struct{}

func (Nop) SweepStarted(SweepStart)             {}
func (Nop) CombinationDone(Combination)         {}
func (Nop) SweepFinished(SweepEnd)              {}
func (Nop) WalkForwardStarted(WalkForwardStart) {}
func (Nop) SplitStarted(SplitStart)             {}
func (Nop) SplitDone(Split)                     {}
func (Nop) WalkForwardFinished(WalkForwardEnd)  {}

// Multi fans each event out to every observer in order.
type Multi []Observer

// NewMulti drops nil observers.
func NewMulti(observers ...Observer) Multi {
	out := make(Multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m Multi) SweepStarted(e SweepStart) {
	for _, o := range m {
		o.SweepStarted(e)
	}
}

func (m Multi) CombinationDone(e Combination) {
	for _, o := range m {
		o.CombinationDone(e)
	}
}

func (m Multi) SweepFinished(e SweepEnd) {
	for _, o := range m {
		o.SweepFinished(e)
	}
}

func (m Multi) WalkForwardStarted(e WalkForwardStart) {
	for _, o := range m {
		o.WalkForwardStarted(e)
	}
}

func (m Multi) SplitStarted(e SplitStart) {
	for _, o := range m {
		o.SplitStarted(e)
	}
}

func (m Multi) SplitDone(e Split) {
	for _, o := range m {
		o.SplitDone(e)
	}
}

func (m Multi) WalkForwardFinished(e WalkForwardEnd) {
	for _, o := range m {
		o.WalkForwardFinished(e)
	}
}

// OrNop returns o, or Nop when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop{}
	}
	return o
}
