package series

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrValidation marks fatal input problems: mismatched indices, empty
// series, insufficient history, unknown enum values. Callers match it with
// errors.Is; it is never recovered inside a run.
var ErrValidation = errors.New("validation error")

// Series is an ordered sequence of (timestamp, value) pairs stored as a
// struct of arrays. Timestamps are strictly increasing and unique.
type Series struct {
	Index  []time.Time
	Values []float64
}

// New builds a Series after checking that index and values have the same
// length and that timestamps strictly increase.
func New(index []time.Time, values []float64) (Series, error) {
	s := Series{Index: index, Values: values}
	if err := s.Validate(); err != nil {
		return Series{}, err
	}
	return s, nil
}

// MustNew is New for fixtures with known-good input. It panics on error.
func MustNew(index []time.Time, values []float64) Series {
	s, err := New(index, values)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks the structural invariants of the series.
func (s Series) Validate() error {
	if len(s.Index) != len(s.Values) {
		return fmt.Errorf("%w: index has %d timestamps but %d values", ErrValidation, len(s.Index), len(s.Values))
	}
	for i := 1; i < len(s.Index); i++ {
		if !s.Index[i].After(s.Index[i-1]) {
			return fmt.Errorf("%w: timestamps not strictly increasing at bar %d (%s <= %s)",
				ErrValidation, i, s.Index[i].Format(time.RFC3339), s.Index[i-1].Format(time.RFC3339))
		}
	}
	return nil
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Values) }

// Empty reports whether the series has no bars.
func (s Series) Empty() bool { return len(s.Values) == 0 }

// Last returns the final value, or NaN for an empty series.
func (s Series) Last() float64 {
	if len(s.Values) == 0 {
		return math.NaN()
	}
	return s.Values[len(s.Values)-1]
}

// Slice returns a copy of bars [start, end). Bounds are clipped to the
// series length so callers can pass window ends past the last bar.
func (s Series) Slice(start, end int) Series {
	if start < 0 {
		start = 0
	}
	if end > len(s.Values) {
		end = len(s.Values)
	}
	if start >= end {
		return Series{Index: []time.Time{}, Values: []float64{}}
	}
	idx := make([]time.Time, end-start)
	vals := make([]float64, end-start)
	copy(idx, s.Index[start:end])
	copy(vals, s.Values[start:end])
	return Series{Index: idx, Values: vals}
}

// Clone returns a deep copy.
func (s Series) Clone() Series {
	return s.Slice(0, len(s.Values))
}

// SameIndex reports whether two series share an identical timestamp
// sequence. It is an equality check only; series are never realigned.
func SameIndex(a, b Series) bool {
	if len(a.Index) != len(b.Index) {
		return false
	}
	for i := range a.Index {
		if !a.Index[i].Equal(b.Index[i]) {
			return false
		}
	}
	return true
}

// RequireSameIndex returns an ErrValidation error naming the first
// differing bar when a and b are not aligned.
func RequireSameIndex(a, b Series) error {
	if len(a.Index) != len(b.Index) {
		return fmt.Errorf("%w: index length mismatch (%d vs %d)", ErrValidation, len(a.Index), len(b.Index))
	}
	for i := range a.Index {
		if !a.Index[i].Equal(b.Index[i]) {
			return fmt.Errorf("%w: index mismatch at bar %d (%s vs %s)",
				ErrValidation, i, a.Index[i].Format(time.RFC3339), b.Index[i].Format(time.RFC3339))
		}
	}
	return nil
}

// Constant builds a series over index with every value set to v.
func Constant(index []time.Time, v float64) Series {
	vals := make([]float64, len(index))
	for i := range vals {
		vals[i] = v
	}
	idx := make([]time.Time, len(index))
	copy(idx, index)
	return Series{Index: idx, Values: vals}
}

// DailyIndex returns n consecutive daily timestamps starting at start.
// It is a convenience for fixtures and synthetic inputs.
func DailyIndex(start time.Time, n int) []time.Time {
	idx := make([]time.Time, n)
	for i := range idx {
		idx[i] = start.AddDate(0, 0, i)
	}
	return idx
}
