package series

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNew_RejectsUnorderedIndex(t *testing.T) {
	idx := []time.Time{t0, t0.AddDate(0, 0, 2), t0.AddDate(0, 0, 1)}
	_, err := New(idx, []float64{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestNew_RejectsDuplicateTimestamps(t *testing.T) {
	idx := []time.Time{t0, t0}
	_, err := New(idx, []float64{1, 2})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNew_RejectsLengthMismatch(t *testing.T) {
	_, err := New(DailyIndex(t0, 3), []float64{1, 2})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSlice_CopiesAndClips(t *testing.T) {
	s := MustNew(DailyIndex(t0, 5), []float64{1, 2, 3, 4, 5})

	sub := s.Slice(3, 10)
	require.Equal(t, 2, sub.Len())
	assert.Equal(t, []float64{4, 5}, sub.Values)

	sub.Values[0] = 99
	assert.Equal(t, 4.0, s.Values[3], "slice must not alias the parent")

	assert.True(t, s.Slice(4, 2).Empty())
}

func TestSameIndex(t *testing.T) {
	a := Constant(DailyIndex(t0, 4), 1)
	b := Constant(DailyIndex(t0, 4), 2)
	c := Constant(DailyIndex(t0.AddDate(0, 0, 1), 4), 1)

	assert.True(t, SameIndex(a, b))
	assert.False(t, SameIndex(a, c))
	assert.False(t, SameIndex(a, a.Slice(0, 3)))

	err := RequireSameIndex(a, c)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "bar 0")
}

func TestReadCSV(t *testing.T) {
	in := `date,open,close
2020-01-01,1,100.5
2020-01-02,2,101
2020-01-03T00:00:00Z,3,99.25
`
	s, err := ReadCSV(strings.NewReader(in), "close")
	require.NoError(t, err)
	assert.Equal(t, []float64{100.5, 101, 99.25}, s.Values)
	assert.True(t, s.Index[2].Equal(t0.AddDate(0, 0, 2)))
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("date,close\n2020-01-01,1\n"), "settle")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReadCSV_BadNumber(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("date,close\n2020-01-01,abc\n"), "close")
	assert.ErrorIs(t, err, ErrValidation)
}
