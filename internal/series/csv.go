package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order when parsing the timestamp column.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LoadCSV reads a two-or-more column CSV file and returns the series in the
// named value column. The first column must hold timestamps. A header row
// is required.
func LoadCSV(path, column string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return Series{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	s, err := ReadCSV(f, column)
	if err != nil {
		return Series{}, fmt.Errorf("read %s: %w", path, err)
	}
	return s, nil
}

// ReadCSV parses CSV records from r. See LoadCSV.
func ReadCSV(r io.Reader, column string) (Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Series{}, fmt.Errorf("%w: empty csv", ErrValidation)
		}
		return Series{}, fmt.Errorf("read header: %w", err)
	}

	col := -1
	for i, h := range header {
		if i > 0 && strings.EqualFold(strings.TrimSpace(h), column) {
			col = i
			break
		}
	}
	if col < 0 {
		return Series{}, fmt.Errorf("%w: column %q not found in header %v", ErrValidation, column, header)
	}

	var (
		index  []time.Time
		values []float64
	)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Series{}, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := parseTime(rec[0])
		if err != nil {
			return Series{}, fmt.Errorf("%w: line %d: %v", ErrValidation, line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
		if err != nil {
			return Series{}, fmt.Errorf("%w: line %d: %v", ErrValidation, line, err)
		}
		index = append(index, ts)
		values = append(values, v)
	}
	return New(index, values)
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}
