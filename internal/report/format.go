// Package report writes result tables to CSV, JSON or Parquet. It is the
// sink the evaluation engine hands its tables to; the engine itself never
// touches the filesystem.
package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nexus-trading/cyclelab/internal/series"
)

// ErrUnknownFormat is returned for an output format outside csv|json|parquet.
// It wraps series.ErrValidation.
var ErrUnknownFormat = fmt.Errorf("unknown output format: %w", series.ErrValidation)

// Format is a result file format.
type Format string

const (
	CSV     Format = "csv"
	JSON    Format = "json"
	Parquet Format = "parquet"
)

// DefaultFormat is used when a config leaves the format empty.
const DefaultFormat = CSV

// ParseFormat accepts csv, json or parquet in any case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if err := f.Validate(); err != nil {
		return "", err
	}
	return f, nil
}

// Validate reports ErrUnknownFormat for anything but the three formats.
func (f Format) Validate() error {
	switch f {
	case CSV, JSON, Parquet:
		return nil
	}
	return fmt.Errorf("report: %q: %w", string(f), ErrUnknownFormat)
}

// Ext is the file extension without the dot.
func (f Format) Ext() string { return string(f) }

// SuggestedPath returns <outputPath>/results.<ext>.
func SuggestedPath(outputPath string, f Format) string {
	return filepath.Join(outputPath, "results."+f.Ext())
}
