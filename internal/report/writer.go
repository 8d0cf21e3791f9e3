package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

// Write renders rows to w in format f.
func Write[T Record](w io.Writer, f Format, rows []T) error {
	switch f {
	case CSV:
		return writeCSV(w, rows)
	case JSON:
		return writeJSON(w, rows)
	case Parquet:
		if err := parquet.Write(w, rows); err != nil {
			return fmt.Errorf("report: write parquet: %w", err)
		}
		return nil
	}
	return f.Validate()
}

// WriteFile writes rows to path, creating parent directories as needed.
func WriteFile[T Record](path string, f Format, rows []T) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: create dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	if err := Write(file, f, rows); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", path, err)
	}
	return nil
}

// ReadParquetFile loads rows written by WriteFile in parquet format.
func ReadParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("report: read parquet %s: %w", path, err)
	}
	return rows, nil
}

func writeCSV[T Record](w io.Writer, rows []T) error {
	var zero T
	cols := zero.Fields()

	cw := csv.NewWriter(w)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("report: write csv header: %w", err)
	}

	line := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range r.Fields() {
			line[i] = formatCell(c.Value)
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("report: write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeJSON emits an array of objects with keys in column order.
// Non-finite floats become null.
func writeJSON[T Record](w io.Writer, rows []T) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("[")
	for i, r := range rows {
		if i > 0 {
			bw.WriteString(",")
		}
		bw.WriteString("\n  {")
		for j, c := range r.Fields() {
			if j > 0 {
				bw.WriteString(",")
			}
			key, _ := json.Marshal(c.Name)
			val, err := json.Marshal(jsonValue(c.Value))
			if err != nil {
				return fmt.Errorf("report: encode %s: %w", c.Name, err)
			}
			bw.Write(key)
			bw.WriteString(":")
			bw.Write(val)
		}
		bw.WriteString("}")
	}
	if len(rows) > 0 {
		bw.WriteString("\n")
	}
	bw.WriteString("]\n")
	return bw.Flush()
}

func jsonValue(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}

func formatCell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}
