package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xtxerr/timebase/internal/storage/series"
	"github.com/xtxerr/timebase/internal/storage/types"
)

// csvHeader is the column layout of CSV dumps.
var csvHeader = []string{"name", "type", "value", "timestamp"}

// csvTimeLayout renders timestamps with sub-second precision in UTC.
const csvTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// WriteCSV exports the rows matching the filter to a CSV file with a header
// row. Returns the number of data rows written.
func WriteCSV(ctx context.Context, st *series.Store, f series.Filter, path string) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	var written int64
	for m, err := range st.Range(ctx, f) {
		if err != nil {
			return written, err
		}

		record := []string{
			m.Name,
			m.Type.String(),
			m.Value,
			m.Timestamp.UTC().Format(csvTimeLayout),
		}
		if err := w.Write(record); err != nil {
			return written, fmt.Errorf("write record: %w", err)
		}
		written++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return written, fmt.Errorf("flush: %w", err)
	}
	return written, nil
}

// ReadCSV imports a CSV file previously produced by WriteCSV, preserving
// the original timestamps. Returns the number of rows appended.
func ReadCSV(ctx context.Context, st *series.Store, path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(csvHeader)

	// header row
	if _, err := r.Read(); err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}

	var imported int64
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read record: %w", err)
		}

		typ, err := types.ParseMeasurementType(record[1])
		if err != nil {
			return imported, err
		}

		ts, err := time.Parse(time.RFC3339Nano, record[3])
		if err != nil {
			return imported, fmt.Errorf("parse timestamp %q: %w", record[3], err)
		}

		if _, err := st.Append(ctx, record[0], typ, record[2], ts); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}
