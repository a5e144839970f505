// Package export moves measurement rows between a table store and flat
// files: Parquet for columnar archives, CSV for spreadsheet-friendly dumps.
// Import is the inverse and preserves original timestamps.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/timebase/internal/storage/series"
	"github.com/xtxerr/timebase/internal/storage/types"
)

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType
}

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{Compression: CompressionZstd}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// MeasurementRow represents a measurement in Parquet format.
// Timestamps are UTC microseconds so sub-second samples survive the trip.
type MeasurementRow struct {
	Name        string `parquet:"name,zstd"`
	Type        string `parquet:"type,zstd"`
	Value       string `parquet:"value,optional,zstd"`
	TimestampUs int64  `parquet:"timestamp_us"`
}

// MeasurementToRow converts a Measurement to a MeasurementRow.
func MeasurementToRow(m *types.Measurement) MeasurementRow {
	return MeasurementRow{
		Name:        m.Name,
		Type:        m.Type.String(),
		Value:       m.Value,
		TimestampUs: m.Timestamp.UTC().UnixMicro(),
	}
}

// RowToMeasurement converts a MeasurementRow to a Measurement.
func RowToMeasurement(r *MeasurementRow) types.Measurement {
	return types.Measurement{
		Name:      r.Name,
		Type:      types.MeasurementType(r.Type),
		Value:     r.Value,
		Timestamp: time.UnixMicro(r.TimestampUs).UTC(),
	}
}

// WriteParquet exports the rows matching the filter to a Parquet file.
// Returns the number of rows written.
func WriteParquet(ctx context.Context, st *series.Store, f series.Filter, path string, opts Options) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[MeasurementRow](file,
		parquet.Compression(getCompression(opts.Compression)))

	var written int64
	for m, err := range st.Range(ctx, f) {
		if err != nil {
			writer.Close()
			file.Close()
			return written, err
		}

		row := MeasurementToRow(&m)
		if _, err := writer.Write([]MeasurementRow{row}); err != nil {
			writer.Close()
			file.Close()
			return written, fmt.Errorf("write row: %w", err)
		}
		written++
	}

	if err := writer.Close(); err != nil {
		file.Close()
		return written, fmt.Errorf("close writer: %w", err)
	}
	return written, file.Close()
}

// ReadParquet imports a Parquet file into the store, preserving the original
// timestamps. Returns the number of rows appended.
func ReadParquet(ctx context.Context, st *series.Store, path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	pf, err := parquet.OpenFile(file, stat.Size(), parquet.ReadBufferSize(1024*1024))
	if err != nil {
		return 0, fmt.Errorf("open parquet file: %w", err)
	}
	reader := parquet.NewGenericReader[MeasurementRow](pf)
	defer reader.Close()

	var imported int64
	rows := make([]MeasurementRow, 1024)
	for {
		n, readErr := reader.Read(rows)
		for i := 0; i < n; i++ {
			m := RowToMeasurement(&rows[i])
			if _, err := st.Append(ctx, m.Name, m.Type, m.Value, m.Timestamp); err != nil {
				return imported, err
			}
			imported++
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return imported, fmt.Errorf("read rows: %w", readErr)
		}
	}

	return imported, nil
}
