// Package compress implements the hourly rollup compressor.
//
// The compressor reads raw measurements within a time window, buckets them
// by UTC hour per series, averages each bucket through the aggregation
// engine, and writes the results into the hourly table via its idempotent
// upsert. Re-running an overlapping window recomputes and overwrites; it
// never appends duplicate buckets.
package compress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/timebase/internal/errors"
	"github.com/xtxerr/timebase/internal/logging"
	"github.com/xtxerr/timebase/internal/storage/aggregate"
	"github.com/xtxerr/timebase/internal/storage/codec"
	"github.com/xtxerr/timebase/internal/storage/series"
	"github.com/xtxerr/timebase/internal/storage/types"
)

// BucketFailure records one (series, hour) pair that could not be
// compressed, typically because a raw row's value failed to decode.
type BucketFailure struct {
	Name string
	Hour time.Time
	Err  error
}

// Report summarizes one compression run.
type Report struct {
	// ScannedSeries is the number of series seen in the window.
	ScannedSeries int

	// HoursWritten is the number of hourly buckets upserted.
	HoursWritten int

	// SkippedNonNumeric is the number of series skipped because their
	// type does not support averaging.
	SkippedNonNumeric int

	// Failures lists buckets aborted by malformed raw rows. Failed
	// buckets are never written; other buckets and series still complete.
	Failures []BucketFailure
}

// Stats holds cumulative compressor statistics across runs.
type Stats struct {
	RunsCompleted atomic.Int64
	RunsFailed    atomic.Int64
	HoursWritten  atomic.Int64
	SeriesSkipped atomic.Int64
	BucketsFailed atomic.Int64
}

// Compressor turns raw measurements into hourly averages.
//
// A run-level mutex serializes invocations: concurrent Run calls over
// overlapping ranges queue rather than race.
type Compressor struct {
	runMu sync.Mutex

	raw     *series.Store
	hourly  *series.Hourly
	aggOpts aggregate.Options

	runSeq atomic.Uint64
	stats  Stats
}

// Option configures a Compressor.
type Option func(*Compressor)

// WithAggregateOptions sets the options used for bucket averaging.
func WithAggregateOptions(opts aggregate.Options) Option {
	return func(c *Compressor) { c.aggOpts = opts }
}

// New creates a compressor reading from raw and writing to hourly.
func New(raw *series.Store, hourly *series.Hourly, opts ...Option) *Compressor {
	c := &Compressor{
		raw:    raw,
		hourly: hourly,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run compresses raw measurements in [from, to] to hourly averages.
// Zero times leave that side of the window open.
//
// Decode failures are isolated per (series, hour) bucket and reported in
// the Report; storage failures abort the run and are surfaced. Buckets
// upserted before a storage failure remain committed.
func (c *Compressor) Run(ctx context.Context, from, to time.Time) (Report, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	ctx = logging.ContextWithRunID(ctx, c.runSeq.Add(1))
	started := time.Now()

	var report Report

	infos, err := c.raw.Series(ctx, from, to)
	if err != nil {
		c.stats.RunsFailed.Add(1)
		return report, err
	}

	for _, info := range infos {
		report.ScannedSeries++

		if !info.Type.IsNumeric() {
			report.SkippedNonNumeric++
			c.stats.SeriesSkipped.Add(1)
			logging.WithContext(ctx).Debug("skipping non-numeric series",
				"series", info.Name, "type", info.Type.String())
			continue
		}

		if err := c.compressSeries(ctx, info, from, to, &report); err != nil {
			c.stats.RunsFailed.Add(1)
			return report, err
		}
	}

	c.stats.RunsCompleted.Add(1)
	c.stats.HoursWritten.Add(int64(report.HoursWritten))
	c.stats.BucketsFailed.Add(int64(len(report.Failures)))

	logging.WithContext(ctx).Info("compression run complete",
		"series", report.ScannedSeries,
		"hours_written", report.HoursWritten,
		"skipped_non_numeric", report.SkippedNonNumeric,
		"failed_buckets", len(report.Failures),
		"elapsed", time.Since(started))

	return report, nil
}

// compressSeries buckets one series' rows by hour and upserts each average.
// Rows arrive ascending by timestamp, so buckets close as soon as a row of
// the next hour appears.
func (c *Compressor) compressSeries(ctx context.Context, info types.SeriesInfo, from, to time.Time, report *Report) error {
	var (
		bucket time.Time
		acc    *aggregate.Accumulator
		failed bool
	)

	flush := func() error {
		if acc == nil || failed {
			acc = nil
			failed = false
			return nil
		}
		if acc.IsEmpty() {
			acc = nil
			return nil
		}
		if err := c.writeBucket(ctx, info, bucket, acc); err != nil {
			return err
		}
		report.HoursWritten++
		acc = nil
		return nil
	}

	rows := c.raw.Range(ctx, series.Filter{Name: info.Name, From: from, To: to})
	for m, err := range rows {
		if err != nil {
			return err
		}

		hour := m.HourBucket()
		if acc == nil || !hour.Equal(bucket) {
			if err := flush(); err != nil {
				return err
			}
			bucket = hour
			failed = false
			a, err := aggregate.NewAccumulator(info.Type, c.aggOpts)
			if err != nil {
				return err
			}
			acc = a
		}

		if failed {
			continue
		}

		if err := acc.AddMeasurement(m); err != nil {
			if !errors.IsMalformed(err) {
				return err
			}
			failed = true
			report.Failures = append(report.Failures, BucketFailure{
				Name: info.Name,
				Hour: bucket,
				Err:  err,
			})
			logging.WithContext(ctx).Warn("bucket aborted by malformed row",
				"series", info.Name, "hour", bucket, "error", err)
		}
	}

	return flush()
}

// writeBucket encodes a bucket's average under the series' declared type and
// upserts it. Integer series round half away from zero to stay encodable as
// integers.
func (c *Compressor) writeBucket(ctx context.Context, info types.SeriesInfo, bucket time.Time, acc *aggregate.Accumulator) error {
	result := acc.Result()
	if result.Avg == nil {
		return nil
	}

	avg := *result.Avg
	if info.Type == types.TypeInteger {
		avg = codec.Int64Value(avg.Decimal().Round(0).IntPart())
	}

	text, err := codec.Encode(info.Type, avg)
	if err != nil {
		return err
	}

	return c.hourly.UpsertHourlyAverage(ctx, info.Name, bucket, info.Type, text)
}

// CompressorStats is a point-in-time snapshot of cumulative statistics.
type CompressorStats struct {
	RunsCompleted int64
	RunsFailed    int64
	HoursWritten  int64
	SeriesSkipped int64
	BucketsFailed int64
}

// Stats returns cumulative statistics across runs.
func (c *Compressor) Stats() CompressorStats {
	return CompressorStats{
		RunsCompleted: c.stats.RunsCompleted.Load(),
		RunsFailed:    c.stats.RunsFailed.Load(),
		HoursWritten:  c.stats.HoursWritten.Load(),
		SeriesSkipped: c.stats.SeriesSkipped.Load(),
		BucketsFailed: c.stats.BucketsFailed.Load(),
	}
}
