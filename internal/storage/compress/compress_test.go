package compress

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/xtxerr/timebase/internal/storage/codec"
	"github.com/xtxerr/timebase/internal/storage/series"
	"github.com/xtxerr/timebase/internal/storage/store"
	"github.com/xtxerr/timebase/internal/storage/types"
)

type fixture struct {
	st     *store.Store
	raw    *series.Store
	hourly *series.Hourly
	comp   *Compressor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := store.DefaultConfig()
	cfg.Path = "" // in-memory
	st, err := store.New(cfg)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	raw := series.NewRaw(st)
	hourly := series.NewHourly(st)
	return &fixture{
		st:     st,
		raw:    raw,
		hourly: hourly,
		comp:   New(raw, hourly),
	}
}

func (f *fixture) append(t *testing.T, name string, typ types.MeasurementType, value string, ts time.Time) {
	t.Helper()
	if _, err := f.raw.Append(context.Background(), name, typ, value, ts); err != nil {
		t.Fatalf("Append(%s, %q): %v", name, value, err)
	}
}

// insertRaw bypasses append-time validation so decode-failure handling can be
// exercised against rows that predate it.
func (f *fixture) insertRaw(t *testing.T, name string, typ types.MeasurementType, value string, ts time.Time) {
	t.Helper()
	_, err := f.st.ExecContext(context.Background(),
		`INSERT INTO measurements (name, type, value, ts) VALUES (?, ?, ?, ?)`,
		name, typ.String(), value, ts.UTC())
	if err != nil {
		t.Fatalf("insert raw row: %v", err)
	}
}

func (f *fixture) hourlyRows(t *testing.T) []types.Measurement {
	t.Helper()
	ms, err := series.Collect(f.hourly.Range(context.Background(), series.Filter{}))
	if err != nil {
		t.Fatalf("hourly Range: %v", err)
	}
	return ms
}

func TestRun_AveragesOneHour(t *testing.T) {
	f := newFixture(t)
	hour := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	f.append(t, "temp1", types.TypeFloat, "20.5", hour.Add(5*time.Minute))
	f.append(t, "temp1", types.TypeFloat, "21.2", hour.Add(15*time.Minute))
	f.append(t, "temp1", types.TypeFloat, "20.8", hour.Add(45*time.Minute))

	report, err := f.comp.Run(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ScannedSeries != 1 || report.HoursWritten != 1 {
		t.Errorf("report = %+v", report)
	}

	rows := f.hourlyRows(t)
	if len(rows) != 1 {
		t.Fatalf("got %d hourly rows, want 1", len(rows))
	}
	if !rows[0].Timestamp.Equal(hour) {
		t.Errorf("bucket ts = %v, want %v", rows[0].Timestamp, hour)
	}

	v, err := codec.Decode(types.TypeFloat, rows[0].Value)
	if err != nil {
		t.Fatalf("decode hourly value: %v", err)
	}
	want := (20.5 + 21.2 + 20.8) / 3
	if math.Abs(v.Float-want) > 1e-9 {
		t.Errorf("hourly avg = %v, want %v", v.Float, want)
	}
}

func TestRun_BucketsByUTCHour(t *testing.T) {
	f := newFixture(t)
	hour := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	// 10:59 and 11:00 land in different buckets.
	f.append(t, "temp1", types.TypeFloat, "10.0", hour.Add(59*time.Minute))
	f.append(t, "temp1", types.TypeFloat, "20.0", hour.Add(time.Hour))

	// An offset-zone row at 12:30+02:00 is 10:30 UTC, first bucket.
	loc := time.FixedZone("UTC+2", 2*3600)
	f.append(t, "temp1", types.TypeFloat, "30.0", time.Date(2026, 1, 15, 12, 30, 0, 0, loc))

	report, err := f.comp.Run(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.HoursWritten != 2 {
		t.Fatalf("HoursWritten = %d, want 2", report.HoursWritten)
	}

	rows := f.hourlyRows(t)
	if len(rows) != 2 {
		t.Fatalf("got %d hourly rows, want 2", len(rows))
	}

	// 10:00 bucket averages 10.0 and 30.0; 11:00 bucket holds 20.0.
	byHour := map[time.Time]string{}
	for _, r := range rows {
		byHour[r.Timestamp] = r.Value
	}
	if got := byHour[hour]; got != "20" {
		t.Errorf("10:00 bucket = %q, want 20", got)
	}
	if got := byHour[hour.Add(time.Hour)]; got != "20" {
		t.Errorf("11:00 bucket = %q, want 20", got)
	}
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	hour := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	f.append(t, "temp1", types.TypeFloat, "20.5", hour.Add(5*time.Minute))
	f.append(t, "temp2", types.TypeInteger, "7", hour.Add(10*time.Minute))

	ctx := context.Background()
	if _, err := f.comp.Run(ctx, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first := f.hourlyRows(t)

	if _, err := f.comp.Run(ctx, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	second := f.hourlyRows(t)

	if len(first) != len(second) {
		t.Fatalf("row count changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Name != second[i].Name ||
			first[i].Value != second[i].Value ||
			!first[i].Timestamp.Equal(second[i].Timestamp) {
			t.Errorf("row %d changed: %+v -> %+v", i, first[i], second[i])
		}
	}
}

func TestRun_SkipsNonNumeric(t *testing.T) {
	f := newFixture(t)
	hour := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	f.append(t, "status", types.TypeString, "up", hour)
	f.append(t, "enabled", types.TypeBoolean, "true", hour)
	f.append(t, "temp1", types.TypeFloat, "20.0", hour)

	report, err := f.comp.Run(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ScannedSeries != 3 {
		t.Errorf("ScannedSeries = %d, want 3", report.ScannedSeries)
	}
	if report.SkippedNonNumeric != 2 {
		t.Errorf("SkippedNonNumeric = %d, want 2", report.SkippedNonNumeric)
	}

	rows := f.hourlyRows(t)
	if len(rows) != 1 || rows[0].Name != "temp1" {
		t.Errorf("hourly rows = %+v", rows)
	}
}

func TestRun_IntegerAverageRounds(t *testing.T) {
	f := newFixture(t)
	hour := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	// avg(1, 2) = 1.5 rounds to 2; avg(-1, -2) = -1.5 rounds to -2.
	f.append(t, "pos", types.TypeInteger, "1", hour.Add(time.Minute))
	f.append(t, "pos", types.TypeInteger, "2", hour.Add(2*time.Minute))
	f.append(t, "neg", types.TypeInteger, "-1", hour.Add(time.Minute))
	f.append(t, "neg", types.TypeInteger, "-2", hour.Add(2*time.Minute))

	if _, err := f.comp.Run(context.Background(), time.Time{}, time.Time{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	byName := map[string]string{}
	for _, r := range f.hourlyRows(t) {
		byName[r.Name] = r.Value
		if r.Type != types.TypeInteger {
			t.Errorf("%s type = %s, want integer", r.Name, r.Type)
		}
	}
	if byName["pos"] != "2" {
		t.Errorf("pos = %q, want 2", byName["pos"])
	}
	if byName["neg"] != "-2" {
		t.Errorf("neg = %q, want -2", byName["neg"])
	}
}

func TestRun_DecimalExactAverage(t *testing.T) {
	f := newFixture(t)
	hour := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	f.append(t, "price", types.TypeDecimal, "0.1", hour.Add(time.Minute))
	f.append(t, "price", types.TypeDecimal, "0.2", hour.Add(2*time.Minute))

	if _, err := f.comp.Run(context.Background(), time.Time{}, time.Time{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows := f.hourlyRows(t)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Value != "0.15" {
		t.Errorf("decimal avg = %q, want 0.15", rows[0].Value)
	}
}

func TestRun_IsolatesMalformedBuckets(t *testing.T) {
	f := newFixture(t)
	hour := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	// First hour contains a row that cannot decode as float.
	f.append(t, "temp1", types.TypeFloat, "20.0", hour.Add(5*time.Minute))
	f.insertRaw(t, "temp1", types.TypeFloat, "garbage", hour.Add(10*time.Minute))
	// Second hour is clean.
	f.append(t, "temp1", types.TypeFloat, "21.0", hour.Add(65*time.Minute))
	// A separate series is unaffected.
	f.append(t, "temp2", types.TypeFloat, "5.0", hour.Add(5*time.Minute))

	report, err := f.comp.Run(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Failures) != 1 {
		t.Fatalf("Failures = %+v, want 1 entry", report.Failures)
	}
	fail := report.Failures[0]
	if fail.Name != "temp1" || !fail.Hour.Equal(hour) {
		t.Errorf("failure = %+v", fail)
	}
	if report.HoursWritten != 2 {
		t.Errorf("HoursWritten = %d, want 2", report.HoursWritten)
	}

	// The failed bucket produced no hourly row; the clean buckets did.
	for _, r := range f.hourlyRows(t) {
		if r.Name == "temp1" && r.Timestamp.Equal(hour) {
			t.Errorf("failed bucket was written: %+v", r)
		}
	}
}

func TestRun_Window(t *testing.T) {
	f := newFixture(t)
	hour := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	f.append(t, "temp1", types.TypeFloat, "10.0", hour)
	f.append(t, "temp1", types.TypeFloat, "20.0", hour.Add(3*time.Hour))

	report, err := f.comp.Run(context.Background(), hour.Add(2*time.Hour), time.Time{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.HoursWritten != 1 {
		t.Fatalf("HoursWritten = %d, want 1", report.HoursWritten)
	}

	rows := f.hourlyRows(t)
	if len(rows) != 1 || !rows[0].Timestamp.Equal(hour.Add(3*time.Hour)) {
		t.Errorf("hourly rows = %+v", rows)
	}
}

func TestRun_ConcurrentCallsQueue(t *testing.T) {
	f := newFixture(t)
	hour := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		f.append(t, "temp1", types.TypeFloat, "20.5", hour.Add(time.Duration(i)*15*time.Minute))
		f.append(t, "temp2", types.TypeFloat, "18.0", hour.Add(time.Duration(i)*15*time.Minute))
	}

	ctx := context.Background()
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.comp.Run(ctx, time.Time{}, time.Time{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	}

	stats := f.comp.Stats()
	if stats.RunsCompleted != 2 {
		t.Errorf("RunsCompleted = %d, want 2", stats.RunsCompleted)
	}

	// Overlapping runs must not duplicate (name, hour) rows.
	rows := f.hourlyRows(t)
	if len(rows) != 2 {
		t.Fatalf("got %d hourly rows, want 2", len(rows))
	}
	seen := map[string]bool{}
	for _, r := range rows {
		key := r.Name + r.Timestamp.String()
		if seen[key] {
			t.Errorf("duplicate hourly row for %s @ %v", r.Name, r.Timestamp)
		}
		seen[key] = true
	}
}

func TestRun_EmptyStore(t *testing.T) {
	f := newFixture(t)

	report, err := f.comp.Run(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ScannedSeries != 0 || report.HoursWritten != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestStats_Cumulative(t *testing.T) {
	f := newFixture(t)
	hour := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	f.append(t, "temp1", types.TypeFloat, "20.0", hour)
	f.append(t, "status", types.TypeString, "up", hour)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := f.comp.Run(ctx, time.Time{}, time.Time{}); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	stats := f.comp.Stats()
	if stats.RunsCompleted != 2 {
		t.Errorf("RunsCompleted = %d, want 2", stats.RunsCompleted)
	}
	if stats.HoursWritten != 2 {
		t.Errorf("HoursWritten = %d, want 2", stats.HoursWritten)
	}
	if stats.SeriesSkipped != 2 {
		t.Errorf("SeriesSkipped = %d, want 2", stats.SeriesSkipped)
	}
}
