package seed

import (
	"context"
	"testing"
	"time"

	"github.com/xtxerr/timebase/internal/storage/series"
	"github.com/xtxerr/timebase/internal/storage/store"
	"github.com/xtxerr/timebase/internal/storage/types"
)

func newTestSeries(t *testing.T) *series.Store {
	t.Helper()

	cfg := store.DefaultConfig()
	cfg.Path = "" // in-memory
	st, err := store.New(cfg)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return series.NewRaw(st)
}

func TestRun_RowCountAndCadence(t *testing.T) {
	s := newTestSeries(t)
	ctx := context.Background()

	cfg := Config{
		Sensors:  []Sensor{{Name: "temp1", BaseTemp: 20.0}},
		Days:     1,
		Interval: time.Hour,
		Noise:    1.0,
		Seed:     1,
	}
	end := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	n, err := Run(ctx, s, cfg, end)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Inclusive of both endpoints: 24 intervals plus the final sample.
	if n != 25 {
		t.Errorf("inserted %d rows, want 25", n)
	}

	ms, err := series.Collect(s.Range(ctx, series.Filter{Name: "temp1"}))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(ms) != 25 {
		t.Fatalf("got %d rows, want 25", len(ms))
	}
	if !ms[len(ms)-1].Timestamp.Equal(end) {
		t.Errorf("last sample at %v, want %v", ms[len(ms)-1].Timestamp, end)
	}
	for i := 1; i < len(ms); i++ {
		if got := ms[i].Timestamp.Sub(ms[i-1].Timestamp); got != time.Hour {
			t.Errorf("gap %d = %v, want 1h", i, got)
		}
	}
	for _, m := range ms {
		if m.Type != types.TypeFloat {
			t.Errorf("type = %s, want float", m.Type)
		}
	}
}

func TestRun_Reproducible(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		Sensors:  []Sensor{{Name: "temp1", BaseTemp: 20.0}},
		Days:     1,
		Interval: time.Hour,
		Noise:    2.0,
		Seed:     42,
	}
	end := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	values := func() []string {
		s := newTestSeries(t)
		if _, err := Run(ctx, s, cfg, end); err != nil {
			t.Fatalf("Run: %v", err)
		}
		ms, err := series.Collect(s.Range(ctx, series.Filter{}))
		if err != nil {
			t.Fatalf("Range: %v", err)
		}
		out := make([]string, len(ms))
		for i, m := range ms {
			out[i] = m.Value
		}
		return out
	}

	a, b := values(), values()
	if len(a) != len(b) {
		t.Fatalf("row counts differ: %d != %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d differs: %q != %q", i, a[i], b[i])
		}
	}
}

func TestRun_Defaults(t *testing.T) {
	s := newTestSeries(t)
	ctx := context.Background()

	// Zero-value fields fall back, sensors included.
	cfg := Config{Days: 1, Interval: 6 * time.Hour}
	end := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	n, err := Run(ctx, s, cfg, end)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 5 samples per sensor, 3 default sensors.
	if n != 15 {
		t.Errorf("inserted %d rows, want 15", n)
	}

	infos, err := s.Series(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if len(infos) != 3 {
		t.Errorf("got %d series, want 3", len(infos))
	}
}
