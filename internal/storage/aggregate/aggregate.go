// Package aggregate computes scalar statistics over a single measurement
// series: count, sum, min, max, average, and optional percentiles.
//
// Count is defined for every measurement type. The remaining statistics are
// defined only for numeric series (integer, float, decimal); requesting them
// for a string or boolean series fails with errors.ErrUnsupportedType before
// any row is scanned. Float series accumulate in float64; integer and
// decimal series accumulate exactly in decimal arithmetic so no precision is
// lost.
package aggregate

import (
	"iter"
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/shopspring/decimal"

	"github.com/xtxerr/timebase/internal/errors"
	"github.com/xtxerr/timebase/internal/storage/codec"
	"github.com/xtxerr/timebase/internal/storage/types"
)

// Options configures an Accumulator.
type Options struct {
	// Percentiles enables DDSketch percentile tracking.
	Percentiles bool

	// PercentileAccuracy is the relative accuracy (0.01 = 1% error).
	// Zero means the default of 1%.
	PercentileAccuracy float64
}

// Result holds the statistics for one series.
//
// Sum, Min, Max and Avg are nil when no rows were accumulated: an empty
// window is a defined "no data" outcome, never a division failure. For
// float series they carry float values; for integer and decimal series they
// carry exact decimal values.
type Result struct {
	Count int64

	Sum *codec.Value
	Min *codec.Value
	Max *codec.Value
	Avg *codec.Value

	// Percentiles, present only when enabled and data was seen.
	P50 *float64
	P90 *float64
	P95 *float64
	P99 *float64
}

// HasData reports whether any numeric rows were accumulated.
func (r Result) HasData() bool {
	return r.Count > 0
}

// Accumulator maintains running statistics for one numeric series.
// It is safe for concurrent use.
type Accumulator struct {
	mu sync.Mutex

	typ types.MeasurementType

	count int64

	// float path (float series)
	fsum float64
	fmin float64
	fmax float64

	// exact path (integer and decimal series)
	dsum decimal.Decimal
	dmin decimal.Decimal
	dmax decimal.Decimal

	sketch *ddsketch.DDSketch
}

// NewAccumulator creates an accumulator for a series of the declared type.
// Non-numeric types fail with errors.ErrUnsupportedType.
func NewAccumulator(typ types.MeasurementType, opts Options) (*Accumulator, error) {
	if !typ.IsNumeric() {
		return nil, errors.Wrapf(errors.ErrUnsupportedType, "series type %s", typ)
	}

	a := &Accumulator{typ: typ}

	if opts.Percentiles {
		accuracy := opts.PercentileAccuracy
		if accuracy <= 0 {
			accuracy = 0.01
		}
		sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
		if err == nil {
			a.sketch = sketch
		}
	}

	return a, nil
}

// Add folds a decoded value into the running statistics.
func (a *Accumulator) Add(v codec.Value) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.typ == types.TypeFloat {
		f := v.Float64()
		// Seed from the first value so min/max always equal a stored
		// row, infinities included.
		if a.count == 0 {
			a.fsum = f
			a.fmin = f
			a.fmax = f
		} else {
			a.fsum += f
			if f < a.fmin {
				a.fmin = f
			}
			if f > a.fmax {
				a.fmax = f
			}
		}
	} else {
		d := v.Decimal()
		if a.count == 0 {
			a.dsum = d
			a.dmin = d
			a.dmax = d
		} else {
			a.dsum = a.dsum.Add(d)
			if d.LessThan(a.dmin) {
				a.dmin = d
			}
			if d.GreaterThan(a.dmax) {
				a.dmax = d
			}
		}
	}

	a.count++

	if a.sketch != nil {
		a.sketch.Add(v.Float64())
	}
}

// AddMeasurement decodes a raw row and folds it in.
// Malformed values are surfaced, not skipped.
func (a *Accumulator) AddMeasurement(m types.Measurement) error {
	v, err := codec.Decode(a.typ, m.Value)
	if err != nil {
		return err
	}
	a.Add(v)
	return nil
}

// Count returns the number of values added.
func (a *Accumulator) Count() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// IsEmpty returns true if no values have been added.
func (a *Accumulator) IsEmpty() bool {
	return a.Count() == 0
}

// Result returns the accumulated statistics.
func (a *Accumulator) Result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := Result{Count: a.count}
	if a.count == 0 {
		return r
	}

	if a.typ == types.TypeFloat {
		sum := codec.FloatValue(a.fsum)
		min := codec.FloatValue(a.fmin)
		max := codec.FloatValue(a.fmax)
		avg := codec.FloatValue(a.fsum / float64(a.count))
		r.Sum, r.Min, r.Max, r.Avg = &sum, &min, &max, &avg
	} else {
		sum := codec.DecimalValue(a.dsum)
		min := codec.DecimalValue(a.dmin)
		max := codec.DecimalValue(a.dmax)
		avg := codec.DecimalValue(a.dsum.Div(decimal.NewFromInt(a.count)))
		r.Sum, r.Min, r.Max, r.Avg = &sum, &min, &max, &avg
	}

	if a.sketch != nil {
		p50, err50 := a.sketch.GetValueAtQuantile(0.50)
		p90, err90 := a.sketch.GetValueAtQuantile(0.90)
		p95, err95 := a.sketch.GetValueAtQuantile(0.95)
		p99, err99 := a.sketch.GetValueAtQuantile(0.99)
		if err50 == nil && err90 == nil && err95 == nil && err99 == nil {
			r.P50, r.P90, r.P95, r.P99 = &p50, &p90, &p95, &p99
		}
	}

	return r
}

// Summarize consumes a sequence of rows from a single series and returns its
// statistics. The type check happens before the sequence is consumed.
func Summarize(typ types.MeasurementType, rows iter.Seq2[types.Measurement, error], opts Options) (Result, error) {
	acc, err := NewAccumulator(typ, opts)
	if err != nil {
		return Result{}, err
	}

	for m, err := range rows {
		if err != nil {
			return Result{}, err
		}
		if err := acc.AddMeasurement(m); err != nil {
			return Result{}, err
		}
	}

	return acc.Result(), nil
}

// Count counts rows of any measurement type; no decoding is performed.
func Count(rows iter.Seq2[types.Measurement, error]) (int64, error) {
	var n int64
	for _, err := range rows {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}
