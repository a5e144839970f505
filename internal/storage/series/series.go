// Package series implements the measurement table store.
//
// One implementation serves both persisted tables: the raw measurements
// table and the hourly rollup table are two Store instances parameterized
// by table name. The hourly instance (see Hourly) adds the idempotent
// upsert the compressor relies on.
package series

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/xtxerr/timebase/internal/errors"
	"github.com/xtxerr/timebase/internal/storage/aggregate"
	"github.com/xtxerr/timebase/internal/storage/codec"
	"github.com/xtxerr/timebase/internal/storage/store"
	"github.com/xtxerr/timebase/internal/storage/types"
)

// Filter restricts a range scan. Zero fields mean unbounded: an empty Name
// matches all series, zero times leave that side of the window open.
// Bounds are inclusive.
type Filter struct {
	Name string
	From time.Time
	To   time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects the time source used when Append is called with a zero
// timestamp. Tests supply deterministic clocks here.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithAggregateOptions sets the options passed to the aggregation engine.
func WithAggregateOptions(opts aggregate.Options) Option {
	return func(s *Store) { s.aggOpts = opts }
}

// Store is an append-only table of (timestamp, name, type, value) rows.
//
// Store is safe for concurrent use; every mutation runs as a single
// statement or transaction so readers never observe a half-written row.
type Store struct {
	st      *store.Store
	table   string
	now     func() time.Time
	aggOpts aggregate.Options
}

// New creates a store over the named table.
func New(st *store.Store, table string, opts ...Option) *Store {
	s := &Store{
		st:    st,
		table: table,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRaw creates the store over the raw measurements table.
func NewRaw(st *store.Store, opts ...Option) *Store {
	return New(st, store.TableMeasurements, opts...)
}

// Table returns the backing table name.
func (s *Store) Table() string {
	return s.table
}

// Append inserts a new measurement row. A zero ts uses the injected clock.
// The value must decode under the declared type; malformed input is rejected
// here rather than discovered during aggregation.
func (s *Store) Append(ctx context.Context, name string, typ types.MeasurementType, value string, ts time.Time) (types.Measurement, error) {
	if name == "" {
		return types.Measurement{}, errors.NewMissingField("name")
	}
	if !typ.Valid() {
		return types.Measurement{}, errors.Wrapf(errors.ErrInvalidType, "%q", typ)
	}
	if err := codec.Validate(typ, value); err != nil {
		return types.Measurement{}, err
	}

	if ts.IsZero() {
		ts = s.now()
	}
	ts = ts.UTC()

	m := types.Measurement{
		Name:      name,
		Type:      typ,
		Value:     value,
		Timestamp: ts,
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (name, type, value, ts) VALUES (?, ?, ?, ?) RETURNING id`,
		s.table)
	err := s.st.QueryRowContext(ctx, query, name, typ.String(), value, ts).Scan(&m.ID)
	if err != nil {
		return types.Measurement{}, fmt.Errorf("append %s: %v: %w", name, err, errors.ErrStorage)
	}

	return m, nil
}

// AppendValue encodes a typed value and appends it.
func (s *Store) AppendValue(ctx context.Context, name string, typ types.MeasurementType, v codec.Value, ts time.Time) (types.Measurement, error) {
	text, err := codec.Encode(typ, v)
	if err != nil {
		return types.Measurement{}, err
	}
	return s.Append(ctx, name, typ, text, ts)
}

// Latest returns the row with the maximum timestamp for the series.
// An empty series fails with errors.ErrNotFound.
func (s *Store) Latest(ctx context.Context, name string) (types.Measurement, error) {
	query := fmt.Sprintf(
		`SELECT id, name, type, value, ts FROM %s WHERE name = ? ORDER BY ts DESC LIMIT 1`,
		s.table)

	m, err := scanMeasurement(s.st.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return types.Measurement{}, errors.NewNotFound("series", name)
	}
	if err != nil {
		return types.Measurement{}, fmt.Errorf("latest %s: %v: %w", name, err, errors.ErrStorage)
	}
	return m, nil
}

// Range returns a lazy sequence of measurements matching the filter,
// ascending by timestamp. Each consumption of the sequence runs a fresh
// scan, so it is restartable. An empty result is an empty sequence, not an
// error.
func (s *Store) Range(ctx context.Context, f Filter) iter.Seq2[types.Measurement, error] {
	return func(yield func(types.Measurement, error) bool) {
		query, args := s.buildRangeQuery(f)

		rows, err := s.st.QueryContext(ctx, query, args...)
		if err != nil {
			yield(types.Measurement{}, fmt.Errorf("range scan: %v: %w", err, errors.ErrStorage))
			return
		}
		defer rows.Close()

		for rows.Next() {
			m, err := scanMeasurement(rows)
			if err != nil {
				yield(types.Measurement{}, fmt.Errorf("scan row: %v: %w", err, errors.ErrStorage))
				return
			}
			if !yield(m, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(types.Measurement{}, fmt.Errorf("range scan: %v: %w", err, errors.ErrStorage))
		}
	}
}

func (s *Store) buildRangeQuery(f Filter) (string, []interface{}) {
	var query strings.Builder
	fmt.Fprintf(&query, `SELECT id, name, type, value, ts FROM %s`, s.table)

	var clauses []string
	var args []interface{}

	if f.Name != "" {
		clauses = append(clauses, `name = ?`)
		args = append(args, f.Name)
	}
	if !f.From.IsZero() {
		clauses = append(clauses, `ts >= ?`)
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		clauses = append(clauses, `ts <= ?`)
		args = append(args, f.To.UTC())
	}

	if len(clauses) > 0 {
		query.WriteString(` WHERE `)
		query.WriteString(strings.Join(clauses, ` AND `))
	}
	query.WriteString(` ORDER BY ts ASC, id ASC`)

	return query.String(), args
}

// Series returns the distinct (name, type) pairs present within the window.
// A series whose rows carry more than one type resolves to one entry; the
// declared type is fixed by convention, not a hard constraint.
func (s *Store) Series(ctx context.Context, from, to time.Time) ([]types.SeriesInfo, error) {
	var query strings.Builder
	fmt.Fprintf(&query, `SELECT name, min(type) AS type FROM %s`, s.table)

	var clauses []string
	var args []interface{}
	if !from.IsZero() {
		clauses = append(clauses, `ts >= ?`)
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		clauses = append(clauses, `ts <= ?`)
		args = append(args, to.UTC())
	}
	if len(clauses) > 0 {
		query.WriteString(` WHERE `)
		query.WriteString(strings.Join(clauses, ` AND `))
	}
	query.WriteString(` GROUP BY name ORDER BY name`)

	rows, err := s.st.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list series: %v: %w", err, errors.ErrStorage)
	}
	defer rows.Close()

	var infos []types.SeriesInfo
	for rows.Next() {
		var info types.SeriesInfo
		var typ string
		if err := rows.Scan(&info.Name, &typ); err != nil {
			return nil, fmt.Errorf("scan series: %v: %w", err, errors.ErrStorage)
		}
		info.Type = types.MeasurementType(typ)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// SeriesType returns the declared type of a series, taken from any sample
// row. An empty series fails with errors.ErrNotFound.
func (s *Store) SeriesType(ctx context.Context, name string) (types.MeasurementType, error) {
	query := fmt.Sprintf(`SELECT type FROM %s WHERE name = ? LIMIT 1`, s.table)

	var typ string
	err := s.st.QueryRowContext(ctx, query, name).Scan(&typ)
	if err == sql.ErrNoRows {
		return "", errors.NewNotFound("series", name)
	}
	if err != nil {
		return "", fmt.Errorf("series type %s: %v: %w", name, err, errors.ErrStorage)
	}
	return types.MeasurementType(typ), nil
}

// Count returns the number of rows for the series, any type.
func (s *Store) Count(ctx context.Context, name string) (int64, error) {
	return aggregate.Count(s.Range(ctx, Filter{Name: name}))
}

// Summarize computes statistics for a series, optionally restricted to a
// time window. A series with no rows yields an empty result, not an error;
// a non-numeric series fails with errors.ErrUnsupportedType before any row
// is scanned.
func (s *Store) Summarize(ctx context.Context, name string, from, to time.Time) (aggregate.Result, error) {
	typ, err := s.SeriesType(ctx, name)
	if errors.IsNotFound(err) {
		return aggregate.Result{}, nil
	}
	if err != nil {
		return aggregate.Result{}, err
	}
	if !typ.IsNumeric() {
		return aggregate.Result{}, errors.Wrapf(errors.ErrUnsupportedType, "series %s has type %s", name, typ)
	}

	return aggregate.Summarize(typ, s.Range(ctx, Filter{Name: name, From: from, To: to}), s.aggOpts)
}

// Sum returns the sum of a numeric series, nil when the series is empty.
func (s *Store) Sum(ctx context.Context, name string) (*codec.Value, error) {
	r, err := s.Summarize(ctx, name, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	return r.Sum, nil
}

// Min returns the minimum of a numeric series, nil when the series is empty.
func (s *Store) Min(ctx context.Context, name string) (*codec.Value, error) {
	r, err := s.Summarize(ctx, name, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	return r.Min, nil
}

// Max returns the maximum of a numeric series, nil when the series is empty.
func (s *Store) Max(ctx context.Context, name string) (*codec.Value, error) {
	r, err := s.Summarize(ctx, name, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	return r.Max, nil
}

// Avg returns the average of a numeric series, nil when the series is empty.
func (s *Store) Avg(ctx context.Context, name string) (*codec.Value, error) {
	r, err := s.Summarize(ctx, name, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	return r.Avg, nil
}

// Values returns the decoded values of a series, newest first.
func (s *Store) Values(ctx context.Context, name string) ([]codec.Value, error) {
	ms, err := Collect(s.Range(ctx, Filter{Name: name}))
	if err != nil {
		return nil, err
	}

	values := make([]codec.Value, 0, len(ms))
	for i := len(ms) - 1; i >= 0; i-- {
		v, err := codec.Decode(ms[i].Type, ms[i].Value)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// DeleteSeries removes every row of the named series. Returns the number of
// rows deleted.
func (s *Store) DeleteSeries(ctx context.Context, names ...string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	query := fmt.Sprintf(`DELETE FROM %s WHERE name IN (%s)`, s.table, placeholders)

	args := make([]interface{}, len(names))
	for i, n := range names {
		args[i] = n
	}

	var deleted int64
	err := s.st.TransactionContext(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete series: %v: %w", err, errors.ErrStorage)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

// Collect drains a measurement sequence into a slice.
func Collect(seq iter.Seq2[types.Measurement, error]) ([]types.Measurement, error) {
	var ms []types.Measurement
	for m, err := range seq {
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMeasurement(r rowScanner) (types.Measurement, error) {
	var m types.Measurement
	var typ string
	var value sql.NullString

	if err := r.Scan(&m.ID, &m.Name, &typ, &value, &m.Timestamp); err != nil {
		return types.Measurement{}, err
	}

	m.Type = types.MeasurementType(typ)
	if value.Valid {
		m.Value = value.String
	}
	m.Timestamp = m.Timestamp.UTC()

	return m, nil
}
