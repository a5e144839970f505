package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/xtxerr/timebase/internal/errors"
	"github.com/xtxerr/timebase/internal/storage"
	"github.com/xtxerr/timebase/internal/storage/codec"
	"github.com/xtxerr/timebase/internal/storage/export"
	"github.com/xtxerr/timebase/internal/storage/seed"
	"github.com/xtxerr/timebase/internal/storage/series"
	"github.com/xtxerr/timebase/internal/storage/types"
)

const timeDisplay = "2006-01-02 15:04:05"

// shell dispatches one command line at a time against the storage service.
type shell struct {
	svc *storage.Service
	out io.Writer
}

func (s *shell) execute(line string) {
	args := strings.Fields(strings.TrimSpace(line))
	if len(args) == 0 {
		return
	}

	ctx := context.Background()
	var err error

	switch args[0] {
	case "help":
		s.help()
	case "series":
		err = s.series(ctx)
	case "append":
		err = s.append(ctx, args[1:])
	case "latest":
		err = s.latest(ctx, args[1:])
	case "range":
		err = s.rangeCmd(ctx, s.svc.Raw(), args[1:])
	case "hourly":
		err = s.rangeCmd(ctx, s.svc.Hourly().Store, args[1:])
	case "stats":
		err = s.stats(ctx, args[1:])
	case "count":
		err = s.count(ctx, args[1:])
	case "values":
		err = s.values(ctx, args[1:])
	case "compress":
		err = s.compress(ctx, args[1:])
	case "delete":
		err = s.delete(ctx, args[1:])
	case "seed":
		err = s.seed(ctx, args[1:])
	case "export":
		err = s.export(ctx, args[1:])
	case "import":
		err = s.importCmd(ctx, args[1:])
	case "sql":
		err = s.sql(ctx, strings.TrimSpace(strings.TrimPrefix(line, "sql")))
	case "exit", "quit":
		// handled by the exit checker; ignored on piped input
	default:
		err = fmt.Errorf("unknown command %q (try 'help')", args[0])
	}

	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
}

func (s *shell) help() {
	for _, c := range commands {
		fmt.Fprintf(s.out, "  %-10s %s\n", c.Text, c.Description)
	}
}

func (s *shell) series(ctx context.Context) error {
	infos, err := s.svc.Raw().Series(ctx, time.Time{}, time.Time{})
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(s.out, "no series")
		return nil
	}

	table := tablewriter.NewWriter(s.out)
	table.SetHeader([]string{"Name", "Type", "Rows", "Latest"})
	for _, info := range infos {
		n, err := s.svc.Raw().Count(ctx, info.Name)
		if err != nil {
			return err
		}
		m, err := s.svc.Raw().Latest(ctx, info.Name)
		if err != nil {
			return err
		}
		table.Append([]string{
			info.Name,
			info.Type.String(),
			strconv.FormatInt(n, 10),
			m.Timestamp.Format(timeDisplay),
		})
	}
	table.Render()
	return nil
}

func (s *shell) append(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: append <name> <type> <value> [ts]")
	}

	typ, err := types.ParseMeasurementType(args[1])
	if err != nil {
		return err
	}

	var ts time.Time
	if len(args) > 3 {
		ts, err = parseTime(args[3])
		if err != nil {
			return err
		}
	}

	m, err := s.svc.Append(ctx, args[0], typ, args[2], ts)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "appended %s=%s at %s\n", m.Name, m.Value, m.Timestamp.Format(timeDisplay))
	return nil
}

func (s *shell) latest(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: latest <name>")
	}

	m, err := s.svc.Latest(ctx, args[0])
	if errors.IsNotFound(err) {
		fmt.Fprintf(s.out, "no data for %s\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s %s=%s (%s)\n", m.Timestamp.Format(timeDisplay), m.Name, m.Value, m.Type)
	return nil
}

func (s *shell) rangeCmd(ctx context.Context, st *series.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: range <name|*> [from] [to]")
	}

	f := series.Filter{}
	if args[0] != "*" {
		f.Name = args[0]
	}
	var err error
	if len(args) > 1 {
		if f.From, err = parseTime(args[1]); err != nil {
			return err
		}
	}
	if len(args) > 2 {
		if f.To, err = parseTime(args[2]); err != nil {
			return err
		}
	}

	table := tablewriter.NewWriter(s.out)
	table.SetHeader([]string{"Timestamp", "Name", "Type", "Value"})

	var n int
	for m, err := range st.Range(ctx, f) {
		if err != nil {
			return err
		}
		table.Append([]string{
			m.Timestamp.Format(timeDisplay),
			m.Name,
			m.Type.String(),
			m.Value,
		})
		n++
	}

	if n == 0 {
		fmt.Fprintln(s.out, "no rows")
		return nil
	}
	table.Render()
	fmt.Fprintf(s.out, "%d rows\n", n)
	return nil
}

func (s *shell) stats(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: stats <name> [from] [to]")
	}

	var from, to time.Time
	var err error
	if len(args) > 1 {
		if from, err = parseTime(args[1]); err != nil {
			return err
		}
	}
	if len(args) > 2 {
		if to, err = parseTime(args[2]); err != nil {
			return err
		}
	}

	r, err := s.svc.Summarize(ctx, args[0], from, to)
	if err != nil {
		return err
	}
	if !r.HasData() {
		fmt.Fprintf(s.out, "no data for %s\n", args[0])
		return nil
	}

	table := tablewriter.NewWriter(s.out)
	table.SetHeader([]string{"Count", "Sum", "Min", "Max", "Avg"})
	table.Append([]string{
		strconv.FormatInt(r.Count, 10),
		formatValue(r.Sum),
		formatValue(r.Min),
		formatValue(r.Max),
		formatValue(r.Avg),
	})
	table.Render()

	if r.P50 != nil {
		fmt.Fprintf(s.out, "p50=%.4g p90=%.4g p95=%.4g p99=%.4g\n", *r.P50, *r.P90, *r.P95, *r.P99)
	}
	return nil
}

func (s *shell) count(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: count <name>")
	}
	n, err := s.svc.Raw().Count(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%d\n", n)
	return nil
}

func (s *shell) values(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: values <name>")
	}
	vs, err := s.svc.Raw().Values(ctx, args[0])
	if err != nil {
		return err
	}
	for _, v := range vs {
		fmt.Fprintln(s.out, formatValue(&v))
	}
	return nil
}

func (s *shell) compress(ctx context.Context, args []string) error {
	var from, to time.Time
	var err error
	if len(args) > 0 {
		if from, err = parseTime(args[0]); err != nil {
			return err
		}
	}
	if len(args) > 1 {
		if to, err = parseTime(args[1]); err != nil {
			return err
		}
	}

	report, err := s.svc.Compress(ctx, from, to)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "series=%d hours_written=%d skipped_non_numeric=%d failed=%d\n",
		report.ScannedSeries, report.HoursWritten, report.SkippedNonNumeric, len(report.Failures))
	for _, f := range report.Failures {
		fmt.Fprintf(s.out, "  failed %s @ %s: %v\n", f.Name, f.Hour.Format(timeDisplay), f.Err)
	}
	return nil
}

func (s *shell) delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: delete <name>...")
	}
	n, err := s.svc.Raw().DeleteSeries(ctx, args...)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "deleted %d rows\n", n)
	return nil
}

func (s *shell) seed(ctx context.Context, args []string) error {
	cfg := seed.DefaultConfig()
	if len(args) > 0 {
		days, err := strconv.Atoi(args[0])
		if err != nil || days <= 0 {
			return fmt.Errorf("usage: seed [days]")
		}
		cfg.Days = days
	}

	n, err := seed.Run(ctx, s.svc.Raw(), cfg, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "seeded %d rows\n", n)
	return nil
}

func (s *shell) export(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: export parquet|csv <path> [name]")
	}

	f := series.Filter{}
	if len(args) > 2 {
		f.Name = args[2]
	}

	var n int64
	var err error
	switch args[0] {
	case "parquet":
		n, err = export.WriteParquet(ctx, s.svc.Raw(), f, args[1], export.DefaultOptions())
	case "csv":
		n, err = export.WriteCSV(ctx, s.svc.Raw(), f, args[1])
	default:
		return fmt.Errorf("unknown format %q", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "exported %d rows to %s\n", n, args[1])
	return nil
}

func (s *shell) importCmd(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: import parquet|csv <path>")
	}

	var n int64
	var err error
	switch args[0] {
	case "parquet":
		n, err = export.ReadParquet(ctx, s.svc.Raw(), args[1])
	case "csv":
		n, err = export.ReadCSV(ctx, s.svc.Raw(), args[1])
	default:
		return fmt.Errorf("unknown format %q", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "imported %d rows\n", n)
	return nil
}

func (s *shell) sql(ctx context.Context, query string) error {
	if query == "" {
		return fmt.Errorf("usage: sql <query>")
	}

	rows, err := s.svc.Store().QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(s.out)
	table.SetHeader(columns)

	var n int
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}

		record := make([]string, len(columns))
		for i, v := range values {
			record[i] = fmt.Sprintf("%v", v)
		}
		table.Append(record)
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	table.Render()
	fmt.Fprintf(s.out, "%d rows\n", n)
	return nil
}

// formatValue renders a decoded value for display.
func formatValue(v *codec.Value) string {
	if v == nil {
		return "-"
	}
	text, err := codec.Encode(v.Type, *v)
	if err != nil {
		return "?"
	}
	return text
}

// parseTime accepts a few human-friendly timestamp formats; all are read
// as UTC unless the text carries an offset.
func parseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
