// timebased is the timebase storage daemon: it owns the database and runs
// the periodic hourly compression scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/timebase/internal/config"
	"github.com/xtxerr/timebase/internal/logging"
	"github.com/xtxerr/timebase/internal/storage"
	"github.com/xtxerr/timebase/internal/storage/seed"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "timebase.yaml", "config file path")
	dbPath := flag.String("db", "", "database path (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	logJSON := flag.Bool("log-json", false, "log in JSON format")
	interval := flag.Duration("compress-interval", 0, "compression interval (overrides config)")
	seedDemo := flag.Bool("seed", false, "seed demo temperature data on startup")
	compressOnce := flag.Bool("compress-once", false, "run one compression over all data and exit")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = config.DefaultConfig()
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logJSON {
		cfg.Logging.JSON = true
	}
	if *interval > 0 {
		cfg.Compression.Interval = *interval
	}

	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logging.Init(level, cfg.Logging.JSON)

	log := logging.Component("timebased")
	log.Info("starting", "version", Version, "db", cfg.Database.Path)

	svc, err := storage.New(cfg)
	if err != nil {
		log.Error("open storage", "error", err)
		os.Exit(1)
	}

	if *compressOnce {
		runOnce(svc, log)
		return
	}

	if err := svc.Start(); err != nil {
		log.Error("start service", "error", err)
		svc.Stop()
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(context.Background())

	if *seedDemo {
		g.Go(func() error {
			n, err := seed.Run(ctx, svc.Raw(), seed.DefaultConfig(), time.Now())
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			log.Info("demo data ready", "rows", n)
			return nil
		})
	}

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			log.Info("shutting down", "signal", sig.String())
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error("runtime error", "error", err)
	}

	if err := svc.Stop(); err != nil {
		log.Error("stop service", "error", err)
		os.Exit(1)
	}
	log.Info("stopped")
}

// runOnce compresses the whole raw table and reports the result.
func runOnce(svc *storage.Service, log *slog.Logger) {
	defer svc.Stop()

	report, err := svc.Compress(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		log.Error("compression failed", "error", err)
		os.Exit(1)
	}

	log.Info("compression complete",
		"series", report.ScannedSeries,
		"hours_written", report.HoursWritten,
		"skipped_non_numeric", report.SkippedNonNumeric,
		"failed_buckets", len(report.Failures))
	for _, f := range report.Failures {
		log.Warn("failed bucket", "series", f.Name, "hour", f.Hour, "error", f.Err)
	}
}
