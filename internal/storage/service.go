package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/timebase/internal/config"
	"github.com/xtxerr/timebase/internal/logging"
	"github.com/xtxerr/timebase/internal/storage/aggregate"
	"github.com/xtxerr/timebase/internal/storage/compress"
	"github.com/xtxerr/timebase/internal/storage/series"
	"github.com/xtxerr/timebase/internal/storage/store"
	"github.com/xtxerr/timebase/internal/storage/types"
)

// Service is the main storage service that orchestrates all components.
type Service struct {
	config *config.Config

	st         *store.Store
	raw        *series.Store
	hourly     *series.Hourly
	compressor *compress.Compressor

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	startTime time.Time
}

// New creates a new storage service.
func New(cfg *config.Config) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := store.New(store.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	aggOpts := aggregate.Options{
		Percentiles:        cfg.Features.Percentile.Enabled,
		PercentileAccuracy: cfg.Features.Percentile.Accuracy,
	}

	raw := series.NewRaw(st, series.WithAggregateOptions(aggOpts))
	hourly := series.NewHourly(st, series.WithAggregateOptions(aggOpts))
	compressor := compress.New(raw, hourly, compress.WithAggregateOptions(aggOpts))

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		config:     cfg,
		st:         st,
		raw:        raw,
		hourly:     hourly,
		compressor: compressor,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start starts the background workers.
func (s *Service) Start() error {
	if s.running.Load() {
		return fmt.Errorf("service already running")
	}

	s.running.Store(true)
	s.startTime = time.Now()

	if s.config.Compression.Enabled {
		s.wg.Add(1)
		go s.compressionWorker()
	}

	return nil
}

// Stop stops the background workers and closes the store. The context is
// canceled even if Start was never called.
func (s *Service) Stop() error {
	s.cancel()

	if s.running.Load() {
		s.running.Store(false)
		s.wg.Wait()
	}

	return s.st.Close()
}

// Raw returns the raw measurements store.
func (s *Service) Raw() *series.Store {
	return s.raw
}

// Hourly returns the hourly rollup store.
func (s *Service) Hourly() *series.Hourly {
	return s.hourly
}

// Store returns the underlying database plumbing.
func (s *Service) Store() *store.Store {
	return s.st
}

// Config returns the current configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// Append appends a measurement to the raw store.
func (s *Service) Append(ctx context.Context, name string, typ types.MeasurementType, value string, ts time.Time) (types.Measurement, error) {
	return s.raw.Append(ctx, name, typ, value, ts)
}

// Latest returns the most recent raw measurement for a series.
func (s *Service) Latest(ctx context.Context, name string) (types.Measurement, error) {
	return s.raw.Latest(ctx, name)
}

// Summarize computes statistics over a raw series.
func (s *Service) Summarize(ctx context.Context, name string, from, to time.Time) (aggregate.Result, error) {
	return s.raw.Summarize(ctx, name, from, to)
}

// Compress runs the hourly rollup over [from, to] on demand.
func (s *Service) Compress(ctx context.Context, from, to time.Time) (compress.Report, error) {
	return s.compressor.Run(ctx, from, to)
}

// Health checks database connectivity.
func (s *Service) Health(ctx context.Context) error {
	return s.st.Health(ctx)
}

// IsRunning returns whether the service is running.
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

// compressionWorker periodically rolls raw data up into hourly averages.
func (s *Service) compressionWorker() {
	defer s.wg.Done()

	log := logging.Component("storage")

	ticker := time.NewTicker(s.config.Compression.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			var from time.Time
			if w := s.config.Compression.Window; w > 0 {
				from = time.Now().UTC().Add(-w)
			}

			report, err := s.compressor.Run(s.ctx, from, time.Time{})
			if err != nil {
				log.Error("scheduled compression failed", "error", err)
				continue
			}
			log.Info("scheduled compression complete",
				"hours_written", report.HoursWritten,
				"failed_buckets", len(report.Failures))
		}
	}
}

// ServiceStats holds combined statistics.
type ServiceStats struct {
	Running    bool
	Uptime     time.Duration
	Compressor compress.CompressorStats
}

// Stats returns combined statistics.
func (s *Service) Stats() ServiceStats {
	var uptime time.Duration
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime)
	}

	return ServiceStats{
		Running:    s.running.Load(),
		Uptime:     uptime,
		Compressor: s.compressor.Stats(),
	}
}
