// Package config provides YAML configuration for the timebase daemon.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/timebase/internal/errors"
)

// Config represents the complete daemon configuration.
type Config struct {
	// Database configures the backing DuckDB store.
	Database DatabaseConfig `yaml:"database"`

	// Compression configures the background rollup scheduler.
	Compression CompressionConfig `yaml:"compression"`

	// Features configures optional features.
	Features FeaturesConfig `yaml:"features"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig configures the backing database.
type DatabaseConfig struct {
	// Path is the database file. Empty means in-memory (data is lost on
	// shutdown; useful for tests and demos).
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime is the maximum lifetime of a connection.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CompressionConfig configures the background rollup scheduler.
type CompressionConfig struct {
	// Enabled turns the periodic compressor on.
	Enabled bool `yaml:"enabled"`

	// Interval is how often a compression run starts.
	Interval time.Duration `yaml:"interval"`

	// Window is how far back each run scans. Zero means unbounded
	// (the whole raw table, relying on the idempotent upsert).
	Window time.Duration `yaml:"window"`
}

// FeaturesConfig configures optional features.
type FeaturesConfig struct {
	// Percentile configures DDSketch percentile calculation.
	Percentile PercentileConfig `yaml:"percentile"`
}

// PercentileConfig configures DDSketch percentile calculation.
type PercentileConfig struct {
	// Enabled enables percentile calculation in aggregate results.
	Enabled bool `yaml:"enabled"`

	// Accuracy is the relative accuracy (0.01 = 1% error).
	Accuracy float64 `yaml:"accuracy"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON switches output to JSON format.
	JSON bool `yaml:"json"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "timebase.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Compression: CompressionConfig{
			Enabled:  true,
			Interval: time.Hour,
			Window:   48 * time.Hour,
		},
		Features: FeaturesConfig{
			Percentile: PercentileConfig{
				Enabled:  false,
				Accuracy: 0.01,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, filling unset fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Database.MaxOpenConns < 0 {
		return errors.NewValidation("database.max_open_conns", "must not be negative")
	}
	if c.Database.MaxIdleConns < 0 {
		return errors.NewValidation("database.max_idle_conns", "must not be negative")
	}
	if c.Compression.Enabled && c.Compression.Interval <= 0 {
		return errors.NewValidation("compression.interval", "must be positive when compression is enabled")
	}
	if c.Compression.Window < 0 {
		return errors.NewValidation("compression.window", "must not be negative")
	}
	if c.Features.Percentile.Enabled {
		a := c.Features.Percentile.Accuracy
		if a <= 0 || a >= 1 {
			return errors.NewValidation("features.percentile.accuracy", "must be in (0, 1)")
		}
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel converts a config level string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.NewValidation("logging.level", fmt.Sprintf("unknown level %q", s))
	}
}
