// Package config loads and validates the guardian's runtime configuration
// from the environment. Every component receives configuration by parameter —
// there is no process-wide mutable state, so tests can construct fake
// configurations freely.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Config is the root configuration object, constructed once at startup and
// passed down explicitly. Credentials are opaque bearer tokens and are never
// logged.
type Config struct {
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
	Port     string `env:"PORT,      default=8080"`

	Patrol PatrolConfig
	Store  StoreConfig
	Sink   SinkConfig
	Redis  RedisConfig
	Mongo  MongoConfig
}

// PatrolConfig holds the anomaly thresholds and scheduling knobs.
type PatrolConfig struct {
	WindowHours           int           `env:"PATROL_WINDOW_HOURS,              default=24"    validate:"gt=0"`
	MinActivity           int           `env:"PATROL_MIN_ACTIVITY,              default=5"     validate:"gte=1"`
	MaxStationaryRadiusKm float64       `env:"PATROL_MAX_STATIONARY_RADIUS_KM,  default=0.05"  validate:"gt=0"`
	MinSuspiciousRevenue  float64       `env:"PATROL_MIN_SUSPICIOUS_REVENUE,    default=50000" validate:"gte=0"`
	Workers               int           `env:"PATROL_WORKERS,                   default=4"     validate:"gte=1"`
	Interval              time.Duration `env:"PATROL_INTERVAL,                  default=1h"    validate:"gt=0"`
}

// Window returns the trailing fetch window as a duration.
func (p PatrolConfig) Window() time.Duration {
	return time.Duration(p.WindowHours) * time.Hour
}

// StoreConfig points at the external transaction store.
type StoreConfig struct {
	BaseURL    string        `env:"STORE_BASE_URL"   validate:"required,url"`
	Credential string        `env:"STORE_API_KEY"    validate:"required"`
	Timeout    time.Duration `env:"STORE_TIMEOUT,    default=10s"`
	PageSize   int           `env:"STORE_PAGE_SIZE,  default=1000" validate:"gte=1"`
}

// SinkConfig points at the external alert sink. When BaseURL or Credential is
// empty the store's values are reused — the common deployment hosts both
// behind the same endpoint.
type SinkConfig struct {
	BaseURL    string        `env:"SINK_BASE_URL"`
	Credential string        `env:"SINK_API_KEY"`
	Timeout    time.Duration `env:"SINK_TIMEOUT, default=5s"`
}

// RedisConfig enables the cross-cycle alert dedup ledger when Addr is set.
type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB, default=0"`
}

// MongoConfig enables the local alert archive when URI is set.
type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DB, default=fleet_guardian"`
}

// Load reads configuration from the environment and validates it. A missing
// required credential or an out-of-range threshold is fatal: the cycle never
// starts.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Sink.BaseURL == "" {
		c.Sink.BaseURL = c.Store.BaseURL
	}
	if c.Sink.Credential == "" {
		c.Sink.Credential = c.Store.Credential
	}

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: invalid configuration: %w", err)
	}
	return nil
}
