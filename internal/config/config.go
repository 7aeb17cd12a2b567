// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

// Package config provides layered application configuration:
// struct defaults, an optional YAML file, then environment overrides.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root application configuration.
type Config struct {
	// Server holds HTTP server settings.
	Server ServerConfig `json:"server" koanf:"server"`

	// Logging holds log output settings.
	Logging LoggingConfig `json:"logging" koanf:"logging"`

	// Engine holds recommendation engine tunables.
	Engine EngineConfig `json:"engine" koanf:"engine"`

	// EventLog holds feedback event log settings.
	EventLog EventLogConfig `json:"eventlog" koanf:"eventlog"`

	// Feedback holds feedback pipeline settings.
	Feedback FeedbackConfig `json:"feedback" koanf:"feedback"`

	// Storage holds model snapshot settings.
	Storage StorageConfig `json:"storage" koanf:"storage"`

	// Catalog holds product catalog settings.
	Catalog CatalogConfig `json:"catalog" koanf:"catalog"`

	// Security holds rate limiting and CORS settings.
	Security SecurityConfig `json:"security" koanf:"security"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address.
	Host string `json:"host" koanf:"host"`

	// Port is the listen port.
	Port int `json:"port" koanf:"port" validate:"min=1,max=65535"`

	// ReadTimeout bounds request reads.
	ReadTimeout time.Duration `json:"read_timeout" koanf:"read_timeout"`

	// WriteTimeout bounds response writes.
	WriteTimeout time.Duration `json:"write_timeout" koanf:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" koanf:"shutdown_timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is the minimum log level (trace..panic).
	Level string `json:"level" koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`

	// Format is json or console.
	Format string `json:"format" koanf:"format" validate:"oneof=json console"`

	// Caller includes file:line in log output.
	Caller bool `json:"caller" koanf:"caller"`
}

// EngineConfig holds the engine tunables surfaced in app configuration.
// The full engine configuration is assembled in cmd/server from these
// values plus the engine's own defaults.
type EngineConfig struct {
	// MinConfidence is the cluster posterior floor (0 disables).
	MinConfidence float64 `json:"min_confidence" koanf:"min_confidence" validate:"gte=0,lt=1"`

	// MinClusterSamples gates batch re-estimation per cluster.
	MinClusterSamples int64 `json:"min_cluster_samples" koanf:"min_cluster_samples" validate:"min=2"`

	// ReestimateInterval is the background re-estimation period.
	ReestimateInterval time.Duration `json:"reestimate_interval" koanf:"reestimate_interval"`

	// WeekendBoost enables the weekend conversion multiplier.
	WeekendBoost bool `json:"weekend_boost" koanf:"weekend_boost"`

	// MinObservations gates the category transition bias.
	MinObservations int `json:"min_observations" koanf:"min_observations" validate:"min=0"`

	// ColdStartN is the sales count saturating the cold start prior.
	ColdStartN int `json:"cold_start_n" koanf:"cold_start_n" validate:"min=1"`

	// Alpha is the funnel smoothing rate.
	Alpha float64 `json:"alpha" koanf:"alpha" validate:"gt=0,lt=1"`

	// DecayThreshold is the impression streak before action rate decay.
	DecayThreshold int `json:"decay_threshold" koanf:"decay_threshold" validate:"min=0"`

	// DefaultK is the recommendation count when unspecified.
	DefaultK int `json:"default_k" koanf:"default_k" validate:"min=1"`

	// MaxK caps the per-request recommendation count.
	MaxK int `json:"max_k" koanf:"max_k" validate:"min=1"`

	// RequestTimeout bounds a single recommendation request.
	RequestTimeout time.Duration `json:"request_timeout" koanf:"request_timeout"`
}

// EventLogConfig holds feedback event log settings.
type EventLogConfig struct {
	// Dir is the BadgerDB directory.
	Dir string `json:"dir" koanf:"dir"`

	// InMemory disables disk persistence.
	InMemory bool `json:"in_memory" koanf:"in_memory"`

	// EventTTL is raw event retention.
	EventTTL time.Duration `json:"event_ttl" koanf:"event_ttl"`

	// GCInterval is how often value log garbage collection runs.
	GCInterval time.Duration `json:"gc_interval" koanf:"gc_interval"`
}

// FeedbackConfig holds feedback pipeline settings.
type FeedbackConfig struct {
	// RetryMaxRetries bounds delivery retries to the learner.
	RetryMaxRetries int `json:"retry_max_retries" koanf:"retry_max_retries" validate:"min=0"`

	// RetryInitialInterval is the first retry backoff.
	RetryInitialInterval time.Duration `json:"retry_initial_interval" koanf:"retry_initial_interval"`

	// RetryMaxInterval caps the retry backoff.
	RetryMaxInterval time.Duration `json:"retry_max_interval" koanf:"retry_max_interval"`

	// CloseTimeout bounds router shutdown.
	CloseTimeout time.Duration `json:"close_timeout" koanf:"close_timeout"`
}

// StorageConfig holds model snapshot settings.
type StorageConfig struct {
	// Dir is the snapshot directory.
	Dir string `json:"dir" koanf:"dir"`

	// SnapshotInterval is the periodic snapshot period (0 disables).
	SnapshotInterval time.Duration `json:"snapshot_interval" koanf:"snapshot_interval"`

	// KeepVersions is how many snapshot versions to retain.
	KeepVersions int `json:"keep_versions" koanf:"keep_versions" validate:"min=1"`

	// RestoreOnStart loads the latest snapshot at startup.
	RestoreOnStart bool `json:"restore_on_start" koanf:"restore_on_start"`
}

// CatalogConfig holds product catalog settings.
type CatalogConfig struct {
	// SeedFile is an optional JSON file of products loaded at startup.
	SeedFile string `json:"seed_file" koanf:"seed_file"`
}

// SecurityConfig holds rate limiting and CORS settings.
type SecurityConfig struct {
	// RateLimitReqs is the allowed requests per window per IP.
	RateLimitReqs int `json:"rate_limit_reqs" koanf:"rate_limit_reqs" validate:"min=1"`

	// RateLimitWindow is the rate limit window.
	RateLimitWindow time.Duration `json:"rate_limit_window" koanf:"rate_limit_window"`

	// RateLimitDisabled turns rate limiting off.
	RateLimitDisabled bool `json:"rate_limit_disabled" koanf:"rate_limit_disabled"`

	// CORSOrigins lists allowed CORS origins.
	CORSOrigins []string `json:"cors_origins" koanf:"cors_origins"`
}

// validate is the shared validator instance.
var validate = validator.New()

// Validate checks the configuration, including cross-field rules the
// struct tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Engine.MaxK < c.Engine.DefaultK {
		return fmt.Errorf("engine.max_k (%d) must be >= engine.default_k (%d)", c.Engine.MaxK, c.Engine.DefaultK)
	}
	if c.Engine.ReestimateInterval <= 0 {
		return fmt.Errorf("engine.reestimate_interval must be positive: %s", c.Engine.ReestimateInterval)
	}
	if c.Engine.RequestTimeout <= 0 {
		return fmt.Errorf("engine.request_timeout must be positive: %s", c.Engine.RequestTimeout)
	}
	if !c.EventLog.InMemory && c.EventLog.Dir == "" {
		return fmt.Errorf("eventlog.dir is required when eventlog.in_memory is false")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	return nil
}
