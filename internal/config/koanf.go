// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/shoprank/config.yaml",
	"/etc/shoprank/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "SHOPRANK_CONFIG"

// envPrefix is the prefix for all environment overrides.
const envPrefix = "SHOPRANK_"

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8460,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Engine: EngineConfig{
			MinConfidence:      0.3,
			MinClusterSamples:  25,
			ReestimateInterval: time.Hour,
			WeekendBoost:       false,
			MinObservations:    5,
			ColdStartN:         100,
			Alpha:              0.05,
			DecayThreshold:     20,
			DefaultK:           10,
			MaxK:               100,
			RequestTimeout:     2 * time.Second,
		},
		EventLog: EventLogConfig{
			Dir:        "data/eventlog",
			InMemory:   false,
			EventTTL:   30 * 24 * time.Hour,
			GCInterval: 10 * time.Minute,
		},
		Feedback: FeedbackConfig{
			RetryMaxRetries:      5,
			RetryInitialInterval: 100 * time.Millisecond,
			RetryMaxInterval:     10 * time.Second,
			CloseTimeout:         30 * time.Second,
		},
		Storage: StorageConfig{
			Dir:              "data/models",
			SnapshotInterval: 15 * time.Minute,
			KeepVersions:     3,
			RestoreOnStart:   true,
		},
		Catalog: CatalogConfig{
			SeedFile: "",
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. SHOPRANK_* environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// SHOPRANK_SERVER_PORT -> server.port, SHOPRANK_ENGINE_MAX_K -> engine.max_k
	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ActiveConfigFile returns the config file path Load would use, or ""
// when the service runs on defaults and environment alone.
func ActiveConfigFile() string {
	return findConfigFile()
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps SHOPRANK_* variables to koanf paths.
// The first underscore separates the section; the rest stays snake_case:
// SHOPRANK_ENGINE_MIN_CONFIDENCE -> engine.min_confidence.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	section, rest, found := strings.Cut(key, "_")
	if !found {
		return ""
	}

	switch section {
	case "server", "logging", "engine", "eventlog", "feedback", "storage", "catalog", "security":
		return section + "." + rest
	default:
		// Skip unrelated environment variables
		return ""
	}
}

// sliceConfigPaths lists paths parsed as comma-separated slices when set
// from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// WatchConfigFile invokes callback when the config file changes.
// The caller is responsible for reloading and for mutex protection.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
