// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_Validates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
	if cfg.Server.Port != 8460 {
		t.Errorf("Port = %d, want 8460", cfg.Server.Port)
	}
}

func TestValidate_StructTags(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"confidence out of range", func(c *Config) { c.Engine.MinConfidence = 1.5 }},
		{"cluster samples too low", func(c *Config) { c.Engine.MinClusterSamples = 1 }},
		{"alpha zero", func(c *Config) { c.Engine.Alpha = 0 }},
		{"default k zero", func(c *Config) { c.Engine.DefaultK = 0 }},
		{"keep versions zero", func(c *Config) { c.Storage.KeepVersions = 0 }},
		{"rate limit zero", func(c *Config) { c.Security.RateLimitReqs = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil error, want failure")
			}
		})
	}
}

func TestValidate_CrossFieldRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"max_k below default_k", func(c *Config) { c.Engine.MaxK = 5; c.Engine.DefaultK = 10 }},
		{"reestimate interval zero", func(c *Config) { c.Engine.ReestimateInterval = 0 }},
		{"request timeout zero", func(c *Config) { c.Engine.RequestTimeout = 0 }},
		{"eventlog dir required on disk", func(c *Config) { c.EventLog.Dir = ""; c.EventLog.InMemory = false }},
		{"storage dir required", func(c *Config) { c.Storage.Dir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil error, want failure")
			}
		})
	}
}

func TestValidate_InMemoryEventLogNeedsNoDir(t *testing.T) {
	cfg := Default()
	cfg.EventLog.Dir = ""
	cfg.EventLog.InMemory = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil for in-memory event log", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SHOPRANK_SERVER_PORT", "server.port"},
		{"SHOPRANK_ENGINE_MIN_CONFIDENCE", "engine.min_confidence"},
		{"SHOPRANK_EVENTLOG_IN_MEMORY", "eventlog.in_memory"},
		{"SHOPRANK_SECURITY_CORS_ORIGINS", "security.cors_origins"},
		{"SHOPRANK_CATALOG_SEED_FILE", "catalog.seed_file"},
		{"SHOPRANK_UNKNOWN_THING", ""},
		{"SHOPRANK_SERVER", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestActiveConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	if got := ActiveConfigFile(); got != path {
		t.Errorf("ActiveConfigFile() = %q, want %q", got, path)
	}

	// A missing override falls through to the default search paths,
	// none of which exist in the test working directory.
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))
	if got := ActiveConfigFile(); got != "" {
		t.Errorf("ActiveConfigFile() = %q, want empty", got)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	payload := `
server:
  port: 9000
engine:
  default_k: 20
  max_k: 50
`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SHOPRANK_SERVER_PORT", "9100")
	t.Setenv("SHOPRANK_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Engine.DefaultK != 20 || cfg.Engine.MaxK != 50 {
		t.Errorf("K limits = %d/%d, want file values 20/50", cfg.Engine.DefaultK, cfg.Engine.MaxK)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched fields keep defaults.
	if cfg.Storage.SnapshotInterval != 15*time.Minute {
		t.Errorf("SnapshotInterval = %s, want default 15m", cfg.Storage.SnapshotInterval)
	}
}

func TestLoad_CORSOriginsFromEnv(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("SHOPRANK_SECURITY_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Security.CORSOrigins) != 2 ||
		cfg.Security.CORSOrigins[0] != "https://a.example.com" ||
		cfg.Security.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins = %v, want two trimmed origins", cfg.Security.CORSOrigins)
	}
}

func TestLoad_InvalidEnvValueFailsValidation(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("SHOPRANK_SERVER_PORT", "70000")

	if _, err := Load(); err == nil {
		t.Error("Load() = nil error for out-of-range port")
	}
}
