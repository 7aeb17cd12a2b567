// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import (
	"fmt"
	"time"
)

// Config holds the full engine configuration.
type Config struct {
	// Cluster holds classification tunables.
	Cluster ClusterConfig `json:"cluster" koanf:"cluster"`

	// Funnel holds conversion model tunables.
	Funnel FunnelConfig `json:"funnel" koanf:"funnel"`

	// Transition holds category Markov model tunables.
	Transition TransitionConfig `json:"transition" koanf:"transition"`

	// Ranker holds expected-value ranking tunables.
	Ranker RankerConfig `json:"ranker" koanf:"ranker"`

	// Learner holds online learning tunables.
	Learner LearnerConfig `json:"learner" koanf:"learner"`

	// Limits holds request-level limits and timeouts.
	Limits LimitsConfig `json:"limits" koanf:"limits"`
}

// ClusterConfig holds classification tunables.
type ClusterConfig struct {
	// MinConfidence is the posterior floor below which an assignment
	// degrades to UNKNOWN. Zero disables the floor.
	MinConfidence float64 `json:"min_confidence" koanf:"min_confidence"`

	// MinClusterSamples is the member count a cluster needs before batch
	// re-estimation replaces its seed Gaussians.
	MinClusterSamples int64 `json:"min_cluster_samples" koanf:"min_cluster_samples"`

	// ReestimateInterval is how often the background re-estimation runs.
	ReestimateInterval time.Duration `json:"reestimate_interval" koanf:"reestimate_interval"`
}

// FunnelConfig holds conversion model tunables.
type FunnelConfig struct {
	// WeekendBoost enables the Saturday/Sunday conversion multiplier.
	WeekendBoost bool `json:"weekend_boost" koanf:"weekend_boost"`
}

// TransitionConfig holds category Markov model tunables.
type TransitionConfig struct {
	// MinObservations is the total transition count below which the bias
	// is treated as neutral.
	MinObservations int `json:"min_observations" koanf:"min_observations"`
}

// LimitsConfig holds request-level limits and timeouts.
type LimitsConfig struct {
	// DefaultK is the recommendation count when the request omits one.
	DefaultK int `json:"default_k" koanf:"default_k"`

	// MaxK caps the recommendation count per request.
	MaxK int `json:"max_k" koanf:"max_k"`

	// RequestTimeout bounds a single Recommend call.
	RequestTimeout time.Duration `json:"request_timeout" koanf:"request_timeout"`
}

// DefaultConfig returns the production default engine configuration.
func DefaultConfig() Config {
	return Config{
		Cluster: ClusterConfig{
			MinConfidence:      0.3,
			MinClusterSamples:  25,
			ReestimateInterval: time.Hour,
		},
		Funnel: FunnelConfig{
			WeekendBoost: false,
		},
		Transition: TransitionConfig{
			MinObservations: 5,
		},
		Ranker:  DefaultRankerConfig(),
		Learner: DefaultLearnerConfig(),
		Limits: LimitsConfig{
			DefaultK:       10,
			MaxK:           100,
			RequestTimeout: 2 * time.Second,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Cluster.MinConfidence < 0 || c.Cluster.MinConfidence >= 1 {
		return fmt.Errorf("cluster.min_confidence must be in [0, 1): %f", c.Cluster.MinConfidence)
	}
	if c.Cluster.MinClusterSamples < 2 {
		return fmt.Errorf("cluster.min_cluster_samples must be >= 2: %d", c.Cluster.MinClusterSamples)
	}
	if c.Cluster.ReestimateInterval <= 0 {
		return fmt.Errorf("cluster.reestimate_interval must be positive: %s", c.Cluster.ReestimateInterval)
	}
	if c.Transition.MinObservations < 0 {
		return fmt.Errorf("transition.min_observations must be >= 0: %d", c.Transition.MinObservations)
	}
	if c.Ranker.ColdStartN <= 0 {
		return fmt.Errorf("ranker.cold_start_n must be positive: %d", c.Ranker.ColdStartN)
	}
	if c.Ranker.Epsilon <= 0 || c.Ranker.Epsilon >= 1 {
		return fmt.Errorf("ranker.epsilon must be in (0, 1): %g", c.Ranker.Epsilon)
	}
	if c.Ranker.CategoryBoost < 1 {
		return fmt.Errorf("ranker.category_boost must be >= 1: %f", c.Ranker.CategoryBoost)
	}
	if c.Ranker.BrandLoyalBoost < 1 {
		return fmt.Errorf("ranker.brand_loyal_boost must be >= 1: %f", c.Ranker.BrandLoyalBoost)
	}
	if c.Learner.Alpha <= 0 || c.Learner.Alpha >= 1 {
		return fmt.Errorf("learner.alpha must be in (0, 1): %f", c.Learner.Alpha)
	}
	if c.Learner.ClickAlphaFactor <= 0 || c.Learner.ClickAlphaFactor > 1 {
		return fmt.Errorf("learner.click_alpha_factor must be in (0, 1]: %f", c.Learner.ClickAlphaFactor)
	}
	if c.Learner.DecayThreshold < 0 {
		return fmt.Errorf("learner.decay_threshold must be >= 0: %d", c.Learner.DecayThreshold)
	}
	if c.Limits.DefaultK <= 0 {
		return fmt.Errorf("limits.default_k must be positive: %d", c.Limits.DefaultK)
	}
	if c.Limits.MaxK < c.Limits.DefaultK {
		return fmt.Errorf("limits.max_k must be >= limits.default_k: %d < %d", c.Limits.MaxK, c.Limits.DefaultK)
	}
	if c.Limits.RequestTimeout <= 0 {
		return fmt.Errorf("limits.request_timeout must be positive: %s", c.Limits.RequestTimeout)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() Config {
	// All fields are value types, so a shallow copy is a deep copy.
	return *c
}
