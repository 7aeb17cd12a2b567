// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import (
	"fmt"
	"sync"
)

// FunnelModel estimates purchase conversion probability as a five-stage
// funnel with per-cluster stage pass rates.
//
// Reads take a shared lock and writes an exclusive one; stage rate
// adjustments from the learner are small and rare relative to reads.
type FunnelModel struct {
	mu           sync.RWMutex
	rates        map[Cluster]StageRates
	weekendBoost bool
}

// defaultStageRates are the seed pass rates per cluster, ordered
// exposure, awareness, interest, desire, action.
var defaultStageRates = map[Cluster]StageRates{
	ClusterPriceSensitive:     {1.0, 0.7, 0.5, 0.3, 0.15},
	ClusterConvenienceFocused: {1.0, 0.8, 0.6, 0.4, 0.25},
	ClusterQualitySeeker:      {1.0, 0.9, 0.7, 0.5, 0.35},
	ClusterBrandLoyal:         {1.0, 0.95, 0.8, 0.7, 0.5},
	ClusterImpulseBuyer:       {1.0, 0.6, 0.5, 0.6, 0.4},
	ClusterUnknown:            {1.0, 0.7, 0.5, 0.35, 0.2},
}

// NewFunnelModel creates a funnel model with the default stage rates.
// weekendBoost enables the Saturday/Sunday conversion multiplier.
func NewFunnelModel(weekendBoost bool) *FunnelModel {
	rates := make(map[Cluster]StageRates, len(defaultStageRates))
	for c, r := range defaultStageRates {
		rates[c] = r
	}
	return &FunnelModel{
		rates:        rates,
		weekendBoost: weekendBoost,
	}
}

// TimeOfDayMultiplier returns the step multiplier for an hour of day.
// Evening prime time boosts every stage; night hours suppress them.
func TimeOfDayMultiplier(hour int) float64 {
	switch {
	case hour >= 18 && hour <= 22:
		return 1.2
	case hour >= 10 && hour <= 17:
		return 1.0
	case hour >= 6 && hour <= 9:
		return 0.9
	default:
		return 0.7
	}
}

// weekendMultiplier is applied on Saturday and Sunday when enabled.
const weekendMultiplier = 1.1

// Conversion returns the probability of traversing the full funnel for a
// cluster at the given hour and day of week.
//
// Each stage rate is multiplied by the time-of-day multiplier (and the
// weekend multiplier when enabled), clamped to [0, 1], and the clamped
// rates are multiplied together. A cluster without a rate row falls back
// to the ClusterUnknown row.
func (m *FunnelModel) Conversion(c Cluster, hour, dayOfWeek int) float64 {
	m.mu.RLock()
	rates, ok := m.rates[c]
	if !ok {
		rates = m.rates[ClusterUnknown]
	}
	boost := m.weekendBoost
	m.mu.RUnlock()

	multiplier := TimeOfDayMultiplier(hour)
	if boost && (dayOfWeek == 0 || dayOfWeek == 6) {
		multiplier *= weekendMultiplier
	}

	probability := 1.0
	for _, rate := range rates {
		probability *= clamp01(rate * multiplier)
	}
	return probability
}

// Rates returns a copy of the stage rates for a cluster.
// Returns ErrUnknownCluster if the cluster has no rate row.
func (m *FunnelModel) Rates(c Cluster) (StageRates, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rates, ok := m.rates[c]
	if !ok {
		return StageRates{}, fmt.Errorf("%w: %s", ErrUnknownCluster, c)
	}
	return rates, nil
}

// AdjustRate moves a stage rate toward 1 with exponential smoothing:
// rate' = rate + alpha*(1-rate). Used by the learner on positive signals.
// The exposure stage is pinned at 1 and never adjusted.
func (m *FunnelModel) AdjustRate(c Cluster, s Stage, alpha float64) error {
	if s == StageExposure {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rates, ok := m.rates[c]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCluster, c)
	}
	rates[s] += alpha * (1 - rates[s])
	m.rates[c] = rates
	return nil
}

// DecayRate moves a stage rate toward 0: rate' = rate * (1-alpha).
// Used by the learner after sustained impressions without conversion.
func (m *FunnelModel) DecayRate(c Cluster, s Stage, alpha float64) error {
	if s == StageExposure {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rates, ok := m.rates[c]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCluster, c)
	}
	rates[s] *= 1 - alpha
	m.rates[c] = rates
	return nil
}

// Snapshot returns a copy of all stage rates for persistence and diagnostics.
func (m *FunnelModel) Snapshot() map[Cluster]StageRates {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[Cluster]StageRates, len(m.rates))
	for c, r := range m.rates {
		out[c] = r
	}
	return out
}

// Restore replaces all stage rates, used when loading persisted state.
// Unknown-to-the-model clusters in the input are dropped.
func (m *FunnelModel) Restore(rates map[Cluster]StageRates) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for c, r := range rates {
		if _, ok := m.rates[c]; ok {
			m.rates[c] = r
		}
	}
}
