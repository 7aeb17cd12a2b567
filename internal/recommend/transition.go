// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import (
	"fmt"
	"sync"
)

// TransitionModel is a first-order Markov chain over category identifiers,
// built from ordered per-user purchase sequences.
//
// Probabilities are Laplace-smoothed at read time from raw counts, so a
// row's distribution always sums to 1 over its known targets and recording
// a transition never requires renormalizing stored state.
type TransitionModel struct {
	mu              sync.RWMutex
	counts          map[string]map[string]uint64
	totals          map[string]uint64
	observations    uint64
	minObservations uint64
}

// NewTransitionModel creates an empty transition model.
// minObservations is the total observation count below which reads report
// ErrInsufficientSamples alongside a neutral bias.
func NewTransitionModel(minObservations int) *TransitionModel {
	if minObservations < 0 {
		minObservations = 0
	}
	return &TransitionModel{
		counts:          make(map[string]map[string]uint64),
		totals:          make(map[string]uint64),
		minObservations: uint64(minObservations),
	}
}

// RecordTransition observes a purchase in category `to` following a
// purchase in category `from`. Empty categories are ignored.
//
// The first observation of a row seeds a zero-count self-transition so
// "stayed in the same category" is always part of the row's smoothed
// distribution.
func (m *TransitionModel) RecordTransition(from, to string) {
	if from == "" || to == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.counts[from]
	if !ok {
		row = map[string]uint64{from: 0}
		m.counts[from] = row
	}
	row[to]++
	m.totals[from]++
	m.observations++
}

// Probability returns the smoothed P(to | from).
//
// Semantics:
//   - unknown `from` row: neutral 1.0, no error
//   - fewer total observations than the configured minimum: neutral 1.0
//     with ErrInsufficientSamples (callers degrade, not fail)
//   - unseen `to` within a known row: the smoothing floor 1/(total+fanout)
//   - otherwise: (count+1)/(total+fanout)
func (m *TransitionModel) Probability(from, to string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.observations < m.minObservations {
		return 1.0, fmt.Errorf("%w: %d transitions observed, need %d",
			ErrInsufficientSamples, m.observations, m.minObservations)
	}

	row, ok := m.counts[from]
	if !ok {
		return 1.0, nil
	}

	total := m.totals[from]
	fanout := uint64(len(row))
	denom := float64(total + fanout)

	count, seen := row[to]
	if !seen {
		return 1.0 / denom, nil
	}
	return float64(count+1) / denom, nil
}

// Row returns the smoothed distribution over known targets for a row.
// The returned probabilities sum to 1. Unknown rows return nil.
func (m *TransitionModel) Row(from string) map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.counts[from]
	if !ok {
		return nil
	}

	total := m.totals[from]
	fanout := uint64(len(row))
	denom := float64(total + fanout)

	out := make(map[string]float64, len(row))
	for to, count := range row {
		out[to] = float64(count+1) / denom
	}
	return out
}

// Observations returns the total number of recorded transitions.
func (m *TransitionModel) Observations() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.observations
}

// Snapshot returns a deep copy of the raw transition counts.
func (m *TransitionModel) Snapshot() map[string]map[string]uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string]uint64, len(m.counts))
	for from, row := range m.counts {
		copied := make(map[string]uint64, len(row))
		for to, count := range row {
			copied[to] = count
		}
		out[from] = copied
	}
	return out
}

// Restore replaces the model state from persisted counts.
func (m *TransitionModel) Restore(counts map[string]map[string]uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counts = make(map[string]map[string]uint64, len(counts))
	m.totals = make(map[string]uint64, len(counts))
	m.observations = 0

	for from, row := range counts {
		copied := make(map[string]uint64, len(row))
		var total uint64
		for to, count := range row {
			copied[to] = count
			total += count
		}
		m.counts[from] = copied
		m.totals[from] = total
		m.observations += total
	}
}
