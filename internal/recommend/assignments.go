// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import (
	"hash/fnv"
	"sync"
	"time"
)

// UserState is the per-user state the engine maintains: the current
// cluster assignment plus the running behavior totals the feature vector
// is derived from.
type UserState struct {
	// Assignment is the user's current cluster assignment.
	Assignment Assignment `json:"assignment"`

	// Aggregate is the Welford aggregate over the user's feature vector
	// stream, used for batch cluster re-estimation.
	Aggregate FeatureAggregate `json:"aggregate"`

	// Purchases is the total completed purchase count.
	Purchases int `json:"purchases"`

	// TotalSpend is the cumulative purchase amount.
	TotalSpend float64 `json:"total_spend"`

	// Categories is the distinct set of purchased categories.
	Categories map[string]struct{} `json:"-"`

	// Products is the distinct set of purchased products.
	Products map[string]struct{} `json:"-"`

	// LastCategory is the most recent purchase category.
	LastCategory string `json:"last_category"`

	// LastPurchase is when the most recent purchase completed.
	LastPurchase time.Time `json:"last_purchase"`
}

// clone deep-copies the state for the copy-on-read path.
func (s *UserState) clone() *UserState {
	out := *s
	out.Categories = make(map[string]struct{}, len(s.Categories))
	for c := range s.Categories {
		out.Categories[c] = struct{}{}
	}
	out.Products = make(map[string]struct{}, len(s.Products))
	for p := range s.Products {
		out.Products[p] = struct{}{}
	}
	return &out
}

// features derives the user's current feature vector from the running totals.
func (s *UserState) features(maxPrice float64, now time.Time) FeatureVector {
	if s.Purchases == 0 {
		return FeatureVector{}
	}

	avgPrice := s.TotalSpend / float64(s.Purchases)

	var priceTier float64
	if maxPrice > 0 {
		priceTier = clamp01(avgPrice / maxPrice)
	}

	denom := len(s.Products)
	if denom < 1 {
		denom = 1
	}

	var recency float64
	if !s.LastPurchase.IsZero() {
		days := now.Sub(s.LastPurchase).Hours() / 24
		if days < 0 {
			days = 0
		}
		recency = clamp01(1 - days/recencyWindowDays)
	}

	return FeatureVector{
		PriceTier: priceTier,
		Frequency: clamp01(float64(s.Purchases) / frequencyCap),
		Diversity: clamp01(float64(len(s.Categories)) / float64(denom)),
		Recency:   recency,
	}
}

// assignmentStripes is the number of per-user lock stripes.
// Power of two so the hash can be masked.
const assignmentStripes = 64

// AssignmentStore holds per-user state with striped locking.
//
// Writers (the learner) serialize per user through a lock stripe chosen by
// hashing the user ID, so concurrent events for different users proceed in
// parallel while events for one user never interleave. Readers get deep
// copies and never block behind a write to a different stripe.
type AssignmentStore struct {
	mu    sync.RWMutex
	users map[string]*UserState
	locks [assignmentStripes]sync.Mutex
}

// NewAssignmentStore creates an empty assignment store.
func NewAssignmentStore() *AssignmentStore {
	return &AssignmentStore{
		users: make(map[string]*UserState),
	}
}

// stripe returns the lock stripe for a user ID.
func (s *AssignmentStore) stripe(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.locks[h.Sum32()&(assignmentStripes-1)]
}

// Get returns a deep copy of a user's state.
// The copy is taken under the user's lock stripe so it never observes a
// half-applied update, and readers of other users are not blocked.
func (s *AssignmentStore) Get(userID string) (*UserState, bool) {
	s.mu.RLock()
	state, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	lock := s.stripe(userID)
	lock.Lock()
	defer lock.Unlock()
	return state.clone(), true
}

// Update applies fn to a user's state under the user's lock stripe,
// creating an UNKNOWN-assigned state for first-seen users.
//
// fn receives the live state and may mutate it freely; the store map
// lock is only held long enough to look up or insert the entry.
func (s *AssignmentStore) Update(userID string, fn func(*UserState)) {
	lock := s.stripe(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	state, ok := s.users[userID]
	if !ok {
		state = &UserState{
			Assignment: Assignment{
				UserID:  userID,
				Cluster: ClusterUnknown,
			},
			Categories: make(map[string]struct{}),
			Products:   make(map[string]struct{}),
		}
		s.users[userID] = state
	}
	s.mu.Unlock()

	fn(state)
}

// Put replaces a user's state wholesale, used when loading persisted state.
func (s *AssignmentStore) Put(state *UserState) {
	if state.Categories == nil {
		state.Categories = make(map[string]struct{})
	}
	if state.Products == nil {
		state.Products = make(map[string]struct{})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[state.Assignment.UserID] = state
}

// Len returns the number of tracked users.
func (s *AssignmentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// userIDs returns a snapshot of all tracked user IDs.
func (s *AssignmentStore) userIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	return ids
}

// AggregatesByCluster groups the current per-user feature aggregates by
// assigned cluster for batch re-estimation. UNKNOWN users are skipped.
func (s *AssignmentStore) AggregatesByCluster() map[Cluster]FeatureAggregate {
	out := make(map[Cluster]FeatureAggregate)
	for _, id := range s.userIDs() {
		state, ok := s.Get(id)
		if !ok {
			continue
		}
		c := state.Assignment.Cluster
		if c == ClusterUnknown {
			continue
		}
		agg := out[c]
		agg.Merge(state.Aggregate)
		out[c] = agg
	}
	return out
}

// Range calls fn with a deep copy of every user state until fn returns false.
func (s *AssignmentStore) Range(fn func(*UserState) bool) {
	for _, id := range s.userIDs() {
		state, ok := s.Get(id)
		if !ok {
			continue
		}
		if !fn(state) {
			return
		}
	}
}
