// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAssignmentStore_GetMissingUser(t *testing.T) {
	s := NewAssignmentStore()
	if _, ok := s.Get("nobody"); ok {
		t.Error("Get() = ok for missing user")
	}
}

func TestAssignmentStore_UpdateCreatesUnknownState(t *testing.T) {
	s := NewAssignmentStore()

	s.Update("u1", func(state *UserState) {
		if state.Assignment.UserID != "u1" {
			t.Errorf("UserID = %q, want u1", state.Assignment.UserID)
		}
		if state.Assignment.Cluster != ClusterUnknown {
			t.Errorf("Cluster = %s, want unknown for first-seen user", state.Assignment.Cluster)
		}
		state.Purchases = 3
	})

	state, ok := s.Get("u1")
	if !ok {
		t.Fatal("Get() did not find updated user")
	}
	if state.Purchases != 3 {
		t.Errorf("Purchases = %d, want 3", state.Purchases)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestAssignmentStore_GetReturnsIsolatedCopy(t *testing.T) {
	s := NewAssignmentStore()
	s.Update("u1", func(state *UserState) {
		state.Categories["books"] = struct{}{}
		state.Products["p1"] = struct{}{}
	})

	copy1, _ := s.Get("u1")
	copy1.Categories["games"] = struct{}{}
	copy1.Products["p2"] = struct{}{}
	copy1.Purchases = 99

	copy2, _ := s.Get("u1")
	if len(copy2.Categories) != 1 || len(copy2.Products) != 1 {
		t.Error("Mutating a Get() copy leaked into the store")
	}
	if copy2.Purchases != 0 {
		t.Errorf("Purchases = %d, want 0", copy2.Purchases)
	}
}

func TestAssignmentStore_PutReplacesState(t *testing.T) {
	s := NewAssignmentStore()

	s.Put(&UserState{
		Assignment: Assignment{UserID: "u1", Cluster: ClusterBrandLoyal, Confidence: 0.8},
		Purchases:  5,
	})

	state, ok := s.Get("u1")
	if !ok {
		t.Fatal("Get() did not find put user")
	}
	if state.Assignment.Cluster != ClusterBrandLoyal || state.Purchases != 5 {
		t.Errorf("State = %s/%d purchases, want brand_loyal/5", state.Assignment.Cluster, state.Purchases)
	}
	// Nil maps are materialized so later updates do not panic.
	s.Update("u1", func(st *UserState) {
		st.Categories["books"] = struct{}{}
		st.Products["p1"] = struct{}{}
	})
}

func TestAssignmentStore_AggregatesByCluster(t *testing.T) {
	s := NewAssignmentStore()

	observe := func(userID string, c Cluster, vectors ...FeatureVector) {
		s.Update(userID, func(state *UserState) {
			state.Assignment.Cluster = c
			for _, v := range vectors {
				state.Aggregate.Observe(v)
			}
		})
	}

	observe("u1", ClusterPriceSensitive, FeatureVector{PriceTier: 0.2}, FeatureVector{PriceTier: 0.4})
	observe("u2", ClusterPriceSensitive, FeatureVector{PriceTier: 0.6})
	observe("u3", ClusterQualitySeeker, FeatureVector{PriceTier: 0.9})
	observe("u4", ClusterUnknown, FeatureVector{PriceTier: 0.5})

	byCluster := s.AggregatesByCluster()

	if _, ok := byCluster[ClusterUnknown]; ok {
		t.Error("AggregatesByCluster() included unknown users")
	}

	ps := byCluster[ClusterPriceSensitive]
	if ps.Count != 3 {
		t.Errorf("PriceSensitive count = %d, want 3 merged observations", ps.Count)
	}
	qs := byCluster[ClusterQualitySeeker]
	if qs.Count != 1 {
		t.Errorf("QualitySeeker count = %d, want 1", qs.Count)
	}
}

func TestAssignmentStore_Range(t *testing.T) {
	s := NewAssignmentStore()
	for i := 0; i < 5; i++ {
		s.Update(fmt.Sprintf("u%d", i), func(state *UserState) {})
	}

	var seen int
	s.Range(func(state *UserState) bool {
		seen++
		return seen < 3
	})
	if seen != 3 {
		t.Errorf("Range visited %d states, want early stop at 3", seen)
	}
}

func TestAssignmentStore_ConcurrentUpdates(t *testing.T) {
	s := NewAssignmentStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", n%4)
			for j := 0; j < 100; j++ {
				s.Update(userID, func(state *UserState) {
					state.Purchases++
					state.LastPurchase = time.Now()
				})
				if _, ok := s.Get(userID); !ok {
					t.Errorf("Get(%s) lost a user mid-update", userID)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
	var total int
	s.Range(func(state *UserState) bool {
		total += state.Purchases
		return true
	})
	if total != 800 {
		t.Errorf("Total purchases = %d, want 800 (lost updates)", total)
	}
}
