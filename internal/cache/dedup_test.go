// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestDedupSet_SeenRecordsFirstCall(t *testing.T) {
	s := NewDedupSet(10, time.Minute)

	if s.Seen("a") {
		t.Error("Seen(first) = true, want false")
	}
	if !s.Seen("a") {
		t.Error("Seen(second) = false, want true")
	}
	if s.Seen("b") {
		t.Error("Seen(other key) = true, want false")
	}

	hits, misses, size := s.Stats()
	if hits != 1 || misses != 2 || size != 2 {
		t.Errorf("Stats() = %d/%d/%d, want 1/2/2", hits, misses, size)
	}
}

func TestDedupSet_TTLExpiry(t *testing.T) {
	s := NewDedupSet(10, 20*time.Millisecond)

	s.Seen("a")
	if !s.contains("a") {
		t.Fatal("Contains() = false immediately after Seen")
	}

	time.Sleep(40 * time.Millisecond)

	if s.contains("a") {
		t.Error("Contains() = true after TTL")
	}
	if s.Seen("a") {
		t.Error("Seen() = true for expired key, want re-recorded false")
	}
}

func TestDedupSet_LRUEviction(t *testing.T) {
	s := NewDedupSet(3, time.Minute)

	for i := 0; i < 3; i++ {
		s.Seen(fmt.Sprintf("k%d", i))
	}
	// Touch k0 so k1 becomes the eviction candidate.
	s.Seen("k0")

	s.Seen("k3")

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want capacity 3", s.Len())
	}
	if s.contains("k1") {
		t.Error("LRU key k1 survived eviction")
	}
	if !s.contains("k0") || !s.contains("k3") {
		t.Error("Recently used keys were evicted")
	}
}

func TestDedupSet_Forget(t *testing.T) {
	s := NewDedupSet(10, time.Minute)

	s.Seen("a")
	if !s.Forget("a") {
		t.Error("Forget(present) = false")
	}
	if s.Forget("a") {
		t.Error("Forget(absent) = true")
	}
	if s.Seen("a") {
		t.Error("Seen() = true after Forget")
	}
}

func TestDedupSet_Sweep(t *testing.T) {
	s := NewDedupSet(10, 20*time.Millisecond)

	s.Seen("a")
	s.Seen("b")
	time.Sleep(40 * time.Millisecond)
	s.Seen("c")

	if removed := s.Sweep(); removed != 2 {
		t.Errorf("Sweep() = %d, want 2", removed)
	}
	if s.Len() != 1 || !s.contains("c") {
		t.Errorf("Len() = %d after sweep, want only c", s.Len())
	}
}

func TestDedupSet_DefaultsOnBadInput(t *testing.T) {
	s := NewDedupSet(0, 0)
	if s.capacity != 10000 || s.ttl != 5*time.Minute {
		t.Errorf("Defaults = %d/%s, want 10000/5m", s.capacity, s.ttl)
	}
}

func TestDedupSet_ConcurrentAccess(t *testing.T) {
	s := NewDedupSet(100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%50)
				s.Seen(key)
				s.contains(key)
			}
		}(i)
	}
	wg.Wait()

	if s.Len() > 100 {
		t.Errorf("Len() = %d, exceeded capacity", s.Len())
	}
}
