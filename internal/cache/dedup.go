// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

// Package cache provides small in-memory caching primitives used for
// feedback deduplication and response caching.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// DedupSet is a thread-safe set of recently seen keys with LRU eviction
// and TTL expiry. It backs feedback event deduplication: an event ID is
// remembered for the TTL window and duplicates inside the window are
// rejected in O(1).
type DedupSet struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	items    map[string]*list.Element

	hits   int64
	misses int64
}

// dedupEntry is the list payload: the key and when it expires.
type dedupEntry struct {
	key       string
	expiresAt time.Time
}

// NewDedupSet creates a dedup set with the given capacity and TTL.
// Non-positive values fall back to 10000 entries and 5 minutes.
func NewDedupSet(capacity int, ttl time.Duration) *DedupSet {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DedupSet{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Seen reports whether the key was recorded inside the TTL window.
// Unseen (or expired) keys are recorded as a side effect, so the first
// call for a key returns false and subsequent calls return true until
// the key expires or is evicted.
func (s *DedupSet) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if el, ok := s.items[key]; ok {
		entry := el.Value.(*dedupEntry)
		if now.Before(entry.expiresAt) {
			s.order.MoveToFront(el)
			s.hits++
			return true
		}
		s.remove(el)
	}

	el := s.order.PushFront(&dedupEntry{key: key, expiresAt: now.Add(s.ttl)})
	s.items[key] = el

	for len(s.items) > s.capacity {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.remove(oldest)
	}

	s.misses++
	return false
}

// contains reports whether the key is present and unexpired without
// recording it or refreshing its position.
func (s *DedupSet) contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	return time.Now().Before(el.Value.(*dedupEntry).expiresAt)
}

// Forget removes a key. Returns true if it was present.
func (s *DedupSet) Forget(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	s.remove(el)
	return true
}

// Len returns the number of stored keys, including any not yet expired.
func (s *DedupSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep removes all expired keys and returns how many were dropped.
// Expiry is otherwise lazy, so long-idle sets can call this periodically
// to bound memory.
func (s *DedupSet) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0

	for el := s.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*dedupEntry).expiresAt) {
			s.remove(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Stats returns hit/miss counters and the current size.
func (s *DedupSet) Stats() (hits, misses int64, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses, len(s.items)
}

// remove drops an element from both the list and the index.
// Caller must hold the lock.
func (s *DedupSet) remove(el *list.Element) {
	s.order.Remove(el)
	delete(s.items, el.Value.(*dedupEntry).key)
}
