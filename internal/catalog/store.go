// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

// Package catalog provides the in-memory product catalog and purchase
// history backing the recommendation engine's candidate queries.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/dkim815/shoprank/internal/recommend"
)

// historyCap bounds per-user purchase history retained in memory.
const historyCap = 500

// Store is an in-memory catalog and purchase history.
// It implements recommend.DataProvider.
type Store struct {
	mu        sync.RWMutex
	products  map[string]recommend.Product
	purchases map[string][]recommend.Purchase
	maxPrice  float64
}

// NewStore creates an empty catalog store.
func NewStore() *Store {
	return &Store{
		products:  make(map[string]recommend.Product),
		purchases: make(map[string][]recommend.Purchase),
	}
}

// compile-time interface check
var _ recommend.DataProvider = (*Store)(nil)

// Upsert inserts or replaces catalog products.
func (s *Store) Upsert(products ...recommend.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		s.products[p.ID] = p
		if p.Price > s.maxPrice {
			s.maxPrice = p.Price
		}
	}
}

// LoadFile seeds the catalog from a JSON array of products.
func (s *Store) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read catalog file: %w", err)
	}

	var products []recommend.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return 0, fmt.Errorf("parse catalog file %s: %w", path, err)
	}

	s.Upsert(products...)
	return len(products), nil
}

// Candidates returns products eligible for recommendation.
// An empty category means the whole catalog. The result is sorted by
// product ID so downstream ranking sees a stable input order.
func (s *Store) Candidates(ctx context.Context, category string) ([]recommend.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]recommend.Product, 0, len(s.products))
	for _, p := range s.products {
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// History returns a user's purchases in chronological order.
// A missing user returns an empty slice.
func (s *Store) History(ctx context.Context, userID string) ([]recommend.Purchase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.purchases[userID]
	out := make([]recommend.Purchase, len(history))
	copy(out, history)
	return out, nil
}

// MaxPrice returns the highest list price in the catalog.
func (s *Store) MaxPrice(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxPrice, nil
}

// RecordPurchase folds a purchase event into the user's history and
// bumps the product's sales count. Events without a known product still
// update history; price and category come from the event itself.
func (s *Store) RecordPurchase(ev recommend.Event) {
	if ev.UserID == "" || ev.ProductID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.products[ev.ProductID]; ok {
		p.SalesCount++
		s.products[ev.ProductID] = p
	}

	history := append(s.purchases[ev.UserID], recommend.Purchase{
		ProductID: ev.ProductID,
		Category:  ev.Category,
		Price:     ev.Price,
		Timestamp: ev.Timestamp,
	})
	if len(history) > historyCap {
		history = history[len(history)-historyCap:]
	}
	s.purchases[ev.UserID] = history
}

// Product looks up a single product by ID.
func (s *Store) Product(id string) (recommend.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

// Len returns the number of products in the catalog.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}
