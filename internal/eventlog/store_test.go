// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package eventlog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkim815/shoprank/internal/recommend"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true, EventTTL: time.Hour}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func TestAppendAndGet(t *testing.T) {
	s := openTestStore(t)

	ev := recommend.Event{
		ID:        "evt-1",
		Kind:      recommend.EventPurchase,
		UserID:    "u1",
		ProductID: "p1",
		Category:  "books",
		Price:     19.99,
		Timestamp: time.Now(),
	}
	if err := s.Append(context.Background(), ev); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := s.Get(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" || got.ProductID != "p1" || got.Price != 19.99 {
		t.Errorf("Get() = %+v, want stored event", got)
	}
}

func TestAppend_RequiresID(t *testing.T) {
	s := openTestStore(t)

	err := s.Append(context.Background(), recommend.Event{UserID: "u1"})
	if err == nil {
		t.Error("Append() = nil error for event without id")
	}
}

func TestAppend_Idempotent(t *testing.T) {
	s := openTestStore(t)

	ts := time.Now()
	ev := recommend.Event{ID: "evt-1", Kind: recommend.EventClick, UserID: "u1", Timestamp: ts}
	if err := s.Append(context.Background(), ev); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	// Redelivery of a stored event ID is a no-op.
	if err := s.Append(context.Background(), ev); err != nil {
		t.Fatalf("Append(redelivery) error = %v", err)
	}

	events, err := s.RecentByUser(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("RecentByUser() error = %v", err)
	}
	if len(events) != 1 {
		t.Errorf("RecentByUser() = %d events after redelivery, want 1", len(events))
	}
}

func TestAppend_ReplayDoesNotDoubleCountDailyStats(t *testing.T) {
	s := openTestStore(t)

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ev := recommend.Event{
		ID:        "evt-1",
		Kind:      recommend.EventPurchase,
		UserID:    "u1",
		ProductID: "p1",
		Price:     100,
		Timestamp: ts,
	}
	for i := 0; i < 2; i++ {
		if err := s.Append(context.Background(), ev); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	stats, err := s.Daily(context.Background(), "2026-08-01")
	if err != nil {
		t.Fatalf("Daily() error = %v", err)
	}
	if stats.Purchases != 1 || stats.Revenue != 100 {
		t.Errorf("Daily() = %d purchases / %.2f revenue, want 1 / 100.00",
			stats.Purchases, stats.Revenue)
	}
}

func TestGet_Missing(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Get() error = %v, want ErrEventNotFound", err)
	}
}

func TestRecentByUser_NewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ev := recommend.Event{
			ID:        fmt.Sprintf("evt-%d", i),
			Kind:      recommend.EventImpression,
			UserID:    "u1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Append(context.Background(), ev); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	// Another user's events must not leak into the scan.
	other := recommend.Event{ID: "other", Kind: recommend.EventClick, UserID: "u2", Timestamp: base}
	if err := s.Append(context.Background(), other); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	events, err := s.RecentByUser(context.Background(), "u1", 3)
	if err != nil {
		t.Fatalf("RecentByUser() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("RecentByUser() = %d events, want limit 3", len(events))
	}
	for i, want := range []string{"evt-4", "evt-3", "evt-2"} {
		if events[i].ID != want {
			t.Errorf("events[%d].ID = %s, want %s", i, events[i].ID, want)
		}
	}
}

func TestRecentByUser_UnknownUser(t *testing.T) {
	s := openTestStore(t)

	events, err := s.RecentByUser(context.Background(), "ghost", 10)
	if err != nil {
		t.Fatalf("RecentByUser() error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("RecentByUser() = %d events, want 0", len(events))
	}
}

func TestDailyStats_Rollup(t *testing.T) {
	s := openTestStore(t)

	day := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	events := []recommend.Event{
		{ID: "e1", Kind: recommend.EventImpression, UserID: "u1", Timestamp: day},
		{ID: "e2", Kind: recommend.EventImpression, UserID: "u2", Timestamp: day.Add(time.Hour)},
		{ID: "e3", Kind: recommend.EventClick, UserID: "u1", Timestamp: day.Add(2 * time.Hour)},
		{ID: "e4", Kind: recommend.EventPurchase, UserID: "u1", Price: 25, Timestamp: day.Add(3 * time.Hour)},
		{ID: "e5", Kind: recommend.EventPurchase, UserID: "u2", Price: 10, Timestamp: day.Add(4 * time.Hour)},
		// Next UTC day lands in a different bucket
		{ID: "e6", Kind: recommend.EventClick, UserID: "u1", Timestamp: day.Add(24 * time.Hour)},
	}
	for _, ev := range events {
		if err := s.Append(context.Background(), ev); err != nil {
			t.Fatalf("Append(%s) error = %v", ev.ID, err)
		}
	}

	stats, err := s.Daily(context.Background(), "2026-08-01")
	if err != nil {
		t.Fatalf("Daily() error = %v", err)
	}
	if stats.Impressions != 2 || stats.Clicks != 1 || stats.Purchases != 2 {
		t.Errorf("Daily() = %d/%d/%d, want 2 impressions / 1 click / 2 purchases",
			stats.Impressions, stats.Clicks, stats.Purchases)
	}
	if stats.Revenue != 35 {
		t.Errorf("Revenue = %.2f, want 35.00", stats.Revenue)
	}

	next, err := s.Daily(context.Background(), "2026-08-02")
	if err != nil {
		t.Fatalf("Daily(next) error = %v", err)
	}
	if next.Clicks != 1 || next.Impressions != 0 {
		t.Errorf("Next day = %+v, want 1 click only", next)
	}
}

func TestDailyStats_EmptyDay(t *testing.T) {
	s := openTestStore(t)

	stats, err := s.Daily(context.Background(), "2026-01-01")
	if err != nil {
		t.Fatalf("Daily() error = %v", err)
	}
	if stats != (DailyStats{Date: "2026-01-01"}) {
		t.Errorf("Daily(empty) = %+v, want zero rollup", stats)
	}
}

func TestAppend_CanceledContext(t *testing.T) {
	s := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Append(ctx, recommend.Event{ID: "e1", UserID: "u1"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Append() error = %v, want context.Canceled", err)
	}
}

func TestRunGC(t *testing.T) {
	s := openTestStore(t)

	// In-memory mode has no value log to rewrite; ErrNoRewrite maps to nil.
	if err := s.RunGC(); err != nil {
		t.Errorf("RunGC() error = %v", err)
	}
}
