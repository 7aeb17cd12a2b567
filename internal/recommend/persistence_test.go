// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import (
	"context"
	"testing"
	"time"
)

func TestExportImportState_RoundTrip(t *testing.T) {
	src := newTestEngine(t, DefaultConfig(), defaultStubProvider())

	// Populate all four models through the normal feedback path.
	now := time.Now()
	events := []Event{
		{ID: "e1", Kind: EventPurchase, UserID: "u1", ProductID: "p1", Category: "books", Price: 10, Timestamp: now},
		{ID: "e2", Kind: EventPurchase, UserID: "u1", ProductID: "p3", Category: "games", Price: 60, Timestamp: now},
		{ID: "e3", Kind: EventClick, UserID: "u2", ProductID: "p2"},
	}
	for _, ev := range events {
		if err := src.ProcessFeedback(context.Background(), ev); err != nil {
			t.Fatalf("ProcessFeedback(%s) error = %v", ev.ID, err)
		}
	}

	state := src.ExportState()
	if len(state.Users) != 2 {
		t.Fatalf("Exported %d users, want 2", len(state.Users))
	}
	if state.SavedAt.IsZero() {
		t.Error("SavedAt is zero")
	}

	dst := newTestEngine(t, DefaultConfig(), defaultStubProvider())
	if err := dst.ImportState(state); err != nil {
		t.Fatalf("ImportState() error = %v", err)
	}

	// Per-user state survives.
	want, _ := src.Assignments().Get("u1")
	got, ok := dst.Assignments().Get("u1")
	if !ok {
		t.Fatal("Restored engine lost user u1")
	}
	if got.Purchases != want.Purchases || got.TotalSpend != want.TotalSpend {
		t.Errorf("Restored u1 = %d/%.2f, want %d/%.2f",
			got.Purchases, got.TotalSpend, want.Purchases, want.TotalSpend)
	}
	if got.LastCategory != "games" {
		t.Errorf("Restored LastCategory = %q, want games", got.LastCategory)
	}
	if len(got.Categories) != 2 || len(got.Products) != 2 {
		t.Errorf("Restored sets = %d categories / %d products, want 2/2",
			len(got.Categories), len(got.Products))
	}

	// Model version and transition counts survive.
	if dst.ClusterModel().Version() != src.ClusterModel().Version() {
		t.Errorf("Restored cluster version = %d, want %d",
			dst.ClusterModel().Version(), src.ClusterModel().Version())
	}
	if dst.Transitions().Observations() != src.Transitions().Observations() {
		t.Errorf("Restored transition observations = %d, want %d",
			dst.Transitions().Observations(), src.Transitions().Observations())
	}

	// Funnel rates adjusted by learning survive.
	srcRates := src.Funnel().Snapshot()
	dstRates := dst.Funnel().Snapshot()
	for c, r := range srcRates {
		if dstRates[c] != r {
			t.Errorf("Restored rates for %s = %v, want %v", c, dstRates[c], r)
		}
	}
}

func TestImportState_EmptySnapshotIsNoop(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), defaultStubProvider())
	version := e.ClusterModel().Version()

	if err := e.ImportState(EngineState{}); err != nil {
		t.Fatalf("ImportState(empty) error = %v", err)
	}
	if e.ClusterModel().Version() != version {
		t.Error("Empty import replaced the cluster model")
	}
	if e.Assignments().Len() != 0 {
		t.Error("Empty import created users")
	}
}

func TestImportState_InvalidClusterParams(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), defaultStubProvider())

	bad := EngineState{
		ClusterParams: map[Cluster]ClusterParams{
			ClusterPriceSensitive: {Prior: 1},
		},
		ClusterVersion: 7,
	}
	if err := e.ImportState(bad); err == nil {
		t.Error("ImportState() = nil error for incomplete cluster params")
	}
}
