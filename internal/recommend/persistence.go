// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import (
	"time"
)

// EngineState is the serializable snapshot of all engine models, written
// by the snapshot service and restored on startup.
type EngineState struct {
	// ClusterParams are the active cluster model parameters.
	ClusterParams map[Cluster]ClusterParams

	// ClusterVersion is the active cluster model version.
	ClusterVersion int

	// FunnelRates are the per-cluster stage pass rates.
	FunnelRates map[Cluster]StageRates

	// TransitionCounts are the raw category transition counts.
	TransitionCounts map[string]map[string]uint64

	// Users are the per-user assignment states.
	Users []UserStateSnapshot

	// SavedAt is when the snapshot was taken.
	SavedAt time.Time
}

// UserStateSnapshot is the serializable form of a user's state.
// Sets are flattened to slices because gob handles them more compactly
// and deterministically than struct{} -valued maps.
type UserStateSnapshot struct {
	Assignment   Assignment
	Aggregate    FeatureAggregate
	Purchases    int
	TotalSpend   float64
	Categories   []string
	Products     []string
	LastCategory string
	LastPurchase time.Time
}

// ExportState captures a consistent copy of all engine models.
// Each model is snapshotted under its own lock; the combined state is
// only loosely consistent across models, which is acceptable for a
// warm-start snapshot.
func (e *Engine) ExportState() EngineState {
	model := e.ClusterModel()

	state := EngineState{
		ClusterParams:    model.ParamsSnapshot(),
		ClusterVersion:   model.Version(),
		FunnelRates:      e.funnel.Snapshot(),
		TransitionCounts: e.transitions.Snapshot(),
		SavedAt:          time.Now(),
	}

	e.assignments.Range(func(u *UserState) bool {
		snap := UserStateSnapshot{
			Assignment:   u.Assignment,
			Aggregate:    u.Aggregate,
			Purchases:    u.Purchases,
			TotalSpend:   u.TotalSpend,
			LastCategory: u.LastCategory,
			LastPurchase: u.LastPurchase,
		}
		for c := range u.Categories {
			snap.Categories = append(snap.Categories, c)
		}
		for p := range u.Products {
			snap.Products = append(snap.Products, p)
		}
		state.Users = append(state.Users, snap)
		return true
	})

	return state
}

// ImportState restores engine models from a snapshot.
// Intended for startup before the engine serves traffic; concurrent
// requests during import may observe a mix of old and new state.
func (e *Engine) ImportState(state EngineState) error {
	if len(state.ClusterParams) > 0 {
		model, err := NewClusterModel(state.ClusterParams, e.cfg.Cluster.MinConfidence, state.ClusterVersion)
		if err != nil {
			return err
		}
		e.clusters.Store(model)
	}

	if len(state.FunnelRates) > 0 {
		e.funnel.Restore(state.FunnelRates)
	}
	if len(state.TransitionCounts) > 0 {
		e.transitions.Restore(state.TransitionCounts)
	}

	for _, snap := range state.Users {
		u := &UserState{
			Assignment:   snap.Assignment,
			Aggregate:    snap.Aggregate,
			Purchases:    snap.Purchases,
			TotalSpend:   snap.TotalSpend,
			LastCategory: snap.LastCategory,
			LastPurchase: snap.LastPurchase,
			Categories:   make(map[string]struct{}, len(snap.Categories)),
			Products:     make(map[string]struct{}, len(snap.Products)),
		}
		for _, c := range snap.Categories {
			u.Categories[c] = struct{}{}
		}
		for _, p := range snap.Products {
			u.Products[p] = struct{}{}
		}
		e.assignments.Put(u)
	}

	e.logger.Info().
		Int("users", len(state.Users)).
		Int("cluster_version", state.ClusterVersion).
		Time("saved_at", state.SavedAt).
		Msg("Engine state restored")
	return nil
}
