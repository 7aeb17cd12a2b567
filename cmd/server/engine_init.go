// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/dkim815/shoprank/internal/catalog"
	"github.com/dkim815/shoprank/internal/config"
	"github.com/dkim815/shoprank/internal/eventlog"
	"github.com/dkim815/shoprank/internal/feedbackbus"
	"github.com/dkim815/shoprank/internal/recommend"
	"github.com/dkim815/shoprank/internal/recommend/storage"
	"github.com/dkim815/shoprank/internal/supervisor/services"
)

// buildEngineConfig maps the flat app-level engine settings onto the
// engine's own configuration, keeping engine defaults for anything the
// app config does not surface.
func buildEngineConfig(cfg *config.Config) recommend.Config {
	ec := recommend.DefaultConfig()

	ec.Cluster.MinConfidence = cfg.Engine.MinConfidence
	ec.Cluster.MinClusterSamples = cfg.Engine.MinClusterSamples
	ec.Cluster.ReestimateInterval = cfg.Engine.ReestimateInterval
	ec.Funnel.WeekendBoost = cfg.Engine.WeekendBoost
	ec.Transition.MinObservations = cfg.Engine.MinObservations
	ec.Ranker.ColdStartN = cfg.Engine.ColdStartN
	ec.Learner.Alpha = cfg.Engine.Alpha
	ec.Learner.DecayThreshold = cfg.Engine.DecayThreshold
	ec.Limits.DefaultK = cfg.Engine.DefaultK
	ec.Limits.MaxK = cfg.Engine.MaxK
	ec.Limits.RequestTimeout = cfg.Engine.RequestTimeout

	return ec
}

// restoreEngineState loads the latest snapshot into the engine.
// A missing snapshot is a normal first boot, not an error.
func restoreEngineState(ctx context.Context, engine *recommend.Engine, store *storage.Store, logger zerolog.Logger) {
	state, meta, err := store.Load(ctx, services.SnapshotName, 0)
	if err != nil {
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			logger.Info().Msg("No model snapshot found, starting fresh")
			return
		}
		logger.Warn().Err(err).Msg("Snapshot restore failed, starting fresh")
		return
	}

	if err := engine.ImportState(state); err != nil {
		logger.Warn().Err(err).Msg("Snapshot import failed, starting fresh")
		return
	}

	logger.Info().
		Int("version", meta.Version).
		Int("users", meta.UserCount).
		Time("saved_at", meta.SavedAt).
		Msg("Model snapshot restored")
}

// feedbackHandler builds the pipeline applied to each consumed event:
// append to the durable event log, fold purchases into the catalog,
// then run the online learner. Both the log append and the learner are
// keyed by event ID, so redelivered events are no-ops end to end.
func feedbackHandler(engine *recommend.Engine, cat *catalog.Store, events *eventlog.Store) feedbackbus.EventHandler {
	return func(ctx context.Context, ev recommend.Event) error {
		if err := events.Append(ctx, ev); err != nil {
			return err
		}
		if ev.Kind == recommend.EventPurchase {
			cat.RecordPurchase(ev)
		}
		return engine.ProcessFeedback(ctx, ev)
	}
}
