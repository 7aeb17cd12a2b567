// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkim815/shoprank/internal/metrics"
	"github.com/dkim815/shoprank/internal/recommend"
	"github.com/dkim815/shoprank/internal/recommend/storage"
)

// SnapshotName is the snapshot family used for the engine state.
const SnapshotName = "engine"

// ModelExporter captures the engine's full model state.
type ModelExporter interface {
	ExportState() recommend.EngineState
}

// SnapshotStore persists versioned model snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, name string, state recommend.EngineState) (*storage.SnapshotMetadata, error)
	Prune(ctx context.Context, name string, keep int) error
}

// SnapshotService periodically persists the engine state and prunes old
// snapshot versions. A final snapshot is taken on shutdown so restarts
// lose at most the events since the last write.
type SnapshotService struct {
	engine   ModelExporter
	store    SnapshotStore
	interval time.Duration
	keep     int
	logger   zerolog.Logger
}

// NewSnapshotService creates a snapshot service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSnapshotService(engine ModelExporter, store SnapshotStore, interval time.Duration, keep int, logger zerolog.Logger) *SnapshotService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if keep < 1 {
		keep = 3
	}
	return &SnapshotService{
		engine:   engine,
		store:    store,
		interval: interval,
		keep:     keep,
		logger:   logger.With().Str("service", "snapshot").Logger(),
	}
}

// Serve implements suture.Service.
func (s *SnapshotService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Int("keep", s.keep).
		Msg("Snapshot service starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Taking final snapshot before shutdown")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			s.snapshot(shutdownCtx)
			cancel()
			return ctx.Err()

		case <-ticker.C:
			s.snapshot(ctx)
		}
	}
}

// snapshot persists the current state and prunes old versions.
func (s *SnapshotService) snapshot(ctx context.Context) {
	start := time.Now()
	state := s.engine.ExportState()

	meta, err := s.store.Save(ctx, SnapshotName, state)
	metrics.RecordModelSnapshot(err)
	if err != nil {
		s.logger.Error().Err(err).Msg("Snapshot failed")
		return
	}

	s.logger.Info().
		Int("version", meta.Version).
		Int("users", meta.UserCount).
		Int64("bytes", meta.SizeBytes).
		Dur("took", time.Since(start)).
		Msg("Snapshot written")

	if err := s.store.Prune(ctx, SnapshotName, s.keep); err != nil {
		s.logger.Warn().Err(err).Msg("Snapshot prune failed")
	}
}

// String identifies the service in supervisor logs.
func (s *SnapshotService) String() string {
	return "snapshot"
}
