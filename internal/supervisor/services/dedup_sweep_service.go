// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DedupSweeper evicts expired entries from the feedback dedup set.
type DedupSweeper interface {
	SweepDedup() int
}

// DedupSweepService periodically sweeps the dedup set. Entries also
// expire lazily on lookup; the sweep bounds memory when traffic is too
// quiet for lookups to do the work.
type DedupSweepService struct {
	engine   DedupSweeper
	interval time.Duration
	logger   zerolog.Logger
}

// NewDedupSweepService creates a dedup sweep service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewDedupSweepService(engine DedupSweeper, interval time.Duration, logger zerolog.Logger) *DedupSweepService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &DedupSweepService{
		engine:   engine,
		interval: interval,
		logger:   logger.With().Str("service", "dedup-sweep").Logger(),
	}
}

// Serve implements suture.Service.
func (s *DedupSweepService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("Dedup sweep starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if removed := s.engine.SweepDedup(); removed > 0 {
				s.logger.Debug().Int("removed", removed).Msg("Dedup entries swept")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *DedupSweepService) String() string {
	return "dedup-sweep"
}
