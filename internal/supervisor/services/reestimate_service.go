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

// Reestimator triggers a cluster model rebuild.
type Reestimator interface {
	ReestimateClusters(ctx context.Context) error
}

// ReestimateService periodically rebuilds the cluster model from the
// accumulated per-cluster feature aggregates.
type ReestimateService struct {
	engine   Reestimator
	interval time.Duration
	logger   zerolog.Logger
}

// NewReestimateService creates a re-estimation service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewReestimateService(engine Reestimator, interval time.Duration, logger zerolog.Logger) *ReestimateService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReestimateService{
		engine:   engine,
		interval: interval,
		logger:   logger.With().Str("service", "reestimate").Logger(),
	}
}

// Serve implements suture.Service.
func (s *ReestimateService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("Re-estimation service starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Re-estimation service shutting down")
			return ctx.Err()

		case <-ticker.C:
			if err := s.engine.ReestimateClusters(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Scheduled re-estimation failed")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *ReestimateService) String() string {
	return "reestimate"
}
