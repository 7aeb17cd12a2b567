// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package services

import (
	"context"

	"github.com/rs/zerolog"
)

// FeedbackRouter matches the feedback router's lifecycle methods.
type FeedbackRouter interface {
	Run(ctx context.Context) error
	Running() <-chan struct{}
}

// FeedbackService runs the feedback router under supervision. A panic
// or fatal error in the consumer restarts the router without touching
// the recommendation read path.
type FeedbackService struct {
	router FeedbackRouter
	logger zerolog.Logger
}

// NewFeedbackService creates a feedback router service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewFeedbackService(router FeedbackRouter, logger zerolog.Logger) *FeedbackService {
	return &FeedbackService{
		router: router,
		logger: logger.With().Str("service", "feedback").Logger(),
	}
}

// Serve implements suture.Service. Run blocks until the context is
// canceled or the router fails.
func (s *FeedbackService) Serve(ctx context.Context) error {
	s.logger.Info().Msg("Feedback router starting")
	err := s.router.Run(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Msg("Feedback router stopped unexpectedly")
		return err
	}
	s.logger.Info().Msg("Feedback router stopped")
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *FeedbackService) String() string {
	return "feedback-router"
}
