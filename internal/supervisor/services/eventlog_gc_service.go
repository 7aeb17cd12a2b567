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

// GarbageCollector triggers value log garbage collection on the event
// log's Badger store.
type GarbageCollector interface {
	RunGC() error
}

// EventLogGCService periodically reclaims space from the event log.
// Badger only rewrites value log files when enough entries have
// expired, so most runs are no-ops.
type EventLogGCService struct {
	store    GarbageCollector
	interval time.Duration
	logger   zerolog.Logger
}

// NewEventLogGCService creates an event log GC service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEventLogGCService(store GarbageCollector, interval time.Duration, logger zerolog.Logger) *EventLogGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &EventLogGCService{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("service", "eventlog-gc").Logger(),
	}
}

// Serve implements suture.Service.
func (s *EventLogGCService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("Event log GC starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := s.store.RunGC(); err != nil {
				s.logger.Warn().Err(err).Msg("Event log GC failed")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *EventLogGCService) String() string {
	return "eventlog-gc"
}
