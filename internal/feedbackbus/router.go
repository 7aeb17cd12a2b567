// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package feedbackbus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/dkim815/shoprank/internal/metrics"
	"github.com/dkim815/shoprank/internal/recommend"
)

// EventHandler processes a decoded feedback event.
// Returning an error triggers retry; exhausted retries go to the poison
// topic.
type EventHandler func(ctx context.Context, ev recommend.Event) error

// RouterConfig holds configuration for the feedback router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for in-flight handlers on close.
	CloseTimeout time.Duration `json:"close_timeout" koanf:"close_timeout"`

	// RetryMaxRetries bounds retry attempts for a failing event.
	RetryMaxRetries int `json:"retry_max_retries" koanf:"retry_max_retries"`

	// RetryInitialInterval is the first retry backoff.
	RetryInitialInterval time.Duration `json:"retry_initial_interval" koanf:"retry_initial_interval"`

	// RetryMaxInterval caps the retry backoff.
	RetryMaxInterval time.Duration `json:"retry_max_interval" koanf:"retry_max_interval"`

	// RetryMultiplier is the backoff growth factor.
	RetryMultiplier float64 `json:"retry_multiplier" koanf:"retry_multiplier"`
}

// DefaultRouterConfig returns production defaults for the router.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     10 * time.Second,
		RetryMultiplier:      2.0,
	}
}

// Router consumes feedback events from the bus and applies a handler
// with panic recovery, exponential backoff retry, and poison queue
// routing for permanent failures.
type Router struct {
	router *message.Router
}

// NewRouter builds the feedback router on top of a bus.
func NewRouter(cfg RouterConfig, bus *Bus, handler EventHandler) (*Router, error) {
	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, bus.WatermillLogger())
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	// First-added middleware wraps outermost, so the poison queue must
	// come before Retry: the handler's error bubbles through the full
	// retry cycle first, and only an exhausted-retries failure reaches
	// the poison publisher.
	wmRouter.AddMiddleware(middleware.Recoverer)

	poison, err := middleware.PoisonQueue(bus.Publisher(), TopicPoison)
	if err != nil {
		return nil, fmt.Errorf("create poison queue: %w", err)
	}
	wmRouter.AddMiddleware(poison)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          bus.WatermillLogger(),
	}
	wmRouter.AddMiddleware(retry.Middleware)

	wmRouter.AddNoPublisherHandler(
		"feedback_learner",
		TopicEvents,
		bus.Subscriber(),
		func(msg *message.Message) error {
			metrics.FeedbackQueueDepth.Dec()

			ev, err := DecodeEvent(msg)
			if err != nil {
				// Undecodable payloads can never succeed; poison them
				metrics.FeedbackPoisoned.Inc()
				return err
			}
			return handler(msg.Context(), ev)
		},
	)

	return &Router{router: wmRouter}, nil
}

// Run starts the router and blocks until the context is canceled.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel that closes once the router is consuming.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for handlers.
func (r *Router) Close() error {
	return r.router.Close()
}
