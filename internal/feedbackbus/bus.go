// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

// Package feedbackbus decouples feedback ingestion from learning.
//
// The HTTP handler publishes events to an in-process Watermill pub/sub
// and returns immediately; a supervised router consumes them, applies
// the learner, and routes permanent failures to a poison topic. The
// recommendation read path is never blocked by a slow learner.
package feedbackbus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dkim815/shoprank/internal/metrics"
	"github.com/dkim815/shoprank/internal/recommend"
)

// Topics used on the bus.
const (
	// TopicEvents carries incoming feedback events.
	TopicEvents = "feedback.events"

	// TopicPoison receives events that failed all retries.
	TopicPoison = "feedback.poison"
)

// Bus wraps the in-process pub/sub.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// New creates a feedback bus with a bounded output buffer.
func New(logger zerolog.Logger) *Bus {
	wmLogger := newZerologAdapter(logger)
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 1024,
			Persistent:          false,
		}, wmLogger),
		logger: wmLogger,
	}
}

// Publish marshals an event onto the events topic.
// A missing event ID is assigned here so downstream deduplication always
// has a key to work with.
func (b *Bus) Publish(ctx context.Context, ev recommend.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(ev.ID, payload)
	msg.SetContext(ctx)
	if err := b.pubsub.Publish(TopicEvents, msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	metrics.FeedbackQueueDepth.Inc()
	return nil
}

// Publisher exposes the raw publisher (used by the poison queue).
func (b *Bus) Publisher() message.Publisher {
	return b.pubsub
}

// Subscriber exposes the raw subscriber for router wiring.
func (b *Bus) Subscriber() message.Subscriber {
	return b.pubsub
}

// WatermillLogger returns the bus's logger adapter.
func (b *Bus) WatermillLogger() watermill.LoggerAdapter {
	return b.logger
}

// Close shuts down the pub/sub; pending messages are dropped.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// DecodeEvent unmarshals a bus message back into an event.
func DecodeEvent(msg *message.Message) (recommend.Event, error) {
	var ev recommend.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return recommend.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.ID == "" {
		ev.ID = msg.UUID
	}
	return ev, nil
}

// zerologAdapter bridges zerolog into watermill's logger interface.
type zerologAdapter struct {
	logger zerolog.Logger
}

func newZerologAdapter(logger zerolog.Logger) watermill.LoggerAdapter {
	return &zerologAdapter{logger: logger.With().Str("component", "feedbackbus").Logger()}
}

// withFields copies watermill log fields onto a zerolog event.
func withFields(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}

func (a *zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	withFields(a.logger.Error().Err(err), fields).Msg(msg)
}

func (a *zerologAdapter) Info(msg string, fields watermill.LogFields) {
	withFields(a.logger.Info(), fields).Msg(msg)
}

func (a *zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	withFields(a.logger.Debug(), fields).Msg(msg)
}

func (a *zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	withFields(a.logger.Trace(), fields).Msg(msg)
}

func (a *zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := a.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &zerologAdapter{logger: ctx.Logger()}
}
