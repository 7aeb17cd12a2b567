// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

// Package recommend implements the marketplace recommendation engine:
// Bayesian cluster assignment over purchase-behavior features, a
// five-stage conversion funnel with time-of-day adjustment, a category
// transition Markov model, an expected-value ranker, and an online
// feedback learner.
//
// # Concurrency Model
//
// The read path (Recommend) works against copy-on-read user state and an
// atomically swapped cluster model, so it is never blocked by learning.
// The write path (ProcessFeedback) serializes per user through lock
// stripes; events for different users proceed in parallel and there is
// no global engine lock.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkim815/shoprank/internal/metrics"
)

// Engine is the recommendation engine facade.
type Engine struct {
	cfg         Config
	provider    DataProvider
	clusters    atomic.Pointer[ClusterModel]
	funnel      *FunnelModel
	transitions *TransitionModel
	assignments *AssignmentStore
	learner     *Learner
	ranker      *Ranker
	logger      zerolog.Logger
}

// NewEngine creates an engine with the given configuration and candidate
// provider.
func NewEngine(cfg Config, provider DataProvider, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate engine config: %w", err)
	}
	if provider == nil {
		return nil, errors.New("data provider is required")
	}

	e := &Engine{
		cfg:         cfg,
		provider:    provider,
		funnel:      NewFunnelModel(cfg.Funnel.WeekendBoost),
		transitions: NewTransitionModel(cfg.Transition.MinObservations),
		assignments: NewAssignmentStore(),
		ranker:      NewRanker(cfg.Ranker),
		logger:      logger.With().Str("component", "engine").Logger(),
	}
	e.clusters.Store(DefaultClusterModel(cfg.Cluster.MinConfidence))

	e.learner = NewLearner(
		cfg.Learner,
		e.assignments,
		e.ClusterModel,
		e.funnel,
		e.transitions,
		provider.MaxPrice,
		logger,
	)

	return e, nil
}

// ClusterModel returns the current cluster model.
func (e *Engine) ClusterModel() *ClusterModel {
	return e.clusters.Load()
}

// Funnel returns the funnel model.
func (e *Engine) Funnel() *FunnelModel {
	return e.funnel
}

// Transitions returns the category transition model.
func (e *Engine) Transitions() *TransitionModel {
	return e.transitions
}

// Assignments returns the user assignment store.
func (e *Engine) Assignments() *AssignmentStore {
	return e.assignments
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg.Clone()
}

// Recommend ranks candidate products for a user by expected value.
//
// Users without purchase history, or whose features cannot be classified,
// degrade to the UNKNOWN cluster and receive a popularity-plus-cold-start
// ordering rather than an error. An empty candidate set yields an empty
// response.
func (e *Engine) Recommend(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	if req.UserID == "" {
		return Response{}, errors.New("user id is required")
	}

	k := req.K
	if k <= 0 {
		k = e.cfg.Limits.DefaultK
	}
	if k > e.cfg.Limits.MaxK {
		k = e.cfg.Limits.MaxK
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Limits.RequestTimeout)
	defer cancel()

	state, err := e.resolveUser(ctx, req.UserID)
	if err != nil {
		return Response{}, fmt.Errorf("resolve user %s: %w", req.UserID, err)
	}

	rctx := e.requestContext(req.Context, state)

	candidates, err := e.provider.Candidates(ctx, req.Category)
	if err != nil {
		return Response{}, fmt.Errorf("load candidates: %w", err)
	}

	maxPrice, err := e.provider.MaxPrice(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Catalog max price unavailable, price affinity disabled")
		maxPrice = 0
	}

	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	scored := e.ranker.Rank(candidates, RankInput{
		Assignment:          state.Assignment,
		Hour:                rctx.TimeOfDay,
		DayOfWeek:           rctx.DayOfWeek,
		LastCategory:        rctx.LastCategory,
		PurchasedCategories: state.Categories,
		MaxPrice:            maxPrice,
	}, e.funnel, e.transitions)

	if len(scored) > k {
		scored = scored[:k]
	}

	degraded := state.Assignment.Cluster == ClusterUnknown
	latency := time.Since(start)

	metrics.RecordRecommendation(state.Assignment.Cluster.String(), degraded, latency)

	return Response{
		Items:           scored,
		TotalCandidates: len(candidates),
		Metadata: ResponseMetadata{
			RequestID:    req.RequestID,
			UserID:       req.UserID,
			Cluster:      state.Assignment.Cluster.String(),
			Confidence:   state.Assignment.Confidence,
			Degraded:     degraded,
			ModelVersion: e.ClusterModel().Version(),
			LatencyMS:    latency.Milliseconds(),
			Timestamp:    time.Now(),
		},
	}, nil
}

// requestContext fills in missing context fields from the clock and the
// user's state.
func (e *Engine) requestContext(rc *RequestContext, state *UserState) RequestContext {
	now := time.Now()
	out := RequestContext{
		TimeOfDay: now.Hour(),
		DayOfWeek: int(now.Weekday()),
	}
	if rc != nil {
		out = *rc
		if out.TimeOfDay < 0 || out.TimeOfDay > 23 {
			out.TimeOfDay = now.Hour()
		}
		if out.DayOfWeek < 0 || out.DayOfWeek > 6 {
			out.DayOfWeek = int(now.Weekday())
		}
	}
	if out.LastCategory == "" {
		out.LastCategory = state.LastCategory
	}
	return out
}

// resolveUser returns the user's state, bootstrapping it from purchase
// history on first sight. The bootstrap classifies the user and caches
// the assignment so subsequent requests skip the history fetch.
func (e *Engine) resolveUser(ctx context.Context, userID string) (*UserState, error) {
	if state, ok := e.assignments.Get(userID); ok {
		return state, nil
	}

	history, err := e.provider.History(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	maxPrice, err := e.provider.MaxPrice(ctx)
	if err != nil {
		maxPrice = 0
	}

	now := time.Now()
	features := ExtractFeatures(history, maxPrice, now)
	cluster, confidence, err := e.ClusterModel().Classify(features, len(history) > 0)
	if err != nil {
		// Invalid features degrade to UNKNOWN rather than failing the request
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("Bootstrap classification failed")
		cluster, confidence = ClusterUnknown, 0
	}

	e.assignments.Update(userID, func(state *UserState) {
		if state.Purchases > 0 {
			// Lost the race with the learner; keep its state
			return
		}
		for _, p := range history {
			state.Purchases++
			state.TotalSpend += p.Price
			if p.Category != "" {
				state.Categories[p.Category] = struct{}{}
				state.LastCategory = p.Category
			}
			if p.ProductID != "" {
				state.Products[p.ProductID] = struct{}{}
			}
			if p.Timestamp.After(state.LastPurchase) {
				state.LastPurchase = p.Timestamp
			}
		}
		if state.Purchases > 0 {
			state.Aggregate.Observe(features)
		}
		state.Assignment.Cluster = cluster
		state.Assignment.Confidence = confidence
		state.Assignment.Features = features
		state.Assignment.UpdatedAt = now
	})

	state, _ := e.assignments.Get(userID)
	return state, nil
}

// ProcessFeedback folds one feedback event into the models.
// Duplicate events return nil after incrementing the dedup counter, so
// at-least-once delivery upstream stays idempotent here.
func (e *Engine) ProcessFeedback(ctx context.Context, ev Event) error {
	err := e.learner.Process(ctx, ev)
	switch {
	case err == nil:
		metrics.RecordFeedback(ev.Kind.String(), "ok")
		return nil
	case errors.Is(err, ErrDuplicateEvent):
		metrics.RecordFeedback(ev.Kind.String(), "duplicate")
		return nil
	case errors.Is(err, ErrInvalidEventKind):
		metrics.RecordFeedback("invalid", "rejected")
		return err
	default:
		metrics.RecordFeedback(ev.Kind.String(), "error")
		return err
	}
}

// AssignmentFor returns a user's current cluster assignment,
// bootstrapping from history if the user is unseen.
func (e *Engine) AssignmentFor(ctx context.Context, userID string) (Assignment, error) {
	if userID == "" {
		return Assignment{}, errors.New("user id is required")
	}
	state, err := e.resolveUser(ctx, userID)
	if err != nil {
		return Assignment{}, err
	}
	asg := state.Assignment
	asg.UserID = userID
	return asg, nil
}

// ReestimateClusters rebuilds the cluster model from the accumulated
// per-cluster feature aggregates and swaps it in atomically.
//
// Clusters with fewer than MinClusterSamples members keep their current
// parameters. In-flight classifications keep using the old model until
// the swap; the next event for each user picks up the new one.
func (e *Engine) ReestimateClusters(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	aggregates := e.assignments.AggregatesByCluster()

	next, err := e.ClusterModel().Reestimate(aggregates, e.cfg.Cluster.MinClusterSamples)
	if err != nil {
		return fmt.Errorf("reestimate clusters: %w", err)
	}

	e.clusters.Store(next)
	metrics.RecordReestimation(next.Version(), time.Since(start))

	for c, agg := range aggregates {
		e.logger.Debug().
			Str("cluster", c.String()).
			Int64("members", agg.Count).
			Interface("centroid", agg.MeanVector()).
			Msg("Cluster aggregate")
	}

	e.logger.Info().
		Int("version", next.Version()).
		Int("clusters", len(aggregates)).
		Int("users", e.assignments.Len()).
		Dur("took", time.Since(start)).
		Msg("Cluster model re-estimated")
	return nil
}

// DedupStats exposes the learner's dedup counters.
func (e *Engine) DedupStats() (hits, misses int64, size int) {
	return e.learner.DedupStats()
}

// SweepDedup evicts expired entries from the learner's dedup set.
func (e *Engine) SweepDedup() int {
	return e.learner.SweepDedup()
}
