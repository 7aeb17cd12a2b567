// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkim815/shoprank/internal/cache"
)

// LearnerConfig holds online learning tunables.
type LearnerConfig struct {
	// Alpha is the exponential smoothing rate for funnel adjustments.
	Alpha float64 `json:"alpha" koanf:"alpha"`

	// ClickAlphaFactor scales Alpha for click events, which are a weaker
	// signal than purchases.
	ClickAlphaFactor float64 `json:"click_alpha_factor" koanf:"click_alpha_factor"`

	// DecayThreshold is the number of consecutive impressions without a
	// click or purchase before the cluster's action rate decays.
	DecayThreshold int `json:"decay_threshold" koanf:"decay_threshold"`

	// DedupTTL is how long processed event IDs are remembered.
	DedupTTL time.Duration `json:"dedup_ttl" koanf:"dedup_ttl"`

	// DedupCapacity bounds the dedup set size.
	DedupCapacity int `json:"dedup_capacity" koanf:"dedup_capacity"`
}

// DefaultLearnerConfig returns production defaults for the learner.
func DefaultLearnerConfig() LearnerConfig {
	return LearnerConfig{
		Alpha:            0.05,
		ClickAlphaFactor: 0.5,
		DecayThreshold:   20,
		DedupTTL:         10 * time.Minute,
		DedupCapacity:    50000,
	}
}

// Learner folds feedback events into the engine's models.
//
// Processing is idempotent (duplicate event IDs are dropped inside the
// dedup TTL window) and serialized per user through the assignment
// store's lock stripes. Model reads elsewhere are never blocked: the
// funnel and transition models take their own short write locks and the
// cluster model is only swapped atomically by re-estimation.
type Learner struct {
	cfg         LearnerConfig
	assignments *AssignmentStore
	clusters    func() *ClusterModel
	funnel      *FunnelModel
	transitions *TransitionModel
	maxPrice    func(ctx context.Context) (float64, error)
	dedup       *cache.DedupSet
	logger      zerolog.Logger

	// streaks tracks consecutive non-converting impressions per cluster
	streakMu sync.Mutex
	streaks  map[Cluster]int
}

// NewLearner creates a learner bound to the engine's live models.
// clusters returns the current cluster model (the engine's atomic pointer
// load), maxPrice supplies the catalog price normalizer.
func NewLearner(
	cfg LearnerConfig,
	assignments *AssignmentStore,
	clusters func() *ClusterModel,
	funnel *FunnelModel,
	transitions *TransitionModel,
	maxPrice func(ctx context.Context) (float64, error),
	logger zerolog.Logger,
) *Learner {
	return &Learner{
		cfg:         cfg,
		assignments: assignments,
		clusters:    clusters,
		funnel:      funnel,
		transitions: transitions,
		maxPrice:    maxPrice,
		dedup:       cache.NewDedupSet(cfg.DedupCapacity, cfg.DedupTTL),
		logger:      logger.With().Str("component", "learner").Logger(),
		streaks:     make(map[Cluster]int),
	}
}

// Process applies a single feedback event.
//
// Returns ErrDuplicateEvent for an already-seen event ID and
// ErrInvalidEventKind for kinds outside the known set; both are safe to
// treat as non-fatal by callers.
func (l *Learner) Process(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventImpression, EventClick, EventPurchase:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidEventKind, ev.Kind)
	}
	if ev.UserID == "" {
		return errors.New("event has no user id")
	}

	// Seen records the ID immediately so a concurrent redelivery cannot
	// slip past the check; a processing failure forgets it again, keeping
	// the event retryable.
	if ev.ID != "" && l.dedup.Seen(ev.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.ID)
	}

	var err error
	switch ev.Kind {
	case EventPurchase:
		err = l.processPurchase(ctx, ev)
	case EventClick:
		err = l.processClick(ev)
	default:
		err = l.processImpression(ev)
	}
	if err != nil && ev.ID != "" {
		l.dedup.Forget(ev.ID)
	}
	return err
}

// processPurchase updates the user's behavior state, reassigns the
// cluster, records the category transition, and reinforces the funnel's
// action stage.
func (l *Learner) processPurchase(ctx context.Context, ev Event) error {
	maxPrice, err := l.maxPrice(ctx)
	if err != nil {
		// Price normalization degrades, learning still proceeds
		l.logger.Warn().Err(err).Msg("Catalog max price unavailable")
		maxPrice = 0
	}

	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	var cluster Cluster
	var previous Cluster

	l.assignments.Update(ev.UserID, func(state *UserState) {
		previous = state.Assignment.Cluster

		if state.LastCategory != "" && ev.Category != "" {
			l.transitions.RecordTransition(state.LastCategory, ev.Category)
		}

		state.Purchases++
		state.TotalSpend += ev.Price
		if ev.Category != "" {
			state.Categories[ev.Category] = struct{}{}
			state.LastCategory = ev.Category
		}
		if ev.ProductID != "" {
			state.Products[ev.ProductID] = struct{}{}
		}
		if now.After(state.LastPurchase) {
			state.LastPurchase = now
		}

		features := state.features(maxPrice, now)
		state.Aggregate.Observe(features)

		assigned, confidence, cerr := l.clusters().Classify(features, true)
		if cerr != nil {
			l.logger.Warn().Err(cerr).Str("user_id", ev.UserID).Msg("Classification failed")
			return
		}

		state.Assignment.Cluster = assigned
		state.Assignment.Confidence = confidence
		state.Assignment.Features = features
		state.Assignment.UpdatedAt = now
		cluster = assigned
	})

	if cluster != previous && previous != ClusterUnknown {
		l.logger.Debug().
			Str("user_id", ev.UserID).
			Str("from", previous.String()).
			Str("to", cluster.String()).
			Msg("Cluster reassigned")
	}

	l.resetStreak(cluster)

	if err := l.funnel.AdjustRate(cluster, StageAction, l.cfg.Alpha); err != nil {
		return fmt.Errorf("adjust action rate: %w", err)
	}
	return nil
}

// processClick reinforces the desire stage with a reduced alpha.
func (l *Learner) processClick(ev Event) error {
	cluster := l.clusterFor(ev.UserID)
	l.resetStreak(cluster)

	alpha := l.cfg.Alpha * l.cfg.ClickAlphaFactor
	if err := l.funnel.AdjustRate(cluster, StageDesire, alpha); err != nil {
		return fmt.Errorf("adjust desire rate: %w", err)
	}
	return nil
}

// processImpression counts a non-converting exposure; a long enough
// streak decays the cluster's action rate toward zero.
func (l *Learner) processImpression(ev Event) error {
	cluster := l.clusterFor(ev.UserID)

	l.streakMu.Lock()
	l.streaks[cluster]++
	decay := l.cfg.DecayThreshold > 0 && l.streaks[cluster] >= l.cfg.DecayThreshold
	if decay {
		l.streaks[cluster] = 0
	}
	l.streakMu.Unlock()

	if !decay {
		return nil
	}

	if err := l.funnel.DecayRate(cluster, StageAction, l.cfg.Alpha); err != nil {
		return fmt.Errorf("decay action rate: %w", err)
	}

	l.logger.Debug().
		Str("cluster", cluster.String()).
		Int("threshold", l.cfg.DecayThreshold).
		Msg("Action rate decayed after impression streak")
	return nil
}

// clusterFor resolves the user's current cluster, lazily creating an
// UNKNOWN assignment for first-seen users.
func (l *Learner) clusterFor(userID string) Cluster {
	var cluster Cluster
	l.assignments.Update(userID, func(state *UserState) {
		cluster = state.Assignment.Cluster
	})
	return cluster
}

// resetStreak clears the impression streak for a cluster.
func (l *Learner) resetStreak(c Cluster) {
	l.streakMu.Lock()
	l.streaks[c] = 0
	l.streakMu.Unlock()
}

// DedupStats exposes dedup counters for diagnostics.
func (l *Learner) DedupStats() (hits, misses int64, size int) {
	return l.dedup.Stats()
}

// SweepDedup evicts expired dedup entries and returns how many were
// dropped. Expiry is otherwise lazy, so a maintenance ticker calls this
// to bound memory during quiet periods.
func (l *Learner) SweepDedup() int {
	return l.dedup.Sweep()
}
