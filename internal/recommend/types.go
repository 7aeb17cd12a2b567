// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import (
	"context"
	"time"
)

// Cluster identifies a behavioral user segment.
type Cluster int

const (
	// ClusterUnknown is the sentinel for users that cannot be classified yet.
	ClusterUnknown Cluster = iota
	// ClusterPriceSensitive buys cheap items often across few categories.
	ClusterPriceSensitive
	// ClusterConvenienceFocused buys mid-priced items at moderate frequency.
	ClusterConvenienceFocused
	// ClusterQualitySeeker buys expensive items rarely.
	ClusterQualitySeeker
	// ClusterBrandLoyal buys repeatedly within a narrow category set.
	ClusterBrandLoyal
	// ClusterImpulseBuyer buys frequently across many categories.
	ClusterImpulseBuyer
)

// KnownClusters lists the classifiable clusters in declaration order.
// Classification ties resolve in favor of the earlier entry.
var KnownClusters = []Cluster{
	ClusterPriceSensitive,
	ClusterConvenienceFocused,
	ClusterQualitySeeker,
	ClusterBrandLoyal,
	ClusterImpulseBuyer,
}

// String returns a human-readable name for the cluster.
func (c Cluster) String() string {
	switch c {
	case ClusterPriceSensitive:
		return "price_sensitive"
	case ClusterConvenienceFocused:
		return "convenience_focused"
	case ClusterQualitySeeker:
		return "quality_seeker"
	case ClusterBrandLoyal:
		return "brand_loyal"
	case ClusterImpulseBuyer:
		return "impulse_buyer"
	case ClusterUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// Stage identifies a step in the purchase funnel.
type Stage int

const (
	// StageExposure is the entry stage (pass rate fixed at 1.0 by convention).
	StageExposure Stage = iota
	// StageAwareness is the second funnel stage.
	StageAwareness
	// StageInterest is the third funnel stage.
	StageInterest
	// StageDesire is the fourth funnel stage.
	StageDesire
	// StageAction is the final, converting stage.
	StageAction
)

// NumStages is the number of funnel stages.
const NumStages = 5

// String returns a human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageExposure:
		return "exposure"
	case StageAwareness:
		return "awareness"
	case StageInterest:
		return "interest"
	case StageDesire:
		return "desire"
	case StageAction:
		return "action"
	default:
		return "unknown"
	}
}

// StageRates holds per-stage pass rates, indexed by Stage.
type StageRates [NumStages]float64

// EventKind classifies feedback events from the storefront.
type EventKind int

const (
	// EventImpression indicates a product was shown to the user.
	EventImpression EventKind = iota
	// EventClick indicates the user opened a product page.
	EventClick
	// EventPurchase indicates a completed purchase.
	EventPurchase
)

// String returns a human-readable event kind.
func (k EventKind) String() string {
	switch k {
	case EventImpression:
		return "impression"
	case EventClick:
		return "click"
	case EventPurchase:
		return "purchase"
	default:
		return "unknown"
	}
}

// ParseEventKind parses a wire-format event kind.
// Returns ErrInvalidEventKind for anything outside the known set.
func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "impression":
		return EventImpression, nil
	case "click":
		return EventClick, nil
	case "purchase":
		return EventPurchase, nil
	default:
		return 0, ErrInvalidEventKind
	}
}

// Event is a single feedback event flowing into the learner.
type Event struct {
	// ID uniquely identifies the event; duplicates are dropped.
	ID string `json:"id"`

	// Kind is the event classification.
	Kind EventKind `json:"kind"`

	// UserID is the acting user.
	UserID string `json:"user_id"`

	// ProductID is the product the event refers to.
	ProductID string `json:"product_id"`

	// Category is the product's category identifier.
	Category string `json:"category,omitempty"`

	// Price is the product price in minor currency units.
	Price float64 `json:"price,omitempty"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Product is a catalog item eligible for recommendation.
type Product struct {
	// ID is the unique product identifier.
	ID string `json:"id"`

	// Category is the product's category identifier.
	Category string `json:"category"`

	// Price is the list price in minor currency units.
	Price float64 `json:"price"`

	// SalesCount is the lifetime number of completed sales.
	SalesCount int `json:"sales_count"`
}

// Purchase is a single completed purchase in a user's history.
type Purchase struct {
	// ProductID is the purchased product.
	ProductID string `json:"product_id"`

	// Category is the product's category at purchase time.
	Category string `json:"category"`

	// Price is the paid price in minor currency units.
	Price float64 `json:"price"`

	// Timestamp is when the purchase completed.
	Timestamp time.Time `json:"timestamp"`
}

// ScoredProduct is a product with its expected-value score.
type ScoredProduct struct {
	// Product is the catalog item.
	Product Product `json:"product"`

	// Score is the expected value in minor currency units.
	// Higher is better; not bounded to [0, 1].
	Score float64 `json:"score"`

	// Probability is the estimated purchase probability before the price term.
	Probability float64 `json:"probability"`

	// Reason provides an interpretable explanation for the ranking.
	Reason string `json:"reason,omitempty"`
}

// Assignment is a user's current cluster assignment.
type Assignment struct {
	// UserID is the assigned user.
	UserID string `json:"user_id"`

	// Cluster is the assigned segment (ClusterUnknown when unclassifiable).
	Cluster Cluster `json:"cluster"`

	// Confidence is the normalized posterior of the winning cluster (0-1).
	Confidence float64 `json:"confidence"`

	// Features is the feature vector the assignment was computed from.
	Features FeatureVector `json:"features"`

	// UpdatedAt is when the assignment was last recomputed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Request is a recommendation request.
type Request struct {
	// UserID is the user to generate recommendations for.
	UserID string `json:"user_id"`

	// K is the number of recommendations to return.
	// Defaults to Config.Limits.DefaultK if zero.
	K int `json:"k,omitempty"`

	// Category optionally restricts candidates to a single category.
	Category string `json:"category,omitempty"`

	// Context provides time-of-day and session information.
	Context *RequestContext `json:"context,omitempty"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// RequestContext provides contextual information for ranking.
type RequestContext struct {
	// TimeOfDay is the hour (0-23) used for the funnel time multiplier.
	TimeOfDay int `json:"time_of_day"`

	// DayOfWeek is the day (0=Sunday, 6=Saturday).
	DayOfWeek int `json:"day_of_week"`

	// LastCategory is the category of the user's most recent purchase.
	// Drives the category transition bias; empty means no signal.
	LastCategory string `json:"last_category,omitempty"`
}

// Response is a recommendation response.
type Response struct {
	// Items is the ordered list of scored products.
	Items []ScoredProduct `json:"items"`

	// TotalCandidates is the number of candidates considered.
	TotalCandidates int `json:"total_candidates"`

	// Metadata contains timing and diagnostic information.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata contains timing and diagnostic information.
type ResponseMetadata struct {
	// RequestID is the unique request identifier.
	RequestID string `json:"request_id"`

	// UserID is the user the recommendations are for.
	UserID string `json:"user_id"`

	// Cluster is the segment the ranking was computed for.
	Cluster string `json:"cluster"`

	// Confidence is the cluster assignment confidence.
	Confidence float64 `json:"confidence"`

	// Degraded indicates the popularity-only fallback path was used.
	Degraded bool `json:"degraded"`

	// ModelVersion is the cluster model version used.
	ModelVersion int `json:"model_version"`

	// LatencyMS is the total ranking latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`
}

// DataProvider supplies catalog and history data to the engine.
// Implementations must be safe for concurrent use.
type DataProvider interface {
	// Candidates returns products eligible for recommendation.
	// An empty category means the whole catalog.
	Candidates(ctx context.Context, category string) ([]Product, error)

	// History returns a user's purchases in chronological order.
	// A missing user returns an empty slice, not an error.
	History(ctx context.Context, userID string) ([]Purchase, error)

	// MaxPrice returns the highest list price in the catalog,
	// used to normalize the price tier feature.
	MaxPrice(ctx context.Context) (float64, error)
}
