// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import (
	"errors"
	"fmt"
	"sort"
)

// RankerConfig holds expected-value ranker tunables.
type RankerConfig struct {
	// ColdStartN is the sales count at which the cold start prior saturates.
	ColdStartN int `json:"cold_start_n" koanf:"cold_start_n"`

	// Epsilon is the floor applied to the transition bias so an unlikely
	// category transition dampens but never zeroes a score.
	Epsilon float64 `json:"epsilon" koanf:"epsilon"`

	// CategoryBoost multiplies the probability for candidates in a
	// category the user has purchased from before.
	CategoryBoost float64 `json:"category_boost" koanf:"category_boost"`

	// BrandLoyalBoost replaces CategoryBoost for brand-loyal users.
	BrandLoyalBoost float64 `json:"brand_loyal_boost" koanf:"brand_loyal_boost"`

	// PriceAffinity enables per-cluster price preference multipliers.
	PriceAffinity bool `json:"price_affinity" koanf:"price_affinity"`
}

// DefaultRankerConfig returns production defaults for the ranker.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		ColdStartN:      100,
		Epsilon:         1e-6,
		CategoryBoost:   1.2,
		BrandLoyalBoost: 1.5,
		PriceAffinity:   true,
	}
}

// Ranker orders candidate products by expected value:
// purchase probability times price.
//
// The probability combines a popularity-based cold start prior, the
// cluster's funnel conversion at the request hour, a category affinity
// boost, and a price affinity multiplier. The category transition bias
// is applied as a separate multiplicative term after the probability is
// clamped, so the final score is probability * bias * price.
type Ranker struct {
	cfg RankerConfig
}

// NewRanker creates a ranker with the given configuration.
func NewRanker(cfg RankerConfig) *Ranker {
	if cfg.ColdStartN <= 0 {
		cfg.ColdStartN = DefaultRankerConfig().ColdStartN
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultRankerConfig().Epsilon
	}
	return &Ranker{cfg: cfg}
}

// RankInput carries the per-request state the ranker scores against.
type RankInput struct {
	// Assignment is the user's cluster assignment (ClusterUnknown degrades
	// to the popularity-plus-cold-start ordering).
	Assignment Assignment

	// Hour is the request hour (0-23).
	Hour int

	// DayOfWeek is the request day (0=Sunday, 6=Saturday).
	DayOfWeek int

	// LastCategory is the user's most recent purchase category; empty
	// means no transition signal.
	LastCategory string

	// PurchasedCategories is the set of categories the user has bought from.
	PurchasedCategories map[string]struct{}

	// MaxPrice normalizes prices for the affinity multiplier.
	MaxPrice float64
}

// coldStartPrior returns the popularity-derived base probability.
// New products start at 0.1 and earn up to 0.1 more as sales accumulate.
func (r *Ranker) coldStartPrior(salesCount int) float64 {
	n := r.cfg.ColdStartN
	sales := salesCount
	if sales < 0 {
		sales = 0
	}
	if sales > n {
		sales = n
	}
	return 0.1 + float64(sales)/float64(n)*0.1
}

// priceAffinity returns the per-cluster price preference multiplier.
func (r *Ranker) priceAffinity(c Cluster, price, maxPrice float64) float64 {
	if !r.cfg.PriceAffinity || maxPrice <= 0 {
		return 1.0
	}
	norm := clamp01(price / maxPrice)
	switch c {
	case ClusterPriceSensitive:
		if affinity := 1 - norm; affinity > 0.5 {
			return affinity
		}
		return 0.5
	case ClusterQualitySeeker:
		return 0.5 + 0.5*norm
	default:
		return 1.0
	}
}

// Rank scores and orders candidates by descending expected value.
// Ties break on higher sales count, then lexicographic product ID, so the
// ordering is fully deterministic. The input slice is not modified.
func (r *Ranker) Rank(candidates []Product, in RankInput, funnel *FunnelModel, transitions *TransitionModel) []ScoredProduct {
	if len(candidates) == 0 {
		return []ScoredProduct{}
	}

	conversion := funnel.Conversion(in.Assignment.Cluster, in.Hour, in.DayOfWeek)

	scored := make([]ScoredProduct, 0, len(candidates))
	for _, p := range candidates {
		probability := r.coldStartPrior(p.SalesCount) * conversion

		boosted := false
		if _, ok := in.PurchasedCategories[p.Category]; ok && p.Category != "" {
			boost := r.cfg.CategoryBoost
			if in.Assignment.Cluster == ClusterBrandLoyal {
				boost = r.cfg.BrandLoyalBoost
			}
			probability *= boost
			boosted = true
		}

		probability *= r.priceAffinity(in.Assignment.Cluster, p.Price, in.MaxPrice)
		probability = clamp01(probability)

		// Insufficient samples leaves the bias neutral rather than failing
		bias := 1.0
		if in.LastCategory != "" {
			if prob, err := transitions.Probability(in.LastCategory, p.Category); err == nil || errors.Is(err, ErrInsufficientSamples) {
				bias = prob
			}
			if bias < r.cfg.Epsilon {
				bias = r.cfg.Epsilon
			}
		}

		scored = append(scored, ScoredProduct{
			Product:     p,
			Score:       probability * bias * p.Price,
			Probability: probability,
			Reason:      rankReason(in.Assignment.Cluster, boosted, in.LastCategory, p.Category),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Product.SalesCount != b.Product.SalesCount {
			return a.Product.SalesCount > b.Product.SalesCount
		}
		return a.Product.ID < b.Product.ID
	})

	return scored
}

// rankReason builds a short human-readable explanation for a ranking.
func rankReason(c Cluster, categoryBoosted bool, lastCategory, category string) string {
	switch {
	case c == ClusterUnknown:
		return "popular with shoppers like you"
	case categoryBoosted:
		return fmt.Sprintf("matches your %s purchases", category)
	case lastCategory != "" && lastCategory != category:
		return fmt.Sprintf("often bought after %s", lastCategory)
	default:
		return fmt.Sprintf("picked for %s shoppers", c)
	}
}
