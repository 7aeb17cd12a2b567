// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import (
	"fmt"
	"math"
	"time"
)

// Feature indexes into FeatureVector component arrays.
const (
	// FeaturePriceTier is the normalized average purchase price.
	FeaturePriceTier = iota
	// FeatureFrequency is the normalized purchase frequency.
	FeatureFrequency
	// FeatureDiversity is the category diversity ratio.
	FeatureDiversity
	// FeatureRecency is the recency of the last purchase.
	FeatureRecency

	// NumFeatures is the feature vector dimensionality.
	NumFeatures
)

// featureNames maps feature indexes to wire names.
var featureNames = [NumFeatures]string{
	"price_tier",
	"frequency",
	"diversity",
	"recency",
}

// FeatureName returns the wire name for a feature index.
func FeatureName(i int) string {
	if i < 0 || i >= NumFeatures {
		return "unknown"
	}
	return featureNames[i]
}

// FeatureVector summarizes a user's purchase behavior.
// All components are normalized to [0, 1].
type FeatureVector struct {
	// PriceTier is the average purchase price relative to the catalog maximum.
	PriceTier float64 `json:"price_tier"`

	// Frequency is total purchases capped at 10, scaled to [0, 1].
	Frequency float64 `json:"frequency"`

	// Diversity is distinct categories over distinct products purchased.
	Diversity float64 `json:"diversity"`

	// Recency decays from 1 toward 0 with days since the last purchase.
	Recency float64 `json:"recency"`
}

// Components returns the vector as an array indexed by the Feature constants.
func (v FeatureVector) Components() [NumFeatures]float64 {
	return [NumFeatures]float64{v.PriceTier, v.Frequency, v.Diversity, v.Recency}
}

// Validate checks every component for NaN, Inf, and range violations.
func (v FeatureVector) Validate() error {
	for i, c := range v.Components() {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidFeatureVector, FeatureName(i))
		}
		if c < 0 || c > 1 {
			return fmt.Errorf("%w: %s=%.4f outside [0,1]", ErrInvalidFeatureVector, FeatureName(i), c)
		}
	}
	return nil
}

// IsZero reports whether all components are exactly zero.
func (v FeatureVector) IsZero() bool {
	return v == FeatureVector{}
}

// frequencyCap is the purchase count at which frequency saturates to 1.
const frequencyCap = 10

// recencyWindowDays is the window over which recency decays to zero.
const recencyWindowDays = 30

// ExtractFeatures computes a feature vector from a purchase history.
// maxPrice normalizes the price tier; a non-positive maxPrice yields
// price tier 0. An empty history returns the zero vector.
func ExtractFeatures(history []Purchase, maxPrice float64, now time.Time) FeatureVector {
	if len(history) == 0 {
		return FeatureVector{}
	}

	var totalPrice float64
	categories := make(map[string]struct{})
	products := make(map[string]struct{})
	var last time.Time

	for _, p := range history {
		totalPrice += p.Price
		if p.Category != "" {
			categories[p.Category] = struct{}{}
		}
		products[p.ProductID] = struct{}{}
		if p.Timestamp.After(last) {
			last = p.Timestamp
		}
	}

	avgPrice := totalPrice / float64(len(history))

	var priceTier float64
	if maxPrice > 0 {
		priceTier = clamp01(avgPrice / maxPrice)
	}

	frequency := clamp01(float64(len(history)) / frequencyCap)

	denom := len(products)
	if denom < 1 {
		denom = 1
	}
	diversity := clamp01(float64(len(categories)) / float64(denom))

	var recency float64
	if !last.IsZero() {
		days := now.Sub(last).Hours() / 24
		if days < 0 {
			days = 0
		}
		recency = clamp01(1 - days/recencyWindowDays)
	}

	return FeatureVector{
		PriceTier: priceTier,
		Frequency: frequency,
		Diversity: diversity,
		Recency:   recency,
	}
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// FeatureAggregate accumulates per-feature mean and variance using
// Welford's incremental algorithm. Numerically stable for long streams.
type FeatureAggregate struct {
	// Count is the number of observed vectors.
	Count int64 `json:"count"`

	// Mean is the running mean per feature.
	Mean [NumFeatures]float64 `json:"mean"`

	// M2 is the running sum of squared deviations per feature.
	M2 [NumFeatures]float64 `json:"m2"`
}

// Observe folds one feature vector into the aggregate.
func (a *FeatureAggregate) Observe(v FeatureVector) {
	a.Count++
	for i, c := range v.Components() {
		delta := c - a.Mean[i]
		a.Mean[i] += delta / float64(a.Count)
		a.M2[i] += delta * (c - a.Mean[i])
	}
}

// Variance returns the population variance of feature i.
// Zero until at least two observations exist.
func (a *FeatureAggregate) Variance(i int) float64 {
	if a.Count < 2 {
		return 0
	}
	return a.M2[i] / float64(a.Count)
}

// StdDev returns the population standard deviation of feature i.
func (a *FeatureAggregate) StdDev(i int) float64 {
	return math.Sqrt(a.Variance(i))
}

// MeanVector returns the running mean as a feature vector.
func (a *FeatureAggregate) MeanVector() FeatureVector {
	return FeatureVector{
		PriceTier: a.Mean[FeaturePriceTier],
		Frequency: a.Mean[FeatureFrequency],
		Diversity: a.Mean[FeatureDiversity],
		Recency:   a.Mean[FeatureRecency],
	}
}

// Merge folds another aggregate into this one (Chan et al. parallel form).
func (a *FeatureAggregate) Merge(b FeatureAggregate) {
	if b.Count == 0 {
		return
	}
	if a.Count == 0 {
		*a = b
		return
	}

	total := a.Count + b.Count
	for i := 0; i < NumFeatures; i++ {
		delta := b.Mean[i] - a.Mean[i]
		a.M2[i] += b.M2[i] + delta*delta*float64(a.Count)*float64(b.Count)/float64(total)
		a.Mean[i] += delta * float64(b.Count) / float64(total)
	}
	a.Count = total
}
