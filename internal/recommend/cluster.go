// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import (
	"fmt"
	"math"
)

// GaussianParams are the parameters of a single per-feature Gaussian.
type GaussianParams struct {
	// Mean is the distribution mean.
	Mean float64 `json:"mean"`

	// StdDev is the distribution standard deviation.
	// Zero is allowed and triggers the degenerate point-mass rule.
	StdDev float64 `json:"std_dev"`
}

// ClusterParams holds one cluster's prior and per-feature Gaussians.
type ClusterParams struct {
	// Prior is the cluster's prior probability.
	Prior float64 `json:"prior"`

	// Features holds one Gaussian per feature, indexed by the Feature constants.
	Features [NumFeatures]GaussianParams `json:"features"`
}

// ClusterModel classifies feature vectors into behavioral clusters using
// a naive-Bayes model with independent per-feature Gaussians.
//
// A ClusterModel is immutable after construction. Re-estimation builds a
// new model and the engine swaps the pointer atomically, so readers never
// observe a partially updated model.
type ClusterModel struct {
	params        map[Cluster]ClusterParams
	minConfidence float64
	version       int
}

// NewClusterModel builds a model from explicit parameters.
// Returns an error if any known cluster is missing parameters or a prior
// is negative.
func NewClusterModel(params map[Cluster]ClusterParams, minConfidence float64, version int) (*ClusterModel, error) {
	for _, c := range KnownClusters {
		p, ok := params[c]
		if !ok {
			return nil, fmt.Errorf("%w: no parameters for %s", ErrUnknownCluster, c)
		}
		if p.Prior < 0 {
			return nil, fmt.Errorf("cluster %s: negative prior %.4f", c, p.Prior)
		}
		for i, g := range p.Features {
			if g.StdDev < 0 {
				return nil, fmt.Errorf("cluster %s: negative std dev for %s", c, FeatureName(i))
			}
		}
	}

	// Copy to keep the model immutable
	copied := make(map[Cluster]ClusterParams, len(params))
	for c, p := range params {
		copied[c] = p
	}

	return &ClusterModel{
		params:        copied,
		minConfidence: minConfidence,
		version:       version,
	}, nil
}

// DefaultClusterModel returns the seed model used before any purchase data
// has accumulated. The recency feature starts with wide neutral Gaussians
// and tightens through re-estimation.
func DefaultClusterModel(minConfidence float64) *ClusterModel {
	neutralRecency := GaussianParams{Mean: 0.5, StdDev: 0.35}

	params := map[Cluster]ClusterParams{
		ClusterPriceSensitive: {
			Prior: 0.2,
			Features: [NumFeatures]GaussianParams{
				FeaturePriceTier: {Mean: 0.2, StdDev: 0.15},
				FeatureFrequency: {Mean: 0.7, StdDev: 0.2},
				FeatureDiversity: {Mean: 0.3, StdDev: 0.15},
				FeatureRecency:   neutralRecency,
			},
		},
		ClusterConvenienceFocused: {
			Prior: 0.2,
			Features: [NumFeatures]GaussianParams{
				FeaturePriceTier: {Mean: 0.5, StdDev: 0.2},
				FeatureFrequency: {Mean: 0.5, StdDev: 0.2},
				FeatureDiversity: {Mean: 0.6, StdDev: 0.2},
				FeatureRecency:   neutralRecency,
			},
		},
		ClusterQualitySeeker: {
			Prior: 0.2,
			Features: [NumFeatures]GaussianParams{
				FeaturePriceTier: {Mean: 0.8, StdDev: 0.15},
				FeatureFrequency: {Mean: 0.3, StdDev: 0.15},
				FeatureDiversity: {Mean: 0.4, StdDev: 0.2},
				FeatureRecency:   neutralRecency,
			},
		},
		ClusterBrandLoyal: {
			Prior: 0.2,
			Features: [NumFeatures]GaussianParams{
				FeaturePriceTier: {Mean: 0.7, StdDev: 0.2},
				FeatureFrequency: {Mean: 0.6, StdDev: 0.15},
				FeatureDiversity: {Mean: 0.2, StdDev: 0.1},
				FeatureRecency:   neutralRecency,
			},
		},
		ClusterImpulseBuyer: {
			Prior: 0.2,
			Features: [NumFeatures]GaussianParams{
				FeaturePriceTier: {Mean: 0.4, StdDev: 0.25},
				FeatureFrequency: {Mean: 0.8, StdDev: 0.15},
				FeatureDiversity: {Mean: 0.8, StdDev: 0.15},
				FeatureRecency:   neutralRecency,
			},
		},
	}

	m, err := NewClusterModel(params, minConfidence, 1)
	if err != nil {
		// Seed parameters are compile-time constants; failure is a bug.
		panic(err)
	}
	return m
}

// Version returns the model version.
func (m *ClusterModel) Version() int {
	return m.version
}

// Params returns a copy of the parameters for a cluster.
func (m *ClusterModel) Params(c Cluster) (ClusterParams, bool) {
	p, ok := m.params[c]
	return p, ok
}

// ParamsSnapshot returns a copy of all cluster parameters.
func (m *ClusterModel) ParamsSnapshot() map[Cluster]ClusterParams {
	out := make(map[Cluster]ClusterParams, len(m.params))
	for c, p := range m.params {
		out[c] = p
	}
	return out
}

// gaussianPdf evaluates the normal density at x.
// A zero standard deviation degenerates to a point mass: density 1 at the
// mean, 0 everywhere else.
func gaussianPdf(x float64, g GaussianParams) float64 {
	if g.StdDev == 0 {
		if x == g.Mean {
			return 1
		}
		return 0
	}
	z := (x - g.Mean) / g.StdDev
	return math.Exp(-0.5*z*z) / (g.StdDev * math.Sqrt(2*math.Pi))
}

// Classify assigns a feature vector to a cluster.
//
// The posterior for each cluster is prior times the product of per-feature
// Gaussian densities, normalized over all clusters. The argmax wins; ties
// resolve in KnownClusters declaration order. The returned confidence is
// the winner's normalized posterior.
//
// Degradation rules:
//   - hasHistory false: ClusterUnknown, confidence 0
//   - invalid vector: ClusterUnknown, confidence 0, ErrInvalidFeatureVector
//   - all likelihoods zero: ClusterUnknown, confidence 0
//   - winner below the confidence floor: ClusterUnknown with the computed
//     confidence, so callers can still report how close the call was
func (m *ClusterModel) Classify(v FeatureVector, hasHistory bool) (Cluster, float64, error) {
	if !hasHistory {
		return ClusterUnknown, 0, nil
	}
	if err := v.Validate(); err != nil {
		return ClusterUnknown, 0, err
	}

	components := v.Components()
	posteriors := make([]float64, len(KnownClusters))
	var total float64

	for i, c := range KnownClusters {
		p := m.params[c]
		likelihood := p.Prior
		for f, g := range p.Features {
			likelihood *= gaussianPdf(components[f], g)
		}
		posteriors[i] = likelihood
		total += likelihood
	}

	if total == 0 {
		return ClusterUnknown, 0, nil
	}

	best := 0
	for i := 1; i < len(posteriors); i++ {
		// Strict inequality keeps the earlier cluster on exact ties
		if posteriors[i] > posteriors[best] {
			best = i
		}
	}

	confidence := posteriors[best] / total
	if m.minConfidence > 0 && confidence < m.minConfidence {
		return ClusterUnknown, confidence, nil
	}

	return KnownClusters[best], confidence, nil
}

// Reestimate builds a new model from per-cluster feature aggregates.
//
// Clusters with fewer than minSamples members keep their current
// parameters, so sparse segments never collapse to degenerate Gaussians.
// Priors are re-derived from member counts over all classified users;
// when no cluster qualifies the priors stay unchanged.
func (m *ClusterModel) Reestimate(aggregates map[Cluster]FeatureAggregate, minSamples int64) (*ClusterModel, error) {
	params := m.ParamsSnapshot()

	var totalMembers int64
	for _, c := range KnownClusters {
		if agg, ok := aggregates[c]; ok && agg.Count >= minSamples {
			totalMembers += agg.Count
		}
	}

	for _, c := range KnownClusters {
		agg, ok := aggregates[c]
		if !ok || agg.Count < minSamples {
			continue
		}

		p := params[c]
		for i := 0; i < NumFeatures; i++ {
			p.Features[i] = GaussianParams{
				Mean:   agg.Mean[i],
				StdDev: agg.StdDev(i),
			}
		}
		if totalMembers > 0 {
			p.Prior = float64(agg.Count) / float64(totalMembers)
		}
		params[c] = p
	}

	return NewClusterModel(params, m.minConfidence, m.version+1)
}
