// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package recommend

import "errors"

// Sentinel errors for the recommendation engine.
var (
	// ErrInvalidFeatureVector indicates a feature vector with NaN, Inf,
	// or out-of-range components.
	ErrInvalidFeatureVector = errors.New("invalid feature vector")

	// ErrUnknownCluster indicates an operation referenced a cluster the
	// model has no parameters for.
	ErrUnknownCluster = errors.New("unknown cluster")

	// ErrInvalidEventKind indicates a feedback event outside the
	// impression/click/purchase set.
	ErrInvalidEventKind = errors.New("invalid event kind")

	// ErrInsufficientSamples indicates a model has too few observations
	// to produce a meaningful estimate. Callers should degrade, not fail.
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrDuplicateEvent indicates a feedback event whose ID was already
	// processed. Duplicates are dropped to keep learning idempotent.
	ErrDuplicateEvent = errors.New("duplicate event")
)
