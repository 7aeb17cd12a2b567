// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

// Package metrics provides Prometheus instrumentation for the
// recommendation engine, feedback pipeline, and HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation Metrics
	RecommendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"cluster", "degraded"},
	)

	RecommendLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_latency_seconds",
			Help:    "Recommendation ranking latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	// Feedback Pipeline Metrics
	FeedbackEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_events_total",
			Help: "Total number of feedback events by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	FeedbackQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedback_queue_depth",
			Help: "Feedback events published but not yet processed",
		},
	)

	FeedbackPoisoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedback_poisoned_total",
			Help: "Feedback events routed to the poison queue after retries",
		},
	)

	// Cluster Model Metrics
	ClusterModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cluster_model_version",
			Help: "Version of the active cluster model",
		},
	)

	ClusterReestimations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cluster_reestimations_total",
			Help: "Total number of batch cluster re-estimation runs",
		},
	)

	ClusterReestimationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cluster_reestimation_duration_seconds",
			Help:    "Duration of batch cluster re-estimation runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Model Persistence Metrics
	ModelSnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_snapshots_total",
			Help: "Total number of model snapshot save attempts",
		},
		[]string{"status"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Event Log Metrics
	EventLogWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlog_writes_total",
			Help: "Total number of event log append attempts",
		},
		[]string{"status"},
	)
)

// RecordRecommendation records one served recommendation request.
func RecordRecommendation(cluster string, degraded bool, duration time.Duration) {
	RecommendRequestsTotal.WithLabelValues(cluster, strconv.FormatBool(degraded)).Inc()
	RecommendLatency.Observe(duration.Seconds())
}

// RecordFeedback records one processed feedback event.
// status is one of ok, duplicate, rejected, error.
func RecordFeedback(kind, status string) {
	FeedbackEventsTotal.WithLabelValues(kind, status).Inc()
}

// RecordReestimation records a completed cluster re-estimation run.
func RecordReestimation(version int, duration time.Duration) {
	ClusterReestimations.Inc()
	ClusterReestimationDuration.Observe(duration.Seconds())
	ClusterModelVersion.Set(float64(version))
}

// RecordModelSnapshot records a model snapshot save attempt.
func RecordModelSnapshot(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ModelSnapshotsTotal.WithLabelValues(status).Inc()
}

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordEventLogWrite records an event log append attempt.
func RecordEventLogWrite(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	EventLogWrites.WithLabelValues(status).Inc()
}
