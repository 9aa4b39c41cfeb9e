// Package metrics declares the Prometheus collectors shared by the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache metrics
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_cache_requests_total",
			Help: "Cache lookups by namespace and result (hit, miss, shared, refresh)",
		},
		[]string{"namespace", "result"},
	)

	CacheComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sleuth_cache_compute_duration_seconds",
			Help:    "Time spent computing values on cache miss",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"namespace"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_cache_errors_total",
			Help: "Backend errors by namespace and operation",
		},
		[]string{"namespace", "operation"},
	)

	// External call metrics
	ExternalCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_external_calls_total",
			Help: "Calls to external capabilities by capability and outcome",
		},
		[]string{"capability", "outcome"},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_retry_attempts_total",
			Help: "Retries issued after transient failures",
		},
		[]string{"operation"},
	)

	InflightCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sleuth_inflight_external_calls",
			Help: "External calls currently holding a slot of the global ceiling",
		},
	)

	// Pipeline metrics
	ExtractionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_extraction_outcomes_total",
			Help: "Extraction results by status and failure reason",
		},
		[]string{"status", "reason"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sleuth_stage_duration_seconds",
			Help:    "Stage execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_runs_completed_total",
			Help: "Research runs by terminal status",
		},
		[]string{"status"},
	)
)
