// Package metrics provides Prometheus metrics for the intelligence engine
// (RED for the HTTP surface plus per-component counters). Scrapeable at
// /metrics; dashboards and alerts can rely on these names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adlytics"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// DetectionRunsTotal counts anomaly detection runs per metric outcome.
	DetectionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_runs_total",
			Help:      "Total number of per-metric anomaly detection runs.",
		},
		[]string{"status"}, // completed, skipped, failed
	)

	// AnomaliesDetectedTotal counts detected anomalies by severity.
	AnomaliesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_detected_total",
			Help:      "Total number of anomalies recorded, by severity.",
		},
		[]string{"severity"},
	)

	// TrendAnalysesTotal counts completed trend analyses by direction.
	TrendAnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trend_analyses_total",
			Help:      "Total number of trend analyses recorded, by direction.",
		},
		[]string{"direction"},
	)

	// TrainingDurationSeconds is model training latency by algorithm.
	TrainingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Model training duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"algorithm"},
	)

	// TrainingRunsTotal counts training runs by algorithm and outcome.
	TrainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Total number of model training runs.",
		},
		[]string{"algorithm", "status"},
	)

	// ForecastsGeneratedTotal counts persisted forecast rows.
	ForecastsGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_generated_total",
			Help:      "Total number of forecast rows generated.",
		},
	)

	// RecommendationsGeneratedTotal counts synthesized recommendations by source.
	RecommendationsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_generated_total",
			Help:      "Total number of recommendations synthesized, by source.",
		},
		[]string{"source"},
	)

	// DBQueryDurationSeconds is repository query latency by operation.
	DBQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2.5, 10),
		},
		[]string{"operation"},
	)
)
