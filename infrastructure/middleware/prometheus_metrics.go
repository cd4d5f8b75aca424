// Package middleware provides cross-cutting concerns for the ranking
// service.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/seizurelab/eegrank/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks session lifecycle events, comparison throughput,
// and operation latency for the ranking service.
type PrometheusMetrics struct {
	comparisonsResolved *prometheus.CounterVec
	operationCounter    *prometheus.CounterVec
	operationLatency    *prometheus.HistogramVec
	sessionGauges       *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and
// registers all metrics in the global Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		comparisonsResolved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comparisons_resolved_total",
				Help: "Total number of pairwise comparisons resolved, by verdict.",
			},
			[]string{"verdict"},
		),
		operationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_operations_total",
				Help: "Total number of ranking service operations, by event.",
			},
			[]string{"operation"},
		),
		operationLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ranking_operation_duration_seconds",
				Help:    "Execution time of ranking service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		sessionGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ranking_session_state",
				Help: "Current session state values for the ranking service.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string, duration time.Duration, _ map[string]string,
) {
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters. Comparison resolutions are broken out by verdict;
// everything else is counted under its metric name.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	if metric == "comparisons_resolved_total" {
		verdict, ok := labels["verdict"]
		if !ok || verdict == "" {
			verdict = "unknown"
		}
		pm.comparisonsResolved.WithLabelValues(verdict).Add(value)
		return
	}
	pm.operationCounter.WithLabelValues(metric).Add(value)
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, _ map[string]string,
) {
	pm.sessionGauges.WithLabelValues(metric).Set(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
