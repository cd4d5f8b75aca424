// Package ports defines the interfaces between the ranking core and its
// collaborators: the snippet pool, the durable comparison log, the
// comparator oracle, and observability. These boundaries keep the core
// testable and free of infrastructure concerns.
package ports

import (
	"context"
	"time"

	"github.com/seizurelab/eegrank/internal/domain"
)

// SnippetStore provides access to the snippet pool. The core treats
// snippet IDs as opaque stable keys and never inspects payloads.
type SnippetStore interface {
	// ListSnippets returns lightweight summaries for every snippet in
	// the pool, without waveform payloads.
	ListSnippets(ctx context.Context) ([]domain.SnippetSummary, error)

	// GetSnippet returns the full snippet for the given ID.
	// It returns domain.ErrSnippetNotFound for unknown IDs.
	GetSnippet(ctx context.Context, id string) (domain.Snippet, error)
}

// ComparisonLog is the durable store for resolved judgments. Writes
// from the ranking path are fire-and-forget: a failure is reported but
// must never block or desynchronize an in-memory sort run.
type ComparisonLog interface {
	// RecordComparison appends one resolved pairwise judgment.
	RecordComparison(ctx context.Context, c domain.Comparison) error

	// RecordRating appends one absolute 1-10 rating.
	RecordRating(ctx context.Context, r domain.Rating) error

	// RatedSnippetIDs returns the distinct snippet IDs the rater has
	// rated on the absolute scale.
	RatedSnippetIDs(ctx context.Context, rater string) ([]string, error)

	// ComparisonCount returns how many comparisons the rater has
	// submitted in total, across all sessions.
	ComparisonCount(ctx context.Context, rater string) (int, error)
}

// Oracle is the external decision source for pairwise comparisons:
// given two snippets it eventually produces a three-way verdict. The
// human path never goes through this interface - the session controller
// exposes pending pairs to the UI instead - but automated raters
// (benchmarks, LLM judges) implement it.
type Oracle interface {
	Compare(ctx context.Context, left, right domain.Snippet) (domain.Verdict, error)
}

// MetricsCollector records operational metrics for the ranking service.
// Implementations integrate with Prometheus or remain no-ops in tests.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)
}

// NopMetrics is a MetricsCollector that discards everything. It is the
// default when no collector is configured.
type NopMetrics struct{}

var _ MetricsCollector = NopMetrics{}

func (NopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (NopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (NopMetrics) RecordGauge(string, float64, map[string]string)         {}
