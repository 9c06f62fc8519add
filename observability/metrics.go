// Package observability holds the Prometheus metrics for the search pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "casecite"

var (
	// searchLatency measures end-to-end search latency.
	// Labels: outcome (exact, near_miss, fallback)
	searchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "latency_seconds",
		Help:      "End-to-end search latency in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 25, 40},
	}, []string{"outcome"})

	// searchesTotal counts searches by outcome.
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "requests_total",
		Help:      "Total searches by outcome",
	}, []string{"outcome"})

	// stopReasons counts scheduler runs by stop reason and blocked kind.
	stopReasons = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "stop_reasons_total",
		Help:      "Scheduler runs by stop reason",
	}, []string{"reason", "blocked_kind"})

	// attemptsTotal counts retrieval attempts by phase and status.
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "attempts_total",
		Help:      "Retrieval attempts by phase and status",
	}, []string{"phase", "status"})

	// attemptLatency measures retrieval attempt latency.
	attemptLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "attempt_latency_seconds",
		Help:      "Retrieval attempt latency in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
	}, []string{"phase"})

	// legFailures counts failed hybrid retrieval legs.
	// Labels: leg (lexical, embed, vector, rerank)
	legFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fusion",
		Name:      "leg_failures_total",
		Help:      "Failed hybrid retrieval legs",
	}, []string{"leg"})

	// fusionModes counts hybrid retrievals by resulting mode.
	fusionModes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fusion",
		Name:      "modes_total",
		Help:      "Hybrid retrievals by resulting mode",
	}, []string{"mode"})

	// fallbacksTotal counts synthetic fallbacks by failure label.
	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fallback",
		Name:      "composed_total",
		Help:      "Synthetic fallbacks by failure label",
	}, []string{"reason"})

	// planWarnings counts planner plan sanitization warnings.
	planWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "planner",
		Name:      "warnings_total",
		Help:      "Planner plan fields dropped or corrected during sanitization",
	})

	// rateLimited counts requests rejected by the rate limiter.
	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by rate limiting",
	}, []string{"scope"})
)

// RecordSearch records a finished search
func RecordSearch(outcome string, durationSec float64) {
	searchesTotal.WithLabelValues(outcome).Inc()
	searchLatency.WithLabelValues(outcome).Observe(durationSec)
}

// RecordStop records a scheduler stop reason
func RecordStop(reason, blockedKind string) {
	if blockedKind == "" {
		blockedKind = "none"
	}
	stopReasons.WithLabelValues(reason, blockedKind).Inc()
}

// RecordAttempt records one retrieval attempt
func RecordAttempt(phase, status string, durationSec float64) {
	attemptsTotal.WithLabelValues(phase, status).Inc()
	attemptLatency.WithLabelValues(phase).Observe(durationSec)
}

// RecordLegFailure records a failed hybrid retrieval leg
func RecordLegFailure(leg string) {
	legFailures.WithLabelValues(leg).Inc()
}

// RecordFusionMode records the mode a hybrid retrieval resolved to
func RecordFusionMode(mode string) {
	fusionModes.WithLabelValues(mode).Inc()
}

// RecordFallback records a synthetic fallback
func RecordFallback(reason string) {
	fallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordPlanWarnings adds planner sanitization warnings
func RecordPlanWarnings(n int) {
	if n > 0 {
		planWarnings.Add(float64(n))
	}
}

// RecordRateLimited records a request rejected by rate limiting
func RecordRateLimited(scope string) {
	rateLimited.WithLabelValues(scope).Inc()
}
