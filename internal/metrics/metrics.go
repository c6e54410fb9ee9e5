// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resale",
		Name:      "analyses_started_total",
		Help:      "Analysis runs started, by LLM provider.",
	}, []string{"provider"})

	AnalysesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resale",
		Name:      "analyses_finished_total",
		Help:      "Analysis runs finished, by outcome (completed, malformed, failed).",
	}, []string{"outcome"})

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "resale",
		Name:      "analysis_duration_seconds",
		Help:      "Wall time of an analysis run from first request to merge.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80},
	})

	StaleAnalyses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "resale",
		Name:      "stale_analyses_total",
		Help:      "Items the sweeper moved from ANALYZING to FAILED.",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "resale",
		Name:      "analyze_rate_limited_total",
		Help:      "Analyze requests rejected by the per-client limiter.",
	})
)
