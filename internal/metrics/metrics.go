// Package metrics exposes Prometheus collectors for scraping, ingestion,
// classification, curation and the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "news_curator"

var (
	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "pages_total",
			Help:      "Listing, archive and detail pages fetched by strategy and result",
		},
		[]string{"strategy", "result"},
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "scan_duration_seconds",
			Help:      "Duration of one source scan",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"strategy"},
	)

	IngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "items_total",
			Help:      "Candidate items by ingestion outcome (inserted, skipped, invalid)",
		},
		[]string{"source", "outcome"},
	)

	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "items_total",
			Help:      "Classification calls by outcome (ok, failed, malformed)",
		},
		[]string{"provider", "outcome"},
	)

	ClassificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "call_duration_seconds",
			Help:      "Duration of one classification attempt",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	CurationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curation",
			Name:      "transitions_total",
			Help:      "Curation actions by action and result",
		},
		[]string{"action", "result"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by step and status",
		},
		[]string{"step", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"step"},
	)

	RunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_in_flight",
			Help:      "Number of pipeline runs currently executing",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)
)

// ObservePage counts one page fetch.
func ObservePage(strategy string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	PagesTotal.WithLabelValues(strategy, result).Inc()
}

// ObserveIngest records one ingestion call.
func ObserveIngest(sourceID string, inserted, skipped, invalid int) {
	if inserted > 0 {
		IngestedTotal.WithLabelValues(sourceID, "inserted").Add(float64(inserted))
	}
	if skipped > 0 {
		IngestedTotal.WithLabelValues(sourceID, "skipped").Add(float64(skipped))
	}
	if invalid > 0 {
		IngestedTotal.WithLabelValues(sourceID, "invalid").Add(float64(invalid))
	}
}

// ObserveRun records a finished pipeline run.
func ObserveRun(step string, success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	RunsTotal.WithLabelValues(step, status).Inc()
	RunDuration.WithLabelValues(step).Observe(elapsed.Seconds())
}

// ObserveTransition records a curation action result.
func ObserveTransition(action string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	CurationTransitions.WithLabelValues(action, result).Inc()
}
