// Package metrics holds the Prometheus collectors of the import job.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"eduadmin-sync/internal/domain"
)

const namespace = "eduadmin_sync"

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Import runs by outcome (success, empty, auth_error, fetch_error).",
		},
		[]string{"outcome"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of import runs.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished import run.",
		},
	)

	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Course and event changes applied by import runs.",
		},
		[]string{"kind"},
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed remote fetches by phase.",
		},
		[]string{"phase"},
	)

	TemplateErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_errors_total",
			Help:      "Templates skipped because a storage write failed.",
		},
	)

	ManualTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manual_triggers_total",
			Help:      "Manual import requests by result.",
		},
		[]string{"result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Requests through the circuit breaker by result.",
		},
		[]string{"name", "result"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordRun updates the run collectors once a run has finished.
func RecordRun(outcome string, stats domain.RunStats, d time.Duration) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.Observe(d.Seconds())
	LastRunTimestamp.SetToCurrentTime()

	RecordsTotal.WithLabelValues("imported").Add(float64(stats.Imported))
	RecordsTotal.WithLabelValues("updated").Add(float64(stats.Updated))
	RecordsTotal.WithLabelValues("events_added").Add(float64(stats.EventsAdded))
	RecordsTotal.WithLabelValues("events_updated").Add(float64(stats.EventsUpdated))
	RecordsTotal.WithLabelValues("events_removed").Add(float64(stats.EventsRemoved))
}
