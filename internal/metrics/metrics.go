package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for RosterOperations.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of http request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	RosterOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymbook_roster_operations_total",
			Help: "Roster mutations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)
	PartialWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymbook_partial_writes_total",
			Help: "Two-sided writes that left the visitor side behind the session side",
		},
		[]string{"op"},
	)
	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymbook_reconciliations_total",
			Help: "Reconciliation records processed by outcome",
		},
		[]string{"outcome"},
	)
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gymbook_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
