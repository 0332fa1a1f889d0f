package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentalportal_http_requests_total",
			Help: "Total gateway HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rentalportal_http_request_duration_seconds",
			Help:    "Gateway HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Backend client metrics
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rentalportal_backend_request_duration_seconds",
			Help:    "Latency of calls to the rental backend",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	BackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentalportal_backend_errors_total",
			Help: "Failed calls to the rental backend",
		},
		[]string{"endpoint", "kind"}, // kind: auth_invalid, network, rejected
	)

	// Session metrics
	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentalportal_session_transitions_total",
			Help: "Session lifecycle events",
		},
		[]string{"role", "event"}, // event: login, logout, recovered, invalidated
	)

	// Unread engine metrics
	UnreadRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentalportal_unread_refreshes_total",
			Help: "Authoritative unread refreshes",
		},
		[]string{"trigger", "result"}, // trigger: poll, manual, reconcile, rollback
	)

	UnreadStaleSnapshots = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rentalportal_unread_stale_snapshots_total",
			Help: "Unread snapshots discarded because the session changed",
		},
	)

	UnreadTotalDrift = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rentalportal_unread_total_drift_total",
			Help: "Refreshes where the backend total disagreed with its per-counterpart map",
		},
	)

	MarkReadOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentalportal_mark_read_operations_total",
			Help: "Conversation mark-read operations",
		},
		[]string{"result"}, // acknowledged, rolled_back, joined
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentalportal_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"action"},
	)
)
