package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesh_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mesh_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Publish path
	MessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mesh_messages_published_total",
			Help: "Total envelopes appended to the log",
		},
	)

	PublishRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesh_publish_rejected_total",
			Help: "Total publishes rejected by policy",
		},
		[]string{"reason"}, // "rate_limit", "subject", "payload"
	)

	// Read path
	HistoryPages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mesh_history_pages_total",
			Help: "Total history pages served",
		},
	)

	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mesh_search_queries_total",
			Help: "Total search queries",
		},
	)

	// Live session
	SessionConnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mesh_session_connects_total",
			Help: "Total live session connects, including reconnects",
		},
	)

	LiveEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesh_live_events_total",
			Help: "Total live events applied, by stream",
		},
		[]string{"stream"}, // "message", "system", "presence", "telemetry", "receipt"
	)

	// Session bridge
	BridgeCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesh_bridge_calls_total",
			Help: "Total session bridge calls",
		},
		[]string{"op", "outcome"}, // op: "history"/"send", outcome: "ok"/"error"
	)
)
