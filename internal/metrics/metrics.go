package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retail_assist_requests_total",
			Help: "Total number of answered questions by route tag",
		},
		[]string{"route"},
	)

	FailureCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retail_assist_backend_failures_total",
			Help: "Total number of backend failures by classified kind",
		},
		[]string{"kind"},
	)

	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "retail_assist_backend_latency_seconds",
			Help: "Backend invocation latency in seconds",
		},
		[]string{"backend"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retail_assist_active_sessions",
			Help: "Number of conversation sessions held in memory",
		},
	)
)
