package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spai_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "spai_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spai_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	LLMLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "spai_llm_latency_seconds",
			Help: "Latency of LLM completion calls in seconds",
		},
	)

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spai_provider_errors_total",
			Help: "Failed calls to external providers",
		},
		[]string{"provider"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spai_active_sessions",
			Help: "Number of connected voice sessions",
		},
	)

	CommandsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spai_commands_dispatched_total",
			Help: "Voice session commands sent to the assistant, by trigger",
		},
		[]string{"trigger"},
	)
)
