package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultRegistry holds every planner collector and backs GET /metrics.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		SessionsTotal, SessionDuration, Iterations,
		ToolDuration, ToolFailuresTotal, LLMTokensTotal,
		HTTPRateLimitedTotal,
	)
}

// SessionsTotal counts finished planning sessions by outcome.
var SessionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "planner_sessions_total",
		Help: "Planning sessions by outcome",
	},
	[]string{"outcome"}, // success | exhausted | timeout | cancelled | error | no_itinerary
)

var SessionDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "planner_session_duration_seconds",
		Help:    "Wall-clock duration of planning sessions",
		Buckets: []float64{5, 10, 20, 40, 60, 120, 180, 300},
	},
	[]string{"outcome"},
)

// Iterations observes how many model round-trips a session used.
var Iterations = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "planner_iterations",
		Help:    "Model round-trips per planning session",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	},
)

var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "planner_tool_duration_seconds",
		Help:    "Tool execution latency",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

var ToolFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "planner_tool_failures_total",
		Help: "Failed tool executions",
	},
	[]string{"tool"},
)

var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "planner_llm_tokens_total",
		Help: "Tokens exchanged with the model provider",
	},
	[]string{"direction"}, // input | output
)

var HTTPRateLimitedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "planner_http_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter",
	},
	[]string{"route"},
)

// WritePrometheus writes the registry in the Prometheus text format.
func WritePrometheus(w io.Writer) error {
	families, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
