// Package observability provides Prometheus metrics and HTTP middleware for
// the turtle server.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ScriptBuckets covers script runs from a millisecond up to past the
// sandbox timeout.
var ScriptBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

var (
	// ScriptRunsTotal counts settled script runs by outcome (success, timeout, runtime).
	ScriptRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turtle_script_runs_total",
			Help: "Settled script runs",
		},
		[]string{"outcome"},
	)

	// ScriptDuration records the time from start message to settlement.
	ScriptDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "turtle_script_duration_seconds",
			Help:    "Script run duration",
			Buckets: ScriptBuckets,
		},
	)

	// RenderDuration records render time by kind (png, frame).
	RenderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turtle_render_duration_seconds",
			Help:    "Render duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// RequestsTotal counts HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turtle_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turtle_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// AnimationConnections tracks open animation websockets.
	AnimationConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "turtle_animation_connections_active",
			Help: "Active animation connections",
		},
	)

	// RenderCacheTotal counts render cache lookups by result (hit, miss, error).
	RenderCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turtle_render_cache_total",
			Help: "Render cache lookups",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		ScriptRunsTotal,
		ScriptDuration,
		RenderDuration,
		RequestsTotal,
		RequestDuration,
		AnimationConnections,
		RenderCacheTotal,
	)
}

// ObserveScriptRun records one settled run. It has the shape of a sandbox
// observer.
func ObserveScriptRun(outcome string, elapsed time.Duration) {
	ScriptRunsTotal.WithLabelValues(outcome).Inc()
	ScriptDuration.Observe(elapsed.Seconds())
}

// ObserveRender records how long a render of kind took since start.
func ObserveRender(kind string, start time.Time) {
	RenderDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
