package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmforge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dmforge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Turn metrics
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmforge_turns_total",
			Help: "Total number of narrated turns by outcome",
		},
		[]string{"status"},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmforge_tool_calls_total",
			Help: "Total number of narrator tool calls",
		},
		[]string{"tool", "status"},
	)

	narratorLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dmforge_narrator_latency_seconds",
			Help:    "Narrator completion latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// System metrics
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dmforge_active_sessions",
			Help: "Number of sessions held in the manager cache",
		},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			turnsTotal,
			toolCallsTotal,
			narratorLatency,
			activeSessions,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTurn records the outcome of one narrated turn
func RecordTurn(status string) {
	turnsTotal.WithLabelValues(status).Inc()
}

// RecordToolCall records narrator tool call metrics
func RecordToolCall(tool, status string) {
	toolCallsTotal.WithLabelValues(tool, status).Inc()
}

// ObserveNarratorLatency records the duration of one narrator exchange
func ObserveNarratorLatency(duration time.Duration) {
	narratorLatency.Observe(duration.Seconds())
}

// SetActiveSessions sets the cached sessions gauge
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}
