package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exprd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "exprd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	connectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exprd",
			Name:      "connections_total",
			Help:      "Accepted client connections.",
		},
		[]string{"node"},
	)
	activeConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "exprd",
			Name:      "active_connections",
			Help:      "Client connections currently being served.",
		},
		[]string{"node"},
	)
	evalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exprd",
			Name:      "requests_total",
			Help:      "Evaluated requests by outcome.",
		},
		[]string{"node", "outcome"},
	)
	evalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "exprd",
			Name:      "eval_duration_seconds",
			Help:      "Expression evaluation duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
		[]string{"node"},
	)
	frameErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exprd",
			Name:      "frame_errors_total",
			Help:      "Connections ended by a framing or transport failure.",
		},
		[]string{"node", "kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			connectionsTotal,
			activeConnections,
			evalRequests,
			evalDuration,
			frameErrors,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordConnOpened counts an accepted connection and raises the active gauge.
func RecordConnOpened(node string) {
	RegisterMetrics()
	connectionsTotal.WithLabelValues(node).Inc()
	activeConnections.WithLabelValues(node).Inc()
}

func RecordConnClosed(node string) {
	RegisterMetrics()
	activeConnections.WithLabelValues(node).Dec()
}

func RecordEval(node, outcome string, duration time.Duration) {
	RegisterMetrics()
	evalRequests.WithLabelValues(node, outcome).Inc()
	evalDuration.WithLabelValues(node).Observe(duration.Seconds())
}

func RecordFrameError(node, kind string) {
	RegisterMetrics()
	frameErrors.WithLabelValues(node, kind).Inc()
}
