package metrics

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "winddown",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "winddown",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "winddown",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	routineOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "winddown",
			Subsystem: "routines",
			Name:      "operations_total",
			Help:      "Total number of completed routine operations.",
		},
		[]string{"operation"},
	)

	sleepLogOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "winddown",
			Subsystem: "sleep_logs",
			Name:      "operations_total",
			Help:      "Total number of completed sleep log operations.",
		},
		[]string{"operation"},
	)

	dbOpenConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "winddown",
			Subsystem: "db",
			Name:      "open_connections",
			Help:      "Open connections in the database pool.",
		},
	)

	dbIdleConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "winddown",
			Subsystem: "db",
			Name:      "idle_connections",
			Help:      "Idle connections in the database pool.",
		},
	)

	dbWaitCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "winddown",
			Subsystem: "db",
			Name:      "wait_count",
			Help:      "Cumulative number of connections waited for.",
		},
	)

	processCPUPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "winddown",
			Subsystem: "process",
			Name:      "cpu_percent",
			Help:      "Sampled CPU usage of the service process.",
		},
	)

	processResidentMemory = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "winddown",
			Subsystem: "process",
			Name:      "resident_memory_bytes",
			Help:      "Sampled resident memory of the service process.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		routineOps,
		sleepLogOps,
		dbOpenConnections,
		dbIdleConnections,
		dbWaitCount,
		processCPUPercent,
		processResidentMemory,
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncInFlight marks one more request in flight.
func IncInFlight() { httpInFlight.Inc() }

// DecInFlight marks one request as finished.
func DecInFlight() { httpInFlight.Dec() }

// ObserveHTTPRequest records one handled HTTP request. The path should be a
// route template, not the raw URL, to keep label cardinality bounded.
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRoutineOperation counts a completed routine operation.
func RecordRoutineOperation(operation string) {
	routineOps.WithLabelValues(operation).Inc()
}

// RecordSleepLogOperation counts a completed sleep log operation.
func RecordSleepLogOperation(operation string) {
	sleepLogOps.WithLabelValues(operation).Inc()
}

// SetDBStats publishes database pool gauges.
func SetDBStats(stats sql.DBStats) {
	dbOpenConnections.Set(float64(stats.OpenConnections))
	dbIdleConnections.Set(float64(stats.Idle))
	dbWaitCount.Set(float64(stats.WaitCount))
}

// SetProcessStats publishes sampled process gauges.
func SetProcessStats(cpuPercent float64, rssBytes uint64) {
	processCPUPercent.Set(cpuPercent)
	processResidentMemory.Set(float64(rssBytes))
}
