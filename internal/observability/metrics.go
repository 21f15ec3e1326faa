// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Engine metrics
	TicksTotal     prometheus.Counter
	TickDuration   prometheus.Histogram
	ControlUpdates *prometheus.CounterVec
	AlertsEmitted  *prometheus.CounterVec
	SimulatedPnL   prometheus.Gauge

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimited         prometheus.Counter

	// Warehouse metrics
	WarehouseWrites     *prometheus.CounterVec
	WarehouseQueueDepth prometheus.Gauge
	WarehouseDropped    prometheus.Counter
	BreakerState        *prometheus.GaugeVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Fan-out metrics
	StreamClients     prometheus.Gauge
	StreamDropped     prometheus.Counter
	MessagesPublished *prometheus.CounterVec
	CacheOperations   *prometheus.CounterVec

	// Health metrics
	LastTick prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "vectorquant"
	}

	return &Metrics{
		// Engine metrics
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Total number of simulation ticks",
		}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tick_duration_seconds",
			Help:      "Time spent inside the tick critical section",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		ControlUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "control_updates_total",
			Help:      "Total number of control updates by result",
		}, []string{"result"}),
		AlertsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "alerts_emitted_total",
			Help:      "Total number of alerts produced by kind and severity",
		}, []string{"kind", "severity"}),
		SimulatedPnL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pnl",
			Help:      "Current simulated P&L",
		}),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),

		// Warehouse metrics
		WarehouseWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "warehouse",
			Name:      "writes_total",
			Help:      "Total number of warehouse writes by table and status",
		}, []string{"table", "status"}),
		WarehouseQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "warehouse",
			Name:      "queue_depth",
			Help:      "Number of snapshots waiting to be recorded",
		}),
		WarehouseDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "warehouse",
			Name:      "dropped_total",
			Help:      "Total number of snapshots dropped because the queue was full",
		}),
		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "warehouse",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Fan-out metrics
		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of connected websocket clients",
		}),
		StreamDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "dropped_total",
			Help:      "Total number of websocket messages dropped for slow clients",
		}),
		MessagesPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "messages_total",
			Help:      "Total number of published messages by topic and status",
		}, []string{"topic", "status"}),
		CacheOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Total number of snapshot cache operations by op and status",
		}, []string{"op", "status"}),

		// Health metrics
		LastTick: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_tick_timestamp",
			Help:      "Unix timestamp of the last tick",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTick records one completed tick.
func RecordTick(seconds, pnl, unixSeconds float64) {
	DefaultMetrics.TicksTotal.Inc()
	DefaultMetrics.TickDuration.Observe(seconds)
	DefaultMetrics.SimulatedPnL.Set(pnl)
	DefaultMetrics.LastTick.Set(unixSeconds)
}

// RecordControlUpdate records a control update attempt.
func RecordControlUpdate(err error) {
	DefaultMetrics.ControlUpdates.WithLabelValues(status(err)).Inc()
}

// RecordAlert records one produced alert.
func RecordAlert(kind, severity string) {
	DefaultMetrics.AlertsEmitted.WithLabelValues(kind, severity).Inc()
}

// RecordHTTPRequest records a served request.
func RecordHTTPRequest(route string, code int, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, http.StatusText(code)).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordRateLimited records a rejected request.
func RecordRateLimited() {
	DefaultMetrics.RateLimited.Inc()
}

// RecordWarehouseWrite records a warehouse write.
func RecordWarehouseWrite(table string, err error) {
	DefaultMetrics.WarehouseWrites.WithLabelValues(table, status(err)).Inc()
}

// UpdateWarehouseQueue updates the recorder queue depth gauge.
func UpdateWarehouseQueue(depth int) {
	DefaultMetrics.WarehouseQueueDepth.Set(float64(depth))
}

// RecordWarehouseDropped records a snapshot dropped by a full queue.
func RecordWarehouseDropped() {
	DefaultMetrics.WarehouseDropped.Inc()
}

// UpdateBreakerState records a circuit breaker transition.
func UpdateBreakerState(name string, state int) {
	DefaultMetrics.BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// UpdateStreamClients updates the connected websocket client gauge.
func UpdateStreamClients(n int) {
	DefaultMetrics.StreamClients.Set(float64(n))
}

// RecordStreamDropped records a message dropped for a slow client.
func RecordStreamDropped() {
	DefaultMetrics.StreamDropped.Inc()
}

// RecordPublish records a publish attempt.
func RecordPublish(topic string, err error) {
	DefaultMetrics.MessagesPublished.WithLabelValues(topic, status(err)).Inc()
}

// RecordCacheOp records a snapshot cache operation.
func RecordCacheOp(op string, err error) {
	DefaultMetrics.CacheOperations.WithLabelValues(op, status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
