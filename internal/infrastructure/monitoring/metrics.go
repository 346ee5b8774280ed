package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Runtime registry metrics
	RuntimesHot        prometheus.Gauge
	RuntimesCreated    prometheus.Counter
	VisibilitySwitches prometheus.Counter
	Evictions          *prometheus.CounterVec

	// Snapshot pipeline metrics
	CapturesTotal          prometheus.Counter
	CaptureTimeouts        prometheus.Counter
	EmptySnapshotsRejected prometheus.Counter
	SnapshotSaveDuration   prometheus.Histogram
	GatewayErrors          *prometheus.CounterVec

	// Ownership metrics
	OwnershipClaims prometheus.Counter
	StaleWrites     prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspace_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workspace_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		RuntimesHot: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "workspace_runtimes_hot",
				Help: "Number of runtimes currently held in memory",
			},
		),
		RuntimesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "workspace_runtimes_created_total",
				Help: "Total number of runtimes constructed (cold or new)",
			},
		),
		VisibilitySwitches: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "workspace_visibility_switches_total",
				Help: "Total number of hot visibility switches",
			},
		),
		Evictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspace_evictions_total",
				Help: "Total number of runtime evictions",
			},
			[]string{"reason"},
		),

		CapturesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "workspace_captures_total",
				Help: "Total number of snapshot captures",
			},
		),
		CaptureTimeouts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "workspace_capture_timeouts_total",
				Help: "Captures that proceeded after the quiescence timeout",
			},
		),
		EmptySnapshotsRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "workspace_empty_snapshots_rejected_total",
				Help: "Suspected transitional captures rejected by the empty guard",
			},
		),
		SnapshotSaveDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "workspace_snapshot_save_duration_seconds",
				Help:    "Durable snapshot save duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		GatewayErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspace_gateway_errors_total",
				Help: "Persistence gateway errors by operation",
			},
			[]string{"operation"},
		),

		OwnershipClaims: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "workspace_ownership_claims_total",
				Help: "Total number of successful ownership claims",
			},
		),
		StaleWrites: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "workspace_stale_writes_total",
				Help: "Ownership claims rejected by the stale-write guard",
			},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "workspace_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "workspace_uptime_seconds",
				Help: "Backend uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetRuntimesHot sets the hot-set gauge
func (m *Metrics) SetRuntimesHot(count int) {
	m.RuntimesHot.Set(float64(count))
}

// IncEviction records an eviction with its reason ("capacity", "explicit")
func (m *Metrics) IncEviction(reason string) {
	m.Evictions.WithLabelValues(reason).Inc()
}

// IncGatewayError records a persistence gateway failure
func (m *Metrics) IncGatewayError(operation string) {
	m.GatewayErrors.WithLabelValues(operation).Inc()
}

// ObserveSave records a durable save duration
func (m *Metrics) ObserveSave(d time.Duration) {
	m.SnapshotSaveDuration.Observe(d.Seconds())
}
