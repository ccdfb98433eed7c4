// Package metrics provides the solver's Prometheus collectors.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/R3E-Network/intent-solver/infrastructure/runtime"
)

// Metrics holds every Prometheus collector the solver exposes.
type Metrics struct {
	// HTTP metrics, for the operator-facing status/health endpoints.
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Error metrics.
	ErrorsTotal *prometheus.CounterVec

	// Order lifecycle metrics.
	OrdersByStatus     *prometheus.GaugeVec
	OrderTransitions   *prometheus.CounterVec
	OrderFailuresTotal *prometheus.CounterVec

	// Delivery (chain submission/confirmation) metrics.
	TxSubmitTotal     *prometheus.CounterVec
	TxConfirmDuration *prometheus.HistogramVec
	DisputeWaitActive *prometheus.GaugeVec

	// Discovery metrics.
	IntentsDiscoveredTotal *prometheus.CounterVec
	IntentsDroppedTotal    *prometheus.CounterVec

	// Storage metrics, parallel to the platform's own database
	// instrumentation but against the namespaced KV contract this
	// build persists through instead of a SQL database.
	StorageOperationsTotal  *prometheus.CounterVec
	StorageOperationLatency *prometheus.HistogramVec

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered
// against the default Prometheus registry.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry,
// letting tests avoid clobbering the global default registry.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of errors",
			},
			[]string{"service", "type", "operation"},
		),

		OrdersByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orders_by_status",
				Help: "Current number of orders in each lifecycle status",
			},
			[]string{"service", "standard", "status"},
		),
		OrderTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_transitions_total",
				Help: "Total number of order state machine transitions",
			},
			[]string{"service", "standard", "transition"},
		),
		OrderFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_failures_total",
				Help: "Total number of orders pinned to Failed, by stage",
			},
			[]string{"service", "standard", "stage"},
		),

		TxSubmitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delivery_tx_submit_total",
				Help: "Total number of transactions submitted to a chain",
			},
			[]string{"service", "chain_id", "kind", "status"},
		),
		TxConfirmDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "delivery_tx_confirm_duration_seconds",
				Help:    "Time from submission to confirmation outcome",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"service", "chain_id", "kind", "status"},
		),
		DisputeWaitActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "settlement_dispute_wait_active",
				Help: "Current number of settled orders waiting out their dispute period",
			},
			[]string{"service"},
		),

		IntentsDiscoveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_intents_total",
				Help: "Total number of intents discovered, by source",
			},
			[]string{"service", "source"},
		),
		IntentsDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_intents_dropped_total",
				Help: "Total number of intents dropped before reaching the engine",
			},
			[]string{"service", "reason"},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_operations_total",
				Help: "Total number of storage backend operations",
			},
			[]string{"service", "namespace", "operation", "status"},
		),
		StorageOperationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_operation_duration_seconds",
				Help:    "Storage backend operation duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5},
			},
			[]string{"service", "namespace", "operation"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.OrdersByStatus,
			m.OrderTransitions,
			m.OrderFailuresTotal,
			m.TxSubmitTotal,
			m.TxConfirmDuration,
			m.DisputeWaitActive,
			m.IntentsDiscoveredTotal,
			m.IntentsDroppedTotal,
			m.StorageOperationsTotal,
			m.StorageOperationLatency,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", getEnvironment()).Set(1)

	return m
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records an error.
func (m *Metrics) RecordError(service, errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(service, errorType, operation).Inc()
}

// SetOrdersByStatus overwrites the current gauge reading for
// (standard, status); callers recompute the full count rather than
// incrementing/decrementing it transition by transition, since an
// order can skip observation windows between scrapes.
func (m *Metrics) SetOrdersByStatus(service, standard, status string, count int) {
	m.OrdersByStatus.WithLabelValues(service, standard, status).Set(float64(count))
}

// RecordOrderTransition records one state machine transition.
func (m *Metrics) RecordOrderTransition(service, standard, transition string) {
	m.OrderTransitions.WithLabelValues(service, standard, transition).Inc()
}

// RecordOrderFailure records an order pinned to Failed at stage.
func (m *Metrics) RecordOrderFailure(service, standard, stage string) {
	m.OrderFailuresTotal.WithLabelValues(service, standard, stage).Inc()
}

// RecordTxSubmit records a transaction submission outcome.
func (m *Metrics) RecordTxSubmit(service, chainID, kind, status string) {
	m.TxSubmitTotal.WithLabelValues(service, chainID, kind, status).Inc()
}

// RecordTxConfirmDuration records the time from submission to a
// confirmation outcome (confirmed, reverted, reorged, or timed out).
func (m *Metrics) RecordTxConfirmDuration(service, chainID, kind, status string, d time.Duration) {
	m.TxConfirmDuration.WithLabelValues(service, chainID, kind, status).Observe(d.Seconds())
}

// IncDisputeWaitActive/DecDisputeWaitActive track the gauge of orders
// currently waiting out their dispute period before a claim.
func (m *Metrics) IncDisputeWaitActive(service string) {
	m.DisputeWaitActive.WithLabelValues(service).Inc()
}

func (m *Metrics) DecDisputeWaitActive(service string) {
	m.DisputeWaitActive.WithLabelValues(service).Dec()
}

// RecordIntentDiscovered records one intent reaching the engine.
func (m *Metrics) RecordIntentDiscovered(service, source string) {
	m.IntentsDiscoveredTotal.WithLabelValues(service, source).Inc()
}

// RecordIntentDropped records one intent dropped before the engine ever
// saw it (inbox full or rate-limited).
func (m *Metrics) RecordIntentDropped(service, reason string) {
	m.IntentsDroppedTotal.WithLabelValues(service, reason).Inc()
}

// RecordStorageOperation records a storage backend call.
func (m *Metrics) RecordStorageOperation(service, namespace, operation, status string, d time.Duration) {
	m.StorageOperationsTotal.WithLabelValues(service, namespace, operation, status).Inc()
	m.StorageOperationLatency.WithLabelValues(service, namespace, operation).Observe(d.Seconds())
}

// UpdateUptime updates the service uptime gauge.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// IncrementInFlight increments the in-flight HTTP requests counter.
func (m *Metrics) IncrementInFlight() {
	m.RequestsInFlight.Inc()
}

// DecrementInFlight decrements the in-flight HTTP requests counter.
func (m *Metrics) DecrementInFlight() {
	m.RequestsInFlight.Dec()
}

func getEnvironment() string {
	return string(runtime.Env())
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return !runtime.IsProduction()
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Global metrics instance
var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("unknown")
	}
	return globalMetrics
}
