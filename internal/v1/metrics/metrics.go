package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the collaboration gateway.
//
// Naming convention: namespace_subsystem_name
// - namespace: gateway (application-level grouping)
// - subsystem: socket, document, orderer, throttle, circuit_breaker, redis (feature-level grouping)
// - name: specific metric (connections_active, ops_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, documents, clients)
// - Counter: Cumulative events (ops submitted, throttled requests, errors)
// - Histogram: Latency distributions (round-trip op latency, processing time)

var (
	// ActiveSocketConnections tracks the current number of live WebSocket connections.
	ActiveSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Subsystem: "socket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveDocuments tracks the current number of documents with at least one connected client.
	ActiveDocuments = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Subsystem: "document",
		Name:      "documents_active",
		Help:      "Current number of documents with at least one connected client",
	})

	// DocumentClients tracks the number of connected document clients per tenant (GaugeVec,
	// current count per tenant_id label rather than a historical distribution).
	DocumentClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gateway",
		Subsystem: "document",
		Name:      "clients_connected",
		Help:      "Number of document clients connected, per tenant",
	}, []string{"tenant_id"})

	// SocketEvents tracks the total number of inbound socket events processed, by type and outcome.
	SocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "socket",
		Name:      "events_total",
		Help:      "Total socket events processed",
	}, []string{"event_type", "status"})

	// EventProcessingDuration tracks the time spent handling an inbound socket event.
	EventProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gateway",
		Subsystem: "socket",
		Name:      "event_processing_seconds",
		Help:      "Time spent processing an inbound socket event",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// OrdererOpsSubmitted tracks the total number of operations handed to the orderer.
	OrdererOpsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "orderer",
		Name:      "ops_submitted_total",
		Help:      "Total operations submitted to the orderer",
	}, []string{"status"})

	// RoundTripLatency tracks the client-reported round-trip latency for an op, sourced
	// from its sanitized trace rather than measured gateway-side.
	RoundTripLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gateway",
		Subsystem: "orderer",
		Name:      "round_trip_latency_seconds",
		Help:      "Client-observed round-trip latency for a submitted op",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service"})

	// CircuitBreakerState tracks the current state of a collaborator circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gateway",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks the total number of requests rejected by a circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// ThrottleExceeded tracks the total number of requests that were rate-limited.
	ThrottleExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "throttle",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded a throttle guard",
	}, []string{"point", "reason"})

	// ThrottleChecks tracks the total number of requests checked against a throttle guard.
	ThrottleChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "throttle",
		Name:      "checks_total",
		Help:      "Total number of requests checked against a throttle guard",
	}, []string{"point"})

	// RedisOperationsTotal tracks the total number of Redis operations (CounterVec)
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis operations",
	}, []string{"operation", "status"})

	// RedisOperationDuration tracks the duration of Redis operations (HistogramVec)
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gateway",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

func IncConnection() {
	ActiveSocketConnections.Inc()
}

func DecConnection() {
	ActiveSocketConnections.Dec()
}
