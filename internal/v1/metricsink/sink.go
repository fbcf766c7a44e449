// Package metricsink implements gateway.MetricSink, turning the trace
// spans a client echoes back on a round-trip op into Prometheus
// observations.
package metricsink

import (
	"time"

	"github.com/open-collab/gateway/internal/v1/metrics"
	"github.com/open-collab/gateway/internal/v1/sanitize"
)

// Sink satisfies gateway.MetricSink.
type Sink struct{}

// New returns a Sink. It carries no state: every call is a direct
// Prometheus observation.
func New() *Sink {
	return &Sink{}
}

// WriteLatencyMetric records the elapsed time between the first and last
// span of each trace as the round-trip latency attributed to the last
// span's service. name identifies the op type the traces came from (e.g.
// sanitize.RoundTripType) and is used only as a fallback label when a
// trace span carries no service name.
func (s *Sink) WriteLatencyMetric(name string, traces []sanitize.Trace) {
	if len(traces) < 2 {
		return
	}

	first := traces[0]
	last := traces[len(traces)-1]

	elapsedMs := last.Timestamp - first.Timestamp
	if elapsedMs < 0 {
		return
	}

	service := last.Service
	if service == "" {
		service = name
	}

	metrics.RoundTripLatency.WithLabelValues(service).Observe(time.Duration(elapsedMs * int64(time.Millisecond)).Seconds())
}
