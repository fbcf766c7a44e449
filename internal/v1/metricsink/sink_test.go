package metricsink

import (
	"testing"
	"testing/quick"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/open-collab/gateway/internal/v1/metrics"
	"github.com/open-collab/gateway/internal/v1/sanitize"
)

func TestWriteLatencyMetric_RecordsObservation(t *testing.T) {
	s := New()
	before := testutil.CollectAndCount(metrics.RoundTripLatency)

	traces := []sanitize.Trace{
		{Service: "client", Action: "send", Timestamp: 1000},
		{Service: "gateway", Action: "receive", Timestamp: 1250},
	}
	s.WriteLatencyMetric(sanitize.RoundTripType, traces)

	after := testutil.CollectAndCount(metrics.RoundTripLatency)
	if after <= before {
		t.Fatalf("expected a new histogram series, before=%d after=%d", before, after)
	}
}

func TestWriteLatencyMetric_IgnoresSingleSpan(t *testing.T) {
	s := New()
	before := testutil.CollectAndCount(metrics.RoundTripLatency)

	s.WriteLatencyMetric(sanitize.RoundTripType, []sanitize.Trace{{Service: "client", Timestamp: 1000}})

	after := testutil.CollectAndCount(metrics.RoundTripLatency)
	if after != before {
		t.Fatalf("expected no new series for a single-span trace, before=%d after=%d", before, after)
	}
}

func TestWriteLatencyMetric_IgnoresNegativeElapsed(t *testing.T) {
	s := New()
	before := testutil.CollectAndCount(metrics.RoundTripLatency)

	traces := []sanitize.Trace{
		{Service: "client", Timestamp: 2000},
		{Service: "gateway", Timestamp: 1000},
	}
	s.WriteLatencyMetric(sanitize.RoundTripType, traces)

	after := testutil.CollectAndCount(metrics.RoundTripLatency)
	if after != before {
		t.Fatalf("expected clock-skew traces to be dropped, before=%d after=%d", before, after)
	}
}

func TestWriteLatencyMetric_FallsBackToNameWhenServiceMissing(t *testing.T) {
	if err := quick.Check(func(elapsed uint16) bool {
		s := New()
		traces := []sanitize.Trace{
			{Timestamp: 0},
			{Timestamp: int64(elapsed)},
		}
		s.WriteLatencyMetric("fallback-name", traces)
		return metrics.RoundTripLatency.DeleteLabelValues("fallback-name")
	}, nil); err != nil {
		t.Fatal(err)
	}
}
