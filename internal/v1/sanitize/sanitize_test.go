package sanitize

import (
	"encoding/json"
	"math/rand"
	"testing"
)

func TestParse_DropsUnwhitelistedFields(t *testing.T) {
	raw := []byte(`{
		"clientSequenceNumber": 4,
		"contents": {"a":1},
		"referenceSequenceNumber": 3,
		"type": "op",
		"__proto__": "drop-me",
		"socketId": "should-not-survive"
	}`)

	op, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if op.ClientSequenceNumber != 4 || op.ReferenceSequenceNumber != 3 || op.Type != "op" {
		t.Fatalf("unexpected op: %+v", op)
	}

	reencoded, err := json.Marshal(op)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if containsKey(reencoded, "__proto__") || containsKey(reencoded, "socketId") {
		t.Fatalf("re-encoded op leaked a non-whitelisted field: %s", reencoded)
	}
}

func TestOp_IsRoundTrip(t *testing.T) {
	op := &Op{Type: RoundTripType}
	if !op.IsRoundTrip() {
		t.Fatal("IsRoundTrip() = false, want true")
	}

	op.Type = "op"
	if op.IsRoundTrip() {
		t.Fatal("IsRoundTrip() = true, want false")
	}

	var nilOp *Op
	if nilOp.IsRoundTrip() {
		t.Fatal("IsRoundTrip() on nil op = true, want false")
	}
}

func TestSample_AppendsTraceOnHit(t *testing.T) {
	// Find a seed whose first draw is 0, then sample with a fresh rng on
	// that same seed so the draw is reproducible.
	var seed int64
	for seed = 1; rand.New(rand.NewSource(seed)).Intn(traceSampleRate) != 0; seed++ {
	}

	op := &Op{Type: "op"}
	Sample(op, rand.New(rand.NewSource(seed)))
	if len(op.Traces) != 1 {
		t.Fatalf("Sample() with a guaranteed-hit rng appended %d traces, want 1", len(op.Traces))
	}
	if op.Traces[0].Service != "alfred" || op.Traces[0].Action != "start" {
		t.Fatalf("unexpected trace: %+v", op.Traces[0])
	}
}

func TestSample_SkipsTraceOnMiss(t *testing.T) {
	var seed int64
	for seed = 1; rand.New(rand.NewSource(seed)).Intn(traceSampleRate) == 0; seed++ {
	}

	op := &Op{Type: "op"}
	Sample(op, rand.New(rand.NewSource(seed)))
	if len(op.Traces) != 0 {
		t.Fatalf("Sample() with a guaranteed-miss rng appended %d traces, want 0", len(op.Traces))
	}
}

func TestSample_NeverMutatesNilOp(t *testing.T) {
	var op *Op
	Sample(op, rand.New(rand.NewSource(1)))
}

func containsKey(raw []byte, key string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}
