// Package sanitize projects inbound operation envelopes onto the narrow
// set of fields the gateway is willing to forward to an orderer, and
// annotates a small sample of them with a server-side trace span. It does
// not interpret operation contents: the payload inside Contents is opaque
// to the gateway (see the orderer package).
package sanitize

import (
	"encoding/json"
	"math/rand"
	"time"
)

// traceSampleRate is the fraction of ops that receive a server receipt
// trace span. 1 in 100 is a coarse, deliberately probabilistic sample
// meant for latency spot-checks, not full coverage.
const traceSampleRate = 100

// RoundTripType marks a client's latency-measurement echo. It is never
// forwarded to an orderer; the caller routes it to a metric sink instead.
const RoundTripType = "RoundTrip"

// Trace is a single span in an op's trace chain.
type Trace struct {
	Action    string `json:"action"`
	Service   string `json:"service"`
	Timestamp int64  `json:"timestamp"`
}

// Op is the whitelisted shape of an inbound operation. Unmarshaling a raw
// client payload into Op is itself the sanitization step: any field not
// named here is silently discarded by encoding/json.
type Op struct {
	ClientSequenceNumber    int64           `json:"clientSequenceNumber"`
	Contents                json.RawMessage `json:"contents"`
	Metadata                json.RawMessage `json:"metadata,omitempty"`
	ReferenceSequenceNumber int64           `json:"referenceSequenceNumber"`
	Traces                  []Trace         `json:"traces,omitempty"`
	Type                    string          `json:"type"`
}

// Parse decodes raw JSON into a whitelisted Op. Fields outside the
// whitelist are dropped by the decoder, not rejected; malformed JSON is
// the only error case.
func Parse(raw []byte) (*Op, error) {
	var op Op
	if err := json.Unmarshal(raw, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// IsRoundTrip reports whether op is a latency round-trip echo, which must
// never reach an orderer.
func (op *Op) IsRoundTrip() bool {
	return op != nil && op.Type == RoundTripType
}

// nowMillis is overridable in tests so trace timestamps are deterministic.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// Sample appends a server receipt trace span to op with probability
// 1/traceSampleRate, using service name "alfred" per the gateway's
// receiving-edge role. rng may be nil, in which case the package default
// source is used.
func Sample(op *Op, rng *rand.Rand) {
	if op == nil {
		return
	}
	var roll int
	if rng != nil {
		roll = rng.Intn(traceSampleRate)
	} else {
		roll = rand.Intn(traceSampleRate)
	}
	if roll != 0 {
		return
	}
	op.Traces = append(op.Traces, Trace{
		Action:    "start",
		Service:   "alfred",
		Timestamp: nowMillis(),
	})
}
