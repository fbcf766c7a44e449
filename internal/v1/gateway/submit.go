package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/open-collab/gateway/internal/v1/logging"
	"github.com/open-collab/gateway/internal/v1/sanitize"
	"github.com/open-collab/gateway/internal/v1/throttle"
)

// HandleSubmitOp validates and forwards a client's batched ops. Each
// element of batches is either a single op or an array of ops; all
// elements are flattened, in arrival order, into one list before a
// single fire-and-forget order() call. It never returns an error for a
// caller mistake — those become a non-nil *NackMessage the caller should
// emit back on the "nack" channel. A non-nil error return is an internal
// fault.
func (g *Gateway) HandleSubmitOp(ctx context.Context, conn *Connection, clientID string, batches []json.RawMessage) (*NackMessage, error) {
	conn.mu.Lock()
	cs, inRoom := conn.clients[clientID]
	orderer, hasOrderer := conn.orderers[clientID]
	conn.mu.Unlock()

	if !hasOrderer {
		switch {
		case inRoom && cs.canWrite():
			return nack(clientID, "submitOp", 400, BadRequestError, "Readonly client"), nil
		case inRoom:
			return nack(clientID, "submitOp", 403, InvalidScopeError, "Invalid scope"), nil
		default:
			return nack(clientID, "submitOp", 400, BadRequestError, "Nonexistent client"), nil
		}
	}

	if err := g.SubmitOpThrottle.Check(ctx, throttle.SubmitOpKey(clientID, cs.room.TenantID)); err != nil {
		if nackErr := throttleNack(clientID, "submitOp", err); nackErr != nil {
			return nackErr, nil
		}
	}

	ops, err := flattenOpBatches(batches)
	if err != nil {
		return nack(clientID, "submitOp", 400, BadRequestError, "Malformed operation payload"), nil
	}

	var toOrder []sanitize.Op
	for _, op := range ops {
		if op.IsRoundTrip() {
			g.Metrics.WriteLatencyMetric("roundTrip", op.Traces)
			continue
		}
		sanitize.Sample(op, nil)
		toOrder = append(toOrder, *op)
	}

	if len(toOrder) > 0 {
		go func() {
			if err := orderer.Order(context.Background(), toOrder); err != nil {
				logging.Error(context.Background(), "fire-and-forget order() failed")
			}
		}()
	}

	return nil, nil
}

// HandleSubmitSignal validates and fans out a client's batched
// transport-level signals. Unlike submitOp, any room member (reader or
// writer) may send a signal, and nothing is throttled or ordered beyond
// per-source arrival order.
func (g *Gateway) HandleSubmitSignal(conn *Connection, clientID string, batches []json.RawMessage) *NackMessage {
	conn.mu.Lock()
	cs, known := conn.clients[clientID]
	conn.mu.Unlock()

	if !known {
		return nack(clientID, "submitSignal", 400, BadRequestError, "Nonexistent client")
	}

	for _, raw := range batches {
		payloads, err := flattenSignalBatch(raw)
		if err != nil {
			continue
		}
		for _, content := range payloads {
			g.Transport.Broadcast(cs.room.ID(), "signal", map[string]any{
				"clientId": clientID,
				"content":  content,
			}, "")
		}
	}
	return nil
}

// flattenOpBatches decodes each batch element as either a single op or
// an array of ops, preserving in-batch and arrival order across the
// whole list.
func flattenOpBatches(batches []json.RawMessage) ([]*sanitize.Op, error) {
	var ops []*sanitize.Op
	for _, raw := range batches {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var elements []json.RawMessage
			if err := json.Unmarshal(raw, &elements); err != nil {
				return nil, err
			}
			for _, element := range elements {
				op, err := sanitize.Parse(element)
				if err != nil {
					return nil, err
				}
				ops = append(ops, op)
			}
			continue
		}
		op, err := sanitize.Parse(raw)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// flattenSignalBatch decodes one batch element as either a single signal
// payload or an array of payloads.
func flattenSignalBatch(raw json.RawMessage) ([]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var elements []any
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return nil, err
		}
		return elements, nil
	}
	var single any
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []any{single}, nil
}

func nack(clientID, op string, code int, typ NackType, message string) *NackMessage {
	return &NackMessage{ClientID: clientID, OperationType: op, Code: code, Type: typ, Message: message}
}

// throttleNack maps a throttle.Error to a nack; any other error (an
// internal limiter fault) is returned as nil since Guard.Check already
// failed open and logged it.
func throttleNack(clientID, op string, err error) *NackMessage {
	var throttleErr *throttle.Error
	if errors.As(err, &throttleErr) {
		n := nack(clientID, op, 429, ThrottlingError, throttleErr.Error())
		n.RetryAfter = int(throttleErr.RetryAfter.Seconds())
		return n
	}
	return nil
}
