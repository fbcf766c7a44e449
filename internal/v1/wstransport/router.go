package wstransport

import (
	"context"
	"encoding/json"

	"github.com/open-collab/gateway/internal/v1/gateway"
	"github.com/open-collab/gateway/internal/v1/logging"
)

type submitOpRequest struct {
	ClientID string            `json:"clientId"`
	Batches  []json.RawMessage `json:"batches"`
}

type submitSignalRequest struct {
	ClientID string            `json:"clientId"`
	Batches  []json.RawMessage `json:"batches"`
}

type clientIDRequest struct {
	ClientID string `json:"clientId"`
}

// route dispatches one decoded envelope to the gateway handler for its
// event, emitting the handler's response (or a caller-attributable
// rejection) back on the originating socket. An internal fault in
// connect_document is logged and answered with the opaque connect-pipeline
// error text, never the fault's own detail; one in submit_op is only
// logged.
func (h *Hub) route(ctx context.Context, conn *gateway.Connection, socket *Socket, env envelope) {
	switch env.Event {
	case "connect_document":
		var req gateway.ConnectRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			_ = socket.Emit("connect_document_error", gateway.NewCallerError(400, "Malformed request"))
			return
		}
		resp, err := h.gw.HandleConnectDocument(ctx, conn, req)
		if err != nil {
			if callerErr, ok := err.(*gateway.CallerError); ok {
				_ = socket.Emit("connect_document_error", callerErr)
				return
			}
			logging.Error(ctx, "internal fault handling connect_document")
			_ = socket.Emit("connect_document_error", gateway.NewCallerError(500, "Failed to connect client to document."))
			return
		}
		_ = socket.Emit("connect_document_success", resp)

	case "submit_op":
		var req submitOpRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return
		}
		nackMsg, err := h.gw.HandleSubmitOp(ctx, conn, req.ClientID, req.Batches)
		if err != nil {
			logging.Error(ctx, "internal fault handling submit_op")
			return
		}
		if nackMsg != nil {
			_ = socket.Emit("nack", []gateway.NackMessage{*nackMsg})
		}

	case "submit_signal":
		var req submitSignalRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return
		}
		if nackMsg := h.gw.HandleSubmitSignal(conn, req.ClientID, req.Batches); nackMsg != nil {
			_ = socket.Emit("nack", []gateway.NackMessage{*nackMsg})
		}

	case "get_clients":
		var req clientIDRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return
		}
		if nackMsg := h.gw.HandleGetClients(ctx, conn, req.ClientID); nackMsg != nil {
			_ = socket.Emit("nack", []gateway.NackMessage{*nackMsg})
		}

	case "ping":
		var req clientIDRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return
		}
		if nackMsg := h.gw.HandlePing(conn, req.ClientID); nackMsg != nil {
			_ = socket.Emit("nack", []gateway.NackMessage{*nackMsg})
		}

	default:
		logging.Warn(ctx, "unknown event")
	}
}
