// Package gateway implements the connection state machine that mediates
// between transport-level sockets and a document's collaborators: a
// tenant manager, a client registry, an orderer manager, and a metric
// sink. It owns no transport implementation and no document semantics —
// both are supplied by the caller through the interfaces in
// collaborators.go.
package gateway

import (
	"time"

	"k8s.io/utils/set"

	"github.com/open-collab/gateway/internal/v1/auth"
	"github.com/open-collab/gateway/internal/v1/room"
)

// ClientDescriptor is the durable record of a client's presence in a
// room, as stored in the client registry and handed back to newly
// connecting clients so they can see who else is present.
type ClientDescriptor struct {
	ClientID    string    `json:"clientId"`
	User        string    `json:"user"`
	Scopes      []string  `json:"scopes"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// ClientDetails is the caller-supplied client descriptor attached to a
// connect_document request. Type is the only field the connect pipeline
// inspects: a client must assert type "summarizer" to keep a
// SummaryWrite scope past the authoritative filter in step 7.
type ClientDetails struct {
	Type string `json:"type"`
}

// ConnectRequest is the inbound connect_document payload.
type ConnectRequest struct {
	TenantID   string         `json:"tenantId"`
	DocumentID string         `json:"id"`
	Token      string         `json:"token"`
	Versions   []string       `json:"versions"`
	Mode       string         `json:"mode"`
	Client     *ClientDetails `json:"client,omitempty"`
}

// ConnectResponse is the outbound connect_document_success payload.
// MaxMessageSize and ServiceConfiguration are populated for every
// client: sourced from the orderer connection for writers, or from the
// platform reader default otherwise.
type ConnectResponse struct {
	ClientID                      string             `json:"clientId"`
	Mode                          string             `json:"mode"`
	Version                       string             `json:"version"`
	ExistingClients               []ClientDescriptor `json:"existingClients"`
	MaxNumberOfClientsPerDocument int                `json:"maxNumberOfClientsPerDocument"`
	MaxMessageSize                int                `json:"maxMessageSize,omitempty"`
	ServiceConfiguration          map[string]any     `json:"serviceConfiguration,omitempty"`
}

// RoomJoinSignal is broadcast on the "signal" channel when a new client
// joins a room.
type RoomJoinSignal struct {
	ClientID string           `json:"clientId"`
	Details  ClientDescriptor `json:"details"`
}

// RoomLeaveSignal is broadcast on the "signal" channel when a client
// leaves a room.
type RoomLeaveSignal struct {
	ClientID string `json:"clientId"`
}

// NackType is the closed set of reasons a nack can carry.
type NackType string

const (
	BadRequestError   NackType = "BadRequestError"
	InvalidScopeError NackType = "InvalidScopeError"
	ThrottlingError   NackType = "ThrottlingError"
)

// NackMessage is emitted on the "nack" channel when a request from an
// already-connected client is rejected.
type NackMessage struct {
	ClientID      string   `json:"clientId"`
	OperationType string   `json:"operationType"`
	Code          int      `json:"code"`
	Type          NackType `json:"type"`
	Message       string   `json:"message"`
	RetryAfter    int      `json:"retryAfter,omitempty"`
}

// CallerError is a rejection attributable to the caller: a malformed,
// unauthorized, or throttled request. It is surfaced to the client
// verbatim and must never be logged above info (internal faults use a
// different path: handlers return them as plain wrapped errors, which the
// transport logs and answers with an opaque 500).
type CallerError struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func (e *CallerError) Error() string {
	return e.Message
}

// NewCallerError builds a CallerError with the given HTTP-style status
// code and message.
func NewCallerError(code int, message string) *CallerError {
	return &CallerError{Code: code, Message: message}
}

// clientState is what a Connection tracks about one clientId minted on
// its socket. scopes holds the effective, post-authoritative-filter
// scope set (see connect.go step 7); claims retains the raw token
// claims for identity and expiration bookkeeping.
type clientState struct {
	room   room.Room
	claims *auth.Claims
	scopes set.Set[auth.Scope]
	mode   string
}

// canWrite reports whether the effective scope set grants write-capable
// access (DocWrite or SummaryWrite), independent of the mode the client
// actually requested at connect time.
func (cs *clientState) canWrite() bool {
	return cs.scopes.Has(auth.ScopeDocWrite) || cs.scopes.Has(auth.ScopeSummaryWrite)
}

// scopeStrings renders an effective scope set as plain strings, for
// embedding in a wire-level client descriptor.
func scopeStrings(scopes set.Set[auth.Scope]) []string {
	raw := scopes.UnsortedList()
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		out = append(out, string(s))
	}
	return out
}
