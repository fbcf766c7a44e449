package orderer

import "github.com/open-collab/gateway/internal/v1/sanitize"

const (
	serviceName           = "gateway.orderer.v1.Orderer"
	methodConnect         = "/" + serviceName + "/Connect"
	methodOrder           = "/" + serviceName + "/Order"
	methodDisconnect      = "/" + serviceName + "/Disconnect"
	methodWatchFaults     = "/" + serviceName + "/WatchFaults"
	watchFaultsStreamName = "WatchFaults"
)

type connectRequest struct {
	TenantID   string `json:"tenantId"`
	DocumentID string `json:"documentId"`
	ClientID   string `json:"clientId"`
}

type connectResponse struct {
	MaxMessageSize       int            `json:"maxMessageSize"`
	ServiceConfiguration map[string]any `json:"serviceConfiguration"`
}

type orderRequest struct {
	TenantID   string        `json:"tenantId"`
	DocumentID string        `json:"documentId"`
	ClientID   string        `json:"clientId"`
	Ops        []sanitize.Op `json:"ops"`
}

type orderResponse struct{}

type disconnectRequest struct {
	TenantID   string `json:"tenantId"`
	DocumentID string `json:"documentId"`
	ClientID   string `json:"clientId"`
}

type disconnectResponse struct{}

type watchFaultsRequest struct {
	TenantID   string `json:"tenantId"`
	DocumentID string `json:"documentId"`
	ClientID   string `json:"clientId"`
}

// faultMessage is the single frame a WatchFaults stream ever delivers
// before the backend closes it; a closed stream with no frame is not a
// fault.
type faultMessage struct {
	Reason string `json:"reason"`
}
