// Package room implements canonical room addressing for the collaboration
// gateway. A room is a tenant-scoped document broadcast group; it has no
// standalone lifecycle and exists implicitly as soon as any client joins it.
package room

import "fmt"

// Room identifies a tenant-scoped document.
type Room struct {
	TenantID   string
	DocumentID string
}

// ID returns the canonical "<tenantId>/<documentId>" room key used for
// transport-level join/leave/broadcast addressing.
func (r Room) ID() string {
	return r.TenantID + "/" + r.DocumentID
}

// ClientChannel returns the transport room a single clientId's unicast
// messages are additionally joined to, so the gateway can address a single
// connection without tracking a separate socket-to-clientId index in the
// transport layer.
func ClientChannel(clientID string) string {
	return fmt.Sprintf("client#%s", clientID)
}

// LogFields returns the structured metadata attached to outbound log
// records so operators can filter by tenant and document.
func (r Room) LogFields() map[string]string {
	return map[string]string{
		"documentId": r.DocumentID,
		"tenantId":   r.TenantID,
	}
}
