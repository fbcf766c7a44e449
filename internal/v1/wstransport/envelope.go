package wstransport

import "encoding/json"

// envelope is the wire frame every inbound and outbound message uses:
// a named event plus an opaque JSON payload. There is no operation wire
// schema mandated upstream, so this is the simplest framing that lets a
// single WebSocket multiplex every event the gateway emits or accepts.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: event, Data: data})
}

func decodeEnvelope(raw []byte, env *envelope) error {
	return json.Unmarshal(raw, env)
}
