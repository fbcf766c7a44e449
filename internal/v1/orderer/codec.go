// Package orderer implements gateway.OrdererManager/gateway.Orderer against
// a document-ordering backend reached over gRPC. The backend's service
// definition lives outside this module, so requests and responses are
// plain JSON-tagged structs carried by a codec registered under the name
// "json" rather than generated protobuf stubs.
package orderer

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("orderer: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("orderer: unmarshal into %T: %w", v, err)
	}
	return nil
}
