// Package wire provides the gRPC codec used for both the host-facing and
// backend-facing RPC surfaces. No protoc-generated stub types exist for
// this service anywhere in this retrieval; rather than fabricate
// protobuf message definitions, requests and responses are plain Go
// structs marshaled as JSON over the standard grpc-go transport via a
// custom encoding.Codec.
package wire

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name is registered with encoding.RegisterCodec and selected via
// grpc.CallContentSubtype / grpc.ForceCodec.
const Name = "json"

// Codec implements grpc/encoding.Codec by marshaling via encoding/json.
// It is exported so callers can pass it directly to grpc.ForceCodec.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (Codec) Name() string { return Name }

func init() {
	encoding.RegisterCodec(Codec{})
}
