package tableapi

import (
	"connectrpc.com/connect"
	"github.com/goccy/go-json"
)

// jsonCodec lets connect carry the plain Go message structs of this package.
// It replaces connect's protobuf JSON codec under the same name so the
// content type stays application/json.
type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}

var _ connect.Codec = jsonCodec{}
