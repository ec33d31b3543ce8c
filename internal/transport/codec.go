package transport

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// codecName is registered with grpc's encoding package and selected on
// outgoing calls via grpc.CallContentSubtype, in place of the protobuf
// codec grpc otherwise defaults to. There's no protoc in this toolchain and
// every message this service exchanges is already a plain exported Go
// struct (internal/wire's frames), so gob round-trips them directly instead
// of generating .pb.go bindings for messages that already exist.
const codecName = "gob"

func init() {
	encoding.RegisterCodec(gobCodec{})
}

type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string {
	return codecName
}
