package rpc

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// codecName is passed to grpc.CallContentSubtype and matched against the
// registered encoding.Codec's Name() to select gobCodec for every call
// this package makes.
const codecName = "gob"

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// gobCodec lets plain Go structs cross the wire as gRPC messages without a
// protoc-generated marshaler. Every message type in messages.go is a
// plain, gob-encodable struct for exactly this reason.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := gob.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return codecName }
