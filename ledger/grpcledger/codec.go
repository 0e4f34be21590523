// Package grpcledger is a ledger.Ledger backed by google.golang.org/grpc,
// standing in for the sawtooth validator's ZeroMQ RPC (messaging.rs) since
// no ZeroMQ client exists anywhere in the example pack and gRPC is the
// dependency erigon itself already carries for its own RPC surface. The
// service is hand-wired against grpc's low-level Invoke/NewStream API
// rather than a .proto-generated client, since this tree never invokes the
// protoc/protoc-gen-go codegen step; business messages stay the same
// transport.Envelope bytes used everywhere else in the ledger.
package grpcledger

import (
	"google.golang.org/grpc/encoding"
)

const codecName = "chronicle-raw"

// rawMessage is a gRPC message that is already a complete wire payload;
// rawCodec does no further encoding, letting transport.Envelope's own
// protowire bytes (and a small JSON envelope for streamed commits) pass
// through untouched.
type rawMessage []byte

// rawCodec implements encoding.Codec by treating every message as a
// pre-serialized byte slice, avoiding a dependency on generated protobuf
// message types for the RPC plumbing itself.
type rawCodec struct{}

func (rawCodec) Name() string { return codecName }

func (rawCodec) Marshal(v any) ([]byte, error) {
	msg, _ := v.(*rawMessage)
	if msg == nil {
		return nil, nil
	}
	return []byte(*msg), nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(*rawMessage)
	if !ok {
		return nil
	}
	*msg = append((*msg)[:0], data...)
	return nil
}

func init() {
	encoding.RegisterCodec(rawCodec{})
}
