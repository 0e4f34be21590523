// Package transport implements the outer transaction envelope (§4.5/§6.1):
// a length-delimited, versioned frame carrying a batch's operations as
// JSON fragments, one per operation in the processor.OperationWire
// encoding (not the prov/jsonld linked-data node form). Encoding uses protobuf's low-level
// protowire primitives directly rather than a generated .proto schema,
// since this tree never invokes the Go toolchain's codegen step; the wire
// shape below is still a stable, hand-maintained protobuf message.
package transport

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/chronicle-ledger/chronicle-lib/errors"
)

// ProtocolVersion is the only protocol version this codec accepts.
const ProtocolVersion = "1"

const (
	fieldProtocolVersion = protowire.Number(1)
	fieldSpanID          = protowire.Number(2)
	fieldBody            = protowire.Number(3)
)

// Envelope is the transaction envelope: a protocol version, a tracing
// span id, and the ordered JSON fragments (processor.OperationWire, not
// linked-data) of one batch's operations (§4.5).
type Envelope struct {
	ProtocolVersion string
	SpanID          string
	Body            []string
}

// Encode serialises e as a length-delimited protobuf message.
func Encode(e Envelope) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldProtocolVersion, protowire.BytesType)
	b = protowire.AppendString(b, e.ProtocolVersion)
	b = protowire.AppendTag(b, fieldSpanID, protowire.BytesType)
	b = protowire.AppendString(b, e.SpanID)
	for _, frag := range e.Body {
		b = protowire.AppendTag(b, fieldBody, protowire.BytesType)
		b = protowire.AppendString(b, frag)
	}
	return b
}

// Decode parses a length-delimited protobuf message into an Envelope,
// rejecting any protocol version other than ProtocolVersion (§4.5).
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Envelope{}, errors.New(errors.KindMalformedInput, "invalid envelope tag")
		}
		data = data[n:]
		switch num {
		case fieldProtocolVersion:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return Envelope{}, errors.New(errors.KindMalformedInput, "invalid protocol_version field")
			}
			e.ProtocolVersion = v
			data = data[m:]
		case fieldSpanID:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return Envelope{}, errors.New(errors.KindMalformedInput, "invalid span_id field")
			}
			e.SpanID = v
			data = data[m:]
		case fieldBody:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return Envelope{}, errors.New(errors.KindMalformedInput, "invalid body field")
			}
			e.Body = append(e.Body, v)
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return Envelope{}, errors.New(errors.KindMalformedInput, "invalid envelope field")
			}
			data = data[m:]
		}
	}
	if e.ProtocolVersion != ProtocolVersion {
		return Envelope{}, errors.Newf(errors.KindUnsupportedProtocol, "%s", e.ProtocolVersion)
	}
	return e, nil
}
