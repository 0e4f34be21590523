package transport

import (
	"encoding/binary"
	"io"

	"github.com/chronicle-ledger/chronicle-lib/errors"
)

// WriteDelimited writes e to w prefixed with its varint-encoded byte
// length, the framing a byte-stream transport needs to recover message
// boundaries. ledger/grpcledger does not use it: gRPC frames each
// message itself and that client sends plain Encode output.
func WriteDelimited(w io.Writer, e Envelope) error {
	encoded := Encode(e)
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(encoded)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return errors.Wrap(errors.KindTransportFailed, err, "write envelope length prefix")
	}
	if _, err := w.Write(encoded); err != nil {
		return errors.Wrap(errors.KindTransportFailed, err, "write envelope body")
	}
	return nil
}

// ReadDelimited reads one length-prefixed envelope from r.
func ReadDelimited(r io.ByteReader) (Envelope, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return Envelope{}, errors.Wrap(errors.KindTransportFailed, err, "read envelope length prefix")
	}
	buf := make([]byte, length)
	for i := range buf {
		b, err := r.ReadByte()
		if err != nil {
			return Envelope{}, errors.Wrap(errors.KindTransportFailed, err, "read envelope body")
		}
		buf[i] = b
	}
	return Decode(buf)
}
