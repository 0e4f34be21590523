package grpcledger

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"

	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle-lib/kv"
	"github.com/chronicle-ledger/chronicle/ledger"
	"github.com/chronicle-ledger/chronicle/transport"
)

const (
	serviceName      = "chronicle.Ledger"
	methodSubmit     = "/chronicle.Ledger/Submit"
	methodSubscribe  = "/chronicle.Ledger/Subscribe"
)

// submitResponse is the wire shape of a Submit reply.
type submitResponse struct {
	TxID string `json:"txId"`
}

// batchWire is the wire shape of one streamed ledger.CommittedBatch.
type batchWire struct {
	TxID     string            `json:"txId"`
	WriteSet map[string][]byte `json:"writeSet"`
}

func encodeBatch(b ledger.CommittedBatch) ([]byte, error) {
	w := batchWire{TxID: b.TxID, WriteSet: make(map[string][]byte, len(b.WriteSet))}
	for addr, v := range b.WriteSet {
		w.WriteSet[string(addr)] = v
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransportFailed, err, "encode committed batch")
	}
	return data, nil
}

func decodeBatch(data []byte) (ledger.CommittedBatch, error) {
	var w batchWire
	if err := json.Unmarshal(data, &w); err != nil {
		return ledger.CommittedBatch{}, errors.Wrap(errors.KindTransportFailed, err, "decode committed batch")
	}
	writeSet := make(kv.WriteSet, len(w.WriteSet))
	for addr, v := range w.WriteSet {
		writeSet[kv.Address(addr)] = v
	}
	return ledger.CommittedBatch{TxID: w.TxID, WriteSet: writeSet}, nil
}

// Server exposes a backing ledger.Ledger over gRPC, the "external
// processor" a grpcledger.Client submits transactions to (§6.6). It is
// typically the in-process memledger.Ledger run standalone by
// cmd/chronicled in server mode.
type Server struct {
	backing ledger.Ledger
}

// NewServer wraps backing for gRPC exposure.
func NewServer(backing ledger.Ledger) *Server {
	return &Server{backing: backing}
}

// Register installs the Ledger service on a grpc.Server.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) submit(ctx context.Context, req *rawMessage) (*rawMessage, error) {
	env, err := transport.Decode([]byte(*req))
	if err != nil {
		return nil, err
	}
	txID, err := s.backing.Submit(ctx, env)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(submitResponse{TxID: txID})
	if err != nil {
		return nil, errors.Wrap(errors.KindTransportFailed, err, "encode submit response")
	}
	resp := rawMessage(data)
	return &resp, nil
}

func (s *Server) subscribe(_ *rawMessage, stream grpc.ServerStream) error {
	ch, err := s.backing.Subscribe(stream.Context())
	if err != nil {
		return err
	}
	for batch := range ch {
		data, err := encodeBatch(batch)
		if err != nil {
			return err
		}
		msg := rawMessage(data)
		if err := stream.SendMsg(&msg); err != nil {
			return err
		}
	}
	return nil
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Submit",
			Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				req := new(rawMessage)
				if err := dec(req); err != nil {
					return nil, err
				}
				return srv.(*Server).submit(ctx, req)
			},
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				req := new(rawMessage)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(*Server).subscribe(req, stream)
			},
		},
	},
	Metadata: "chronicle/ledger.proto",
}
