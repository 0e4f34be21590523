package grpcledger

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"

	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle-lib/log"
	"github.com/chronicle-ledger/chronicle/ledger"
	"github.com/chronicle-ledger/chronicle/transport"
)

var logger = log.New("grpcledger")

// Client is a ledger.Ledger backed by a gRPC connection to a Server.
type Client struct {
	conn *grpc.ClientConn
}

// Dial opens a gRPC connection to a grpcledger.Server at target and returns
// a Client implementing ledger.Ledger.
func Dial(ctx context.Context, target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)))
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransportFailed, err, "dial ledger service")
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Submit implements ledger.Writer by sending env's encoded bytes as the
// gRPC request payload.
func (c *Client) Submit(ctx context.Context, env transport.Envelope) (string, error) {
	req := rawMessage(transport.Encode(env))
	resp := new(rawMessage)
	if err := c.conn.Invoke(ctx, methodSubmit, &req, resp); err != nil {
		return "", errors.Wrap(errors.KindTransportFailed, err, "submit envelope")
	}
	var sr submitResponse
	if err := json.Unmarshal([]byte(*resp), &sr); err != nil {
		return "", errors.Wrap(errors.KindTransportFailed, err, "decode submit response")
	}
	return sr.TxID, nil
}

// Subscribe implements ledger.Reader by opening a server-streaming RPC and
// translating each streamed message into a ledger.CommittedBatch.
func (c *Client) Subscribe(ctx context.Context) (<-chan ledger.CommittedBatch, error) {
	desc := &serviceDesc.Streams[0]
	stream, err := c.conn.NewStream(ctx, desc, methodSubscribe)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransportFailed, err, "open subscribe stream")
	}
	if err := stream.SendMsg(new(rawMessage)); err != nil {
		return nil, errors.Wrap(errors.KindTransportFailed, err, "send subscribe request")
	}
	if err := stream.CloseSend(); err != nil {
		return nil, errors.Wrap(errors.KindTransportFailed, err, "close subscribe send side")
	}

	out := make(chan ledger.CommittedBatch, 64)
	go func() {
		defer close(out)
		for {
			msg := new(rawMessage)
			if err := stream.RecvMsg(msg); err != nil {
				if err.Error() != "EOF" {
					logger.Debugw("subscribe stream ended", "error", err)
				}
				return
			}
			batch, err := decodeBatch([]byte(*msg))
			if err != nil {
				logger.Debugw("dropping malformed committed batch", "error", err)
				continue
			}
			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

var _ ledger.Ledger = (*Client)(nil)
