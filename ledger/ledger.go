// Package ledger defines the transport contract between the command
// pipeline and the distributed transaction processor: submitting framed
// envelopes and subscribing to committed state deltas (§6.6). Two
// implementations are provided: ledger/memledger for tests and
// single-node operation, and ledger/grpcledger for a real networked
// processor.
package ledger

import (
	"context"

	"github.com/chronicle-ledger/chronicle-lib/kv"
	"github.com/chronicle-ledger/chronicle/transport"
)

// CommittedBatch is one committed transaction's resulting write-set,
// streamed back to subscribers (the query projection, C8) in ledger
// commit order.
type CommittedBatch struct {
	TxID     string
	WriteSet kv.WriteSet
}

// Writer submits framed envelopes to the ledger transport, the pipeline's
// only suspension point for committing a batch (§4.6 step 4, §5).
type Writer interface {
	Submit(ctx context.Context, env transport.Envelope) (txID string, err error)
}

// Reader streams committed batches in total order, the single source of
// truth every replica's projection replays from (§4.7, §5).
type Reader interface {
	Subscribe(ctx context.Context) (<-chan CommittedBatch, error)
}

// Ledger is the combined read/write contract a pipeline depends on.
type Ledger interface {
	Writer
	Reader
}
