// Package memledger is an in-process, single-node Ledger: a goroutine-safe
// address space plus a fan-out of committed batches, a direct port of the
// original's InMemLedger (sawtooth-tp test harness). It runs the processor
// itself rather than talking to a separate replica process, making it the
// right backend for tests and single-node operation (§6.6).
package memledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/chronicle-ledger/chronicle-lib/kv"
	"github.com/chronicle-ledger/chronicle-lib/log"
	"github.com/chronicle-ledger/chronicle/ledger"
	"github.com/chronicle-ledger/chronicle/processor"
	"github.com/chronicle-ledger/chronicle/transport"
)

var logger = log.New("memledger")

// Ledger is an in-memory ledger.Ledger. The zero value is not usable; build
// one with New.
type Ledger struct {
	mu      sync.Mutex
	state   map[kv.Address][]byte
	handler *processor.Handler

	subMu sync.Mutex
	subs  []chan ledger.CommittedBatch
}

// New constructs an empty in-memory ledger.
func New() *Ledger {
	return &Ledger{
		state:   make(map[kv.Address][]byte),
		handler: processor.NewHandler(),
	}
}

// Get reads directly from the in-memory address space, taking the lock
// itself; wrapped as a kv.StateReader for callers outside this package.
func (l *Ledger) Get(addr kv.Address) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getLocked(addr)
}

// getLocked is Get without taking l.mu, for callers that already hold it
// (Submit, while the processor rehydrates dependencies mid-apply).
func (l *Ledger) getLocked(addr kv.Address) ([]byte, bool) {
	v, ok := l.state[addr]
	return v, ok
}

// Submit decodes env, runs it through the processor synchronously, commits
// the resulting write-set to the address space, and fans it out to every
// subscriber, implementing ledger.Writer. Ordering is trivially total: one
// submission is fully committed before the next Submit call can begin,
// since both hold the same mutex (§4.7, single-writer discipline).
func (l *Ledger) Submit(ctx context.Context, env transport.Envelope) (string, error) {
	l.mu.Lock()
	writeSet, err := l.handler.Apply(env, kv.NewStateReader(l.getLocked))
	if err != nil {
		l.mu.Unlock()
		return "", err
	}
	for addr, value := range writeSet {
		l.state[addr] = value
	}
	l.mu.Unlock()

	txID := newTxID()
	batch := ledger.CommittedBatch{TxID: txID, WriteSet: writeSet}
	l.broadcast(ctx, batch)
	logger.Debugw("batch committed", "tx_id", txID, "writes", len(writeSet))
	return txID, nil
}

// Subscribe implements ledger.Reader: every call gets its own fan-out
// channel receiving every batch committed from this point forward.
func (l *Ledger) Subscribe(ctx context.Context) (<-chan ledger.CommittedBatch, error) {
	ch := make(chan ledger.CommittedBatch, 64)
	l.subMu.Lock()
	l.subs = append(l.subs, ch)
	l.subMu.Unlock()

	go func() {
		<-ctx.Done()
		l.removeSub(ch)
		close(ch)
	}()
	return ch, nil
}

func (l *Ledger) broadcast(ctx context.Context, batch ledger.CommittedBatch) {
	l.subMu.Lock()
	subs := make([]chan ledger.CommittedBatch, len(l.subs))
	copy(subs, l.subs)
	l.subMu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- batch:
		case <-ctx.Done():
			return
		}
	}
}

func (l *Ledger) removeSub(target chan ledger.CommittedBatch) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for i, ch := range l.subs {
		if ch == target {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return
		}
	}
}

func newTxID() string {
	return uuid.New().String()
}

var _ ledger.Ledger = (*Ledger)(nil)
