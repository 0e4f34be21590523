// Package processor implements the authoritative replica side of the
// ledger: decoding a submitted envelope, loading the declared read-set,
// running the deterministic executor, and returning the resulting
// write-set (§4.3, §6.7). It performs no I/O itself — state access is
// delegated to the kv.StateReader the caller supplies, keeping the
// determinism contract intact regardless of how that store is backed.
package processor

import (
	"encoding/json"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle-lib/kv"
	"github.com/chronicle-ledger/chronicle-lib/log"
	"github.com/chronicle-ledger/chronicle/core/executor"
	"github.com/chronicle-ledger/chronicle/prov"
	"github.com/chronicle-ledger/chronicle/prov/jsonld"
	"github.com/chronicle-ledger/chronicle/transport"
)

var logger = log.New("processor")

// Handler is the transaction-processor replica: one Apply call per
// committed envelope, grounded on the original's
// ChronicleTransactionHandler (sawtooth-tp/src/tp.rs).
type Handler struct{}

// NewHandler constructs a Handler. It carries no state of its own; all
// state lives in the kv.StateReader passed to Apply.
func NewHandler() *Handler {
	return &Handler{}
}

// Apply decodes env, loads its declared dependencies from store, runs the
// executor, and returns the resulting write-set. The caller is
// responsible for committing the write-set back to the address space.
// The envelope carries no declared read/write set, so the executed set is
// not checked against one.
func (h *Handler) Apply(env transport.Envelope, store *kv.StateReader) (kv.WriteSet, error) {
	ops, ns, err := decodeBody(env.Body)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return kv.WriteSet{}, nil
	}

	prior := rehydrate(store, ns, ops)

	_, writeSet, err := executor.Execute(prior, ns, ops)
	if err != nil {
		logger.Debugw("batch rejected", "namespace", ns.String(), "error", err)
		return nil, err
	}
	return writeSet, nil
}

// decodeBody parses each body fragment as an OperationWire JSON object,
// the format EncodeOperation produces when the pipeline builds an
// envelope, and reconstructs its typed prov.Operation. Fragments are not
// prov/jsonld linked-data nodes.
func decodeBody(body []string) ([]prov.Operation, vocab.ID, error) {
	var ops []prov.Operation
	var ns vocab.ID
	for _, frag := range body {
		var wire OperationWire
		if err := json.Unmarshal([]byte(frag), &wire); err != nil {
			return nil, ns, errors.Wrap(errors.KindMalformedInput, err, "decode operation fragment")
		}
		op, err := wire.ToOperation()
		if err != nil {
			return nil, ns, err
		}
		if ns.String() == "" {
			ns = op.Namespace()
		}
		ops = append(ops, op)
	}
	return ops, ns, nil
}

// rehydrate loads every address Dependencies(op) names from store and
// merges the decoded node fragments into one working model, per §4.3
// step 1: "the processor rehydrates [the prior graph] by decoding the
// bytes at each dependency address into a model fragment and merging".
func rehydrate(store *kv.StateReader, ns vocab.ID, ops []prov.Operation) *prov.Model {
	var nodes []jsonld.Node
	seen := map[kv.Address]struct{}{}
	for _, op := range ops {
		for _, addr := range executor.Dependencies(ns, op) {
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			raw, ok := store.Get(addr)
			if !ok {
				continue
			}
			var n jsonld.Node
			if err := json.Unmarshal(raw, &n); err != nil {
				continue
			}
			nodes = append(nodes, n)
		}
	}
	m, err := jsonld.DecodeNodes(nodes)
	if err != nil {
		return prov.New()
	}
	return m
}
