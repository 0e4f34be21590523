// Package executor implements the deterministic operation executor (§4.3):
// given a prior committed graph and an ordered batch of operations, it
// produces a new graph and the write-set of resources whose encoded state
// changed. The executor performs no I/O — every dependency it needs must
// already be loaded into the prior graph by the caller (pipeline or
// processor), per the read-set contract in §4.4/§4.5.
package executor

import (
	"encoding/hex"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle-lib/kv"
	"github.com/chronicle-ledger/chronicle-lib/log"
	"github.com/chronicle-ledger/chronicle-lib/signing"
	"github.com/chronicle-ledger/chronicle/prov"
	"github.com/chronicle-ledger/chronicle/prov/jsonld"
)

var logger = log.New("executor")

// Dependencies returns the set of addresses whose current state must be
// loaded before op can be executed: the operation's own namespace plus
// every resource it references (§4.3).
func Dependencies(ns vocab.ID, op prov.Operation) []kv.Address {
	seen := map[kv.Address]struct{}{}
	add := func(id vocab.ID) {
		seen[kv.New(ns.String(), id.String())] = struct{}{}
	}
	add(ns)

	switch o := op.(type) {
	case prov.CreateNamespace:
	case prov.CreateAgent:
		add(o.ID)
	case prov.RegisterKey:
		add(o.AgentID)
		add(o.IdentityID)
	case prov.CreateActivity:
		add(o.ID)
	case prov.StartActivity:
		add(o.ActivityID)
		add(o.AgentID)
	case prov.EndActivity:
		add(o.ActivityID)
		add(o.AgentID)
	case prov.ActivityUses:
		add(o.ActivityID)
		add(o.EntityID)
	case prov.GenerateEntity:
		add(o.EntityID)
		add(o.ActivityID)
	case prov.EntityDerive:
		add(o.GeneratedEntity)
		add(o.UsedEntity)
	case prov.EntityAttach:
		add(o.EntityID)
		add(o.SignerIdentity)
	case prov.ActsOnBehalfOf:
		add(o.Delegate)
		add(o.Responsible)
		if o.Activity != nil {
			add(*o.Activity)
		}
	case prov.SetAttributes:
		add(o.Target)
	}

	addrs := make([]kv.Address, 0, len(seen))
	for a := range seen {
		addrs = append(addrs, a)
	}
	return addrs
}

// attachMessage is the canonical byte sequence an EntityAttach signature
// covers: the namespace, entity, and locator, joined deterministically.
// The original's signing contract covers external file content the
// pipeline hashes in beforehand; this executor verifies the binding
// between entity, locator, and signer, not arbitrary external payload
// bytes the core never sees.
func attachMessage(ns, entity vocab.ID, locator string) []byte {
	return []byte(ns.String() + ":" + entity.String() + ":" + locator)
}

// Execute runs batch against prior, in order, and returns the resulting
// graph plus the write-set of resources whose encoded bytes changed
// (§4.3). On any error the entire batch is rejected: prior is left
// unmodified and both the returned graph and write-set are nil (no
// partial writes).
func Execute(prior *prov.Model, ns vocab.ID, batch []prov.Operation) (*prov.Model, kv.WriteSet, error) {
	beforeNodes := jsonld.EncodeNodes(prior)
	before := make(map[string]jsonld.Node, len(beforeNodes))
	for _, n := range beforeNodes {
		before[n.ID] = n
	}

	working, err := jsonld.DecodeNodes(beforeNodes)
	if err != nil {
		return nil, nil, errors.Wrap(errors.KindMalformedDocument, err, "clone prior graph")
	}

	for _, op := range batch {
		if op.Namespace().String() != ns.String() {
			return nil, nil, errors.Newf(errors.KindNamespaceMismatch, "operation namespace %q does not match batch namespace %q", op.Namespace(), ns)
		}
		if err := preCheck(working, ns, op); err != nil {
			return nil, nil, err
		}
		working.Apply(op)
		if err := postCheck(working, op); err != nil {
			return nil, nil, err
		}
	}

	afterNodes := jsonld.EncodeNodes(working)
	writeSet := kv.WriteSet{}
	for _, n := range afterNodes {
		addr := kv.New(ns.String(), n.ID)
		encoded, err := marshalNode(n)
		if err != nil {
			return nil, nil, err
		}
		if prev, ok := before[n.ID]; !ok {
			writeSet[addr] = encoded
		} else if prevEncoded, err := marshalNode(prev); err != nil {
			return nil, nil, err
		} else if string(prevEncoded) != string(encoded) {
			writeSet[addr] = encoded
		}
	}

	logger.Debugw("batch executed", "namespace", ns.String(), "operations", len(batch), "writes", len(writeSet))
	return working, writeSet, nil
}

func marshalNode(n jsonld.Node) ([]byte, error) {
	b, err := n.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(errors.KindMalformedDocument, err, "marshal node for write-set")
	}
	return b, nil
}

// preCheck validates everything that must hold before op is applied:
// signer existence, signature staleness and validity (§4.3).
func preCheck(m *prov.Model, ns vocab.ID, op prov.Operation) error {
	attach, ok := op.(prov.EntityAttach)
	if !ok {
		return nil
	}
	identity, ok := m.Identities[attach.SignerIdentity.String()]
	if !ok {
		return errors.Newf(errors.KindUnknownSigner, "attachment signer identity %q is not registered in namespace %q", attach.SignerIdentity, ns)
	}
	if _, ok := m.Agents[identity.OwningAgent.String()]; !ok {
		return errors.Newf(errors.KindUnknownSigner, "signer identity %q has no owning agent in namespace %q", attach.SignerIdentity, ns)
	}
	if attach.SignatureTime.Before(identity.Registered) {
		return errors.Newf(errors.KindStaleSignature, "signature time %s precedes identity registration time %s", attach.SignatureTime, identity.Registered)
	}
	pubKeyBytes, err := decodeHexPublicKey(identity.PublicKey)
	if err != nil {
		return errors.Wrap(errors.KindInvalidSignature, err, "decode signer public key")
	}
	pubKey, err := signing.ParsePublicKey(pubKeyBytes)
	if err != nil {
		return err
	}
	sigBytes, err := decodeHexSignature(attach.SignatureHex)
	if err != nil {
		return errors.Wrap(errors.KindInvalidSignature, err, "decode attachment signature")
	}
	if err := pubKey.Verify(attachMessage(ns, attach.EntityID, attach.Locator), sigBytes); err != nil {
		return err
	}
	return nil
}

func decodeHexPublicKey(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

func decodeHexSignature(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// postCheck validates everything that can only be evaluated after op has
// mutated the model: the ended >= started constraint (§4.3).
func postCheck(m *prov.Model, op prov.Operation) error {
	end, ok := op.(prov.EndActivity)
	if !ok {
		return nil
	}
	act, ok := m.Activities[end.ActivityID.String()]
	if !ok {
		return nil
	}
	if act.Started != nil && act.Ended != nil && act.Ended.Before(*act.Started) {
		return errors.Newf(errors.KindConstraintViolation, "activity %q ended %s before it started %s", end.ActivityID, act.Ended, act.Started)
	}
	return nil
}
