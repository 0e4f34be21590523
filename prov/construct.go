package prov

import "github.com/chronicle-ledger/chronicle-lib/common/vocab"

// The Get/Add helpers below exist solely for prov/jsonld's decoder, which
// reconstructs a model directly from its serialised node set rather than
// by replaying operations. Everywhere else in this tree (core/executor,
// pipeline) builds models exclusively through Apply/FromOps.

// GetOrCreateAgentStub returns m's agent with the given id, creating a
// stub scoped to ns if absent.
func GetOrCreateAgentStub(m *Model, ns, id vocab.ID) *Agent {
	return m.stubAgent(ns, id)
}

// GetOrCreateActivityStub returns m's activity with the given id, creating
// a stub scoped to ns if absent.
func GetOrCreateActivityStub(m *Model, ns, id vocab.ID) *Activity {
	return m.stubActivity(ns, id)
}

// GetOrCreateEntityStub returns m's entity with the given id, creating a
// stub scoped to ns if absent.
func GetOrCreateEntityStub(m *Model, ns, id vocab.ID) *Entity {
	return m.stubEntity(ns, id)
}

// AddWasAssociatedWith, AddWasGeneratedBy, and AddUsed insert an edge
// directly, without requiring its endpoints to already exist as stubs.
func AddWasAssociatedWith(m *Model, activity, agent vocab.ID) {
	m.wasAssociatedWith.Add(Edge{From: activity, To: agent})
}

func AddWasGeneratedBy(m *Model, entity, activity vocab.ID) {
	m.wasGeneratedBy.Add(Edge{From: entity, To: activity})
}

func AddUsed(m *Model, activity, entity vocab.ID) {
	m.used.Add(Edge{From: activity, To: entity})
}

// AddActedOnBehalfOf inserts a delegate/responsible edge.
func AddActedOnBehalfOf(m *Model, edge ActedOnBehalfOfEdge) {
	m.actedOnBehalfOf.Add(edge)
}

// AddWasDerivedFrom inserts a was-derived-from edge.
func AddWasDerivedFrom(m *Model, generated, used vocab.ID, kind DerivationKind) {
	m.wasDerivedFrom.Add(DerivationEdge{Generated: generated, Used: used, Kind: kind})
}
