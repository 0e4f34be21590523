package prov_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle/prov"
)

func testNS() vocab.ID { return vocab.Namespace("test-ns", uuid.New()) }

// A second CreateNamespace for a namespace that already exists is a no-op:
// it does not overwrite the name the first one set, the idempotence
// property the executor's replay leans on.
func TestApplyIdempotence(t *testing.T) {
	ns := testNS()
	createNS := prov.CreateNamespace{NS: ns, Name: "renamed", UUID: ns.UUID}

	once := prov.FromOps([]prov.Operation{
		prov.CreateNamespace{NS: ns, Name: "first", UUID: ns.UUID},
	})
	twice := prov.FromOps([]prov.Operation{
		prov.CreateNamespace{NS: ns, Name: "first", UUID: ns.UUID},
		createNS,
	})

	require.Equal(t, once.Namespaces[ns.String()].Name, twice.Namespaces[ns.String()].Name)
	assert.Equal(t, "first", twice.Namespaces[ns.String()].Name, "second CreateNamespace must not overwrite the first")
}

// Re-applying CreateAgent with an empty attribute bag must not clobber
// attributes a previous operation already set.
func TestApplyCreateAgentDoesNotClobberAttributes(t *testing.T) {
	ns := testNS()
	agentID := vocab.Agent("alice")
	m := prov.FromOps([]prov.Operation{
		prov.CreateAgent{NS: ns, ID: agentID, Attributes: prov.Attributes{DomainType: "chronicle:Person"}},
		prov.CreateAgent{NS: ns, ID: agentID, Attributes: prov.Attributes{}},
	})
	assert.Equal(t, "chronicle:Person", m.Agents[agentID.String()].Attributes.DomainType)
}

// RegisterKey must accumulate prior identities monotonically: the set of
// prior identities only ever grows across a sequence of registrations, and
// an identity already current is never duplicated into it.
func TestRegisterKeyMonotonicHistory(t *testing.T) {
	ns := testNS()
	agentID := vocab.Agent("alice")
	id1 := vocab.Identity("alice-key-1")
	id2 := vocab.Identity("alice-key-2")
	id3 := vocab.Identity("alice-key-3")
	now := time.Now().UTC()

	m := prov.New()
	m.Apply(prov.RegisterKey{NS: ns, AgentID: agentID, IdentityID: id1, PublicKey: "aa", Registered: now})
	agent := m.Agents[agentID.String()]
	require.NotNil(t, agent.CurrentIdentity)
	assert.Equal(t, id1.String(), agent.CurrentIdentity.String())
	assert.Equal(t, 0, agent.PriorIdentities.Len())

	m.Apply(prov.RegisterKey{NS: ns, AgentID: agentID, IdentityID: id2, PublicKey: "bb", Registered: now.Add(time.Minute)})
	assert.Equal(t, id2.String(), agent.CurrentIdentity.String())
	require.Equal(t, 1, agent.PriorIdentities.Len())
	assert.True(t, agent.PriorIdentities.Contains(id1))

	// Re-registering the same identity as current must not push it into
	// PriorIdentities a second time (the set never shrinks, but it also
	// never gains a duplicate of its own current member).
	m.Apply(prov.RegisterKey{NS: ns, AgentID: agentID, IdentityID: id2, PublicKey: "bb", Registered: now.Add(2 * time.Minute)})
	assert.Equal(t, 1, agent.PriorIdentities.Len())

	m.Apply(prov.RegisterKey{NS: ns, AgentID: agentID, IdentityID: id3, PublicKey: "cc", Registered: now.Add(3 * time.Minute)})
	require.Equal(t, 2, agent.PriorIdentities.Len())
	assert.True(t, agent.PriorIdentities.Contains(id1))
	assert.True(t, agent.PriorIdentities.Contains(id2))
}

// Every resource Apply creates or mutates carries the namespace it was
// scoped under; a batch entirely within one namespace never leaks a stub
// into another namespace's arena.
func TestApplyNamespaceContainment(t *testing.T) {
	ns1 := testNS()
	ns2 := testNS()
	agent := vocab.Agent("bob")
	activity := vocab.Activity("build")
	entity := vocab.Entity("artifact")

	m := prov.FromOps([]prov.Operation{
		prov.CreateNamespace{NS: ns1, Name: "one", UUID: ns1.UUID},
		prov.CreateAgent{NS: ns1, ID: agent},
		prov.CreateActivity{NS: ns1, ID: activity},
		prov.GenerateEntity{NS: ns1, EntityID: entity, ActivityID: activity},
	})

	assert.Equal(t, ns1.String(), m.Agents[agent.String()].Namespace.String())
	assert.Equal(t, ns1.String(), m.Activities[activity.String()].Namespace.String())
	assert.Equal(t, ns1.String(), m.Entities[entity.String()].Namespace.String())
	assert.NotEqual(t, ns1.String(), ns2.String(), "two fresh namespaces must never collide")
}

// Started/Ended follow first-write-wins: once set, a later StartActivity or
// EndActivity for the same activity must not move the timestamp, even
// though the association edge is recorded every time.
func TestActivityTimestampsFirstWriteWins(t *testing.T) {
	ns := testNS()
	activity := vocab.Activity("build")
	agent := vocab.Agent("alice")
	other := vocab.Agent("bob")
	t0 := time.Now().UTC()
	t1 := t0.Add(time.Hour)

	m := prov.New()
	m.Apply(prov.StartActivity{NS: ns, ActivityID: activity, AgentID: agent, Time: t0})
	m.Apply(prov.StartActivity{NS: ns, ActivityID: activity, AgentID: other, Time: t1})

	act := m.Activities[activity.String()]
	require.NotNil(t, act.Started)
	assert.True(t, act.Started.Equal(t0), "first StartActivity time must stick")

	edges := m.WasAssociatedWith()
	require.Len(t, edges, 2)
	assert.Equal(t, agent.String(), edges[0].To.String())
	assert.Equal(t, other.String(), edges[1].To.String())
}

// An unrecognised or empty derivation kind collapses to DerivationUnspecified
// rather than propagating an invalid tag into the model.
func TestEntityDeriveUnknownKindCollapses(t *testing.T) {
	ns := testNS()
	generated := vocab.Entity("revised")
	used := vocab.Entity("original")

	m := prov.FromOps([]prov.Operation{
		prov.EntityDerive{NS: ns, GeneratedEntity: generated, UsedEntity: used, Kind: prov.DerivationKind("bogus")},
	})
	edges := m.WasDerivedFromEdges()
	require.Len(t, edges, 1)
	assert.Equal(t, prov.DerivationUnspecified, edges[0].Kind)
}

// SetAttributes never stubs a target it has not seen under any kind: its
// operation carries no kind tag, so there is nothing to stub as.
func TestSetAttributesNeverStubsUnseenTarget(t *testing.T) {
	ns := testNS()
	target := vocab.Agent("ghost")

	m := prov.FromOps([]prov.Operation{
		prov.SetAttributes{NS: ns, Target: target, Attributes: prov.Attributes{DomainType: "x"}},
	})
	assert.Empty(t, m.Agents)
}

// Edge accessors return their relation in ascending (From, To) order
// regardless of insertion order, the ordering guarantee §3.3 invariant 5
// relies on for deterministic re-encoding.
func TestEdgeAccessorsAreSorted(t *testing.T) {
	ns := testNS()
	m := prov.New()
	m.Apply(prov.ActivityUses{NS: ns, ActivityID: vocab.Activity("b"), EntityID: vocab.Entity("z")})
	m.Apply(prov.ActivityUses{NS: ns, ActivityID: vocab.Activity("a"), EntityID: vocab.Entity("y")})
	m.Apply(prov.ActivityUses{NS: ns, ActivityID: vocab.Activity("a"), EntityID: vocab.Entity("x")})

	edges := m.UsedEdges()
	require.Len(t, edges, 3)
	for i := 1; i < len(edges); i++ {
		assert.True(t, edges[i-1].From.String() < edges[i].From.String() ||
			(edges[i-1].From.String() == edges[i].From.String() && edges[i-1].To.String() < edges[i].To.String()))
	}
}

// Two ActsOnBehalfOf facts for the same (delegate, responsible) pair but
// different roles are distinct facts and must both survive apply — the
// set keeps them apart because actedLess compares the qualifiers too.
func TestActsOnBehalfOfDistinguishesByQualifier(t *testing.T) {
	ns := testNS()
	delegate := vocab.Agent("bob")
	responsible := vocab.Agent("alice")
	activity := vocab.Activity("build")

	m := prov.FromOps([]prov.Operation{
		prov.ActsOnBehalfOf{NS: ns, Delegate: delegate, Responsible: responsible, Role: "reviewer"},
		prov.ActsOnBehalfOf{NS: ns, Delegate: delegate, Responsible: responsible, Role: "approver"},
		prov.ActsOnBehalfOf{NS: ns, Delegate: delegate, Responsible: responsible, Activity: &activity, Role: "reviewer"},
	})
	edges := m.ActedOnBehalfOfEdges()
	require.Len(t, edges, 3, "facts differing only by role/activity qualifier must not collapse into one")
}

// Two EntityDerive facts for the same (generated, used) pair but
// different kinds are distinct facts: an entity can simultaneously be a
// revision of and a quotation from the same source.
func TestEntityDeriveDistinguishesByKind(t *testing.T) {
	ns := testNS()
	generated := vocab.Entity("revised")
	used := vocab.Entity("original")

	m := prov.FromOps([]prov.Operation{
		prov.EntityDerive{NS: ns, GeneratedEntity: generated, UsedEntity: used, Kind: prov.DerivationRevision},
		prov.EntityDerive{NS: ns, GeneratedEntity: generated, UsedEntity: used, Kind: prov.DerivationQuotation},
	})
	edges := m.WasDerivedFromEdges()
	require.Len(t, edges, 2, "facts differing only by derivation kind must not collapse into one")
}

func TestValidDerivationKind(t *testing.T) {
	assert.True(t, prov.ValidDerivationKind(prov.DerivationUnspecified))
	assert.True(t, prov.ValidDerivationKind(prov.DerivationRevision))
	assert.True(t, prov.ValidDerivationKind(prov.DerivationQuotation))
	assert.True(t, prov.ValidDerivationKind(prov.DerivationPrimarySource))
	assert.False(t, prov.ValidDerivationKind(prov.DerivationKind("nonsense")))
}
