package jsonld_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-ledger/chronicle-lib/common/oset"
	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle/prov"
	"github.com/chronicle-ledger/chronicle/prov/jsonld"
)

// buildRichModel constructs a model exercising every resource and edge
// kind, the fixture scenario 6 and the round-trip test both build on.
func buildRichModel(t *testing.T) (*prov.Model, vocab.ID) {
	t.Helper()
	ns := vocab.Namespace("acme", uuid.New())
	now := time.Now().UTC().Truncate(time.Second)

	agent := vocab.Agent("alice")
	delegate := vocab.Agent("bob")
	activity := vocab.Activity("build")
	entity := vocab.Entity("artifact")
	usedEntity := vocab.Entity("source")
	identity := vocab.Identity("alice-key-1")
	attachment := vocab.Attachment("artifact-sig-1")

	ops := []prov.Operation{
		prov.CreateNamespace{NS: ns, Name: "acme", UUID: ns.UUID},
		prov.CreateAgent{NS: ns, ID: agent, Attributes: prov.Attributes{DomainType: "chronicle:Person", Custom: map[string]any{"team": "infra"}}},
		prov.CreateAgent{NS: ns, ID: delegate},
		prov.RegisterKey{NS: ns, AgentID: agent, IdentityID: identity, PublicKey: "deadbeef", Kind: prov.RegisterKeyGenerated, Registered: now},
		prov.CreateActivity{NS: ns, ID: activity, Attributes: prov.Attributes{DomainType: "chronicle:Build"}},
		prov.StartActivity{NS: ns, ActivityID: activity, AgentID: agent, Time: now},
		prov.ActivityUses{NS: ns, ActivityID: activity, EntityID: usedEntity},
		prov.GenerateEntity{NS: ns, EntityID: entity, ActivityID: activity},
		prov.EntityDerive{NS: ns, GeneratedEntity: entity, UsedEntity: usedEntity, Kind: prov.DerivationRevision},
		prov.EntityAttach{
			NS: ns, EntityID: entity, AttachmentID: attachment, SignerIdentity: identity,
			SignatureHex: "c0ffee", Locator: "s3://bucket/artifact", SignatureTime: now,
		},
		prov.ActsOnBehalfOf{NS: ns, Delegate: delegate, Responsible: agent, Activity: &activity, Role: "reviewer"},
		prov.EndActivity{NS: ns, ActivityID: activity, AgentID: agent, Time: now.Add(time.Minute)},
	}
	return prov.FromOps(ops), ns
}

// Encode followed by Decode must reproduce the original model exactly:
// every resource, attribute, and edge relation survives the linked-data
// round trip byte-for-byte in its typed form.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	original, _ := buildRichModel(t)

	data, err := jsonld.Encode(original)
	require.NoError(t, err)

	decoded, err := jsonld.Decode(data)
	require.NoError(t, err)

	opts := cmp.Options{
		cmp.Comparer(func(a, b vocab.ID) bool { return a.String() == b.String() }),
		cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) }),
		cmp.Comparer(func(a, b *oset.Set[vocab.ID]) bool {
			if a == nil || b == nil {
				return a == nil && b == nil
			}
			return cmp.Equal(a.Items(), b.Items(), cmp.Comparer(func(x, y vocab.ID) bool { return x.String() == y.String() }))
		}),
	}

	diff := cmp.Diff(original.Namespaces, decoded.Namespaces, opts)
	require.Empty(t, diff, "namespaces diverged after round trip")

	diff = cmp.Diff(original.Agents, decoded.Agents, opts)
	require.Empty(t, diff, "agents diverged after round trip")

	diff = cmp.Diff(original.Activities, decoded.Activities, opts)
	require.Empty(t, diff, "activities diverged after round trip")

	diff = cmp.Diff(original.Entities, decoded.Entities, opts)
	require.Empty(t, diff, "entities diverged after round trip")

	diff = cmp.Diff(original.Identities, decoded.Identities, opts)
	require.Empty(t, diff, "identities diverged after round trip")

	diff = cmp.Diff(original.Attachments, decoded.Attachments, opts)
	require.Empty(t, diff, "attachments diverged after round trip")

	require.Equal(t, original.WasAssociatedWith(), decoded.WasAssociatedWith())
	require.Equal(t, original.WasGeneratedByEdges(), decoded.WasGeneratedByEdges())
	require.Equal(t, original.UsedEdges(), decoded.UsedEdges())
	require.Equal(t, original.ActedOnBehalfOfEdges(), decoded.ActedOnBehalfOfEdges())
	require.Equal(t, original.WasDerivedFromEdges(), decoded.WasDerivedFromEdges())
}

// EncodeNodes always returns its nodes sorted ascending by @id, which the
// executor's before/after diff and the wire write-set both depend on.
func TestEncodeNodesSorted(t *testing.T) {
	m, _ := buildRichModel(t)
	nodes := jsonld.EncodeNodes(m)
	require.NotEmpty(t, nodes)
	for i := 1; i < len(nodes); i++ {
		require.LessOrEqual(t, nodes[i-1].ID, nodes[i].ID)
	}
}

// A domain-typed resource's @type array carries both the user-supplied
// domain type and the native PROV/chronicle class, so a receiver that only
// understands the native class still recognises the node.
func TestTypesForSubtyping(t *testing.T) {
	ns := vocab.Namespace("acme", uuid.New())
	agent := vocab.Agent("alice")
	m := prov.FromOps([]prov.Operation{
		prov.CreateAgent{NS: ns, ID: agent, Attributes: prov.Attributes{DomainType: "chronicle:Person"}},
	})
	nodes := jsonld.EncodeNodes(m)
	var found bool
	for _, n := range nodes {
		if n.ID == agent.String() {
			found = true
			require.Equal(t, []string{"chronicle:Person", jsonld.ClassAgent}, n.Type)
		}
	}
	require.True(t, found)
}

// Two qualifier-differing facts over the same entity/agent pair must both
// survive an encode/decode round trip with distinct synthetic node ids:
// collapsing them, or colliding their ids, would silently drop one at the
// executor's content-addressing step.
func TestEncodeDecodeRoundTripPreservesQualifiedEdges(t *testing.T) {
	ns := vocab.Namespace("acme", uuid.New())
	delegate := vocab.Agent("bob")
	responsible := vocab.Agent("alice")
	generated := vocab.Entity("revised")
	used := vocab.Entity("original")

	original := prov.FromOps([]prov.Operation{
		prov.ActsOnBehalfOf{NS: ns, Delegate: delegate, Responsible: responsible, Role: "reviewer"},
		prov.ActsOnBehalfOf{NS: ns, Delegate: delegate, Responsible: responsible, Role: "approver"},
		prov.EntityDerive{NS: ns, GeneratedEntity: generated, UsedEntity: used, Kind: prov.DerivationRevision},
		prov.EntityDerive{NS: ns, GeneratedEntity: generated, UsedEntity: used, Kind: prov.DerivationQuotation},
	})

	nodes := jsonld.EncodeNodes(original)
	ids := map[string]bool{}
	for _, n := range nodes {
		require.False(t, ids[n.ID], "two distinct facts encoded to the same node id %q", n.ID)
		ids[n.ID] = true
	}

	data, err := jsonld.Encode(original)
	require.NoError(t, err)
	decoded, err := jsonld.Decode(data)
	require.NoError(t, err)

	require.Len(t, decoded.ActedOnBehalfOfEdges(), 2)
	require.Len(t, decoded.WasDerivedFromEdges(), 2)
}

// Decoding a node with an unrecognised predicate key fails with
// UnknownTerm rather than silently dropping the property.
func TestDecodeUnknownPredicateRejected(t *testing.T) {
	raw := []byte(`[{"@id":"chronicle:agent:alice","@type":["prov:Agent"],"chronicle:bogusPredicate":{"@value":"x"}}]`)
	_, err := jsonld.Decode(raw)
	require.Error(t, err)
	require.True(t, errors.IsKind(err, errors.KindUnknownTerm))
}
