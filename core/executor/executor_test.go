package executor_test

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle-lib/kv"
	"github.com/chronicle-ledger/chronicle-lib/signing"
	"github.com/chronicle-ledger/chronicle/core/executor"
	"github.com/chronicle-ledger/chronicle/prov"
)

func freshNS(t *testing.T) vocab.ID {
	t.Helper()
	return vocab.Namespace("acme", uuid.New())
}

// Scenario: CreateNamespace with a fixed UUID is reflected exactly in the
// resulting graph, and executing the same batch twice from an empty prior
// both times produces the same write-set (determinism, §4.3).
func TestExecuteCreateNamespace(t *testing.T) {
	ns := freshNS(t)
	batch := []prov.Operation{prov.CreateNamespace{NS: ns, Name: "acme", UUID: ns.UUID}}

	after, writeSet, err := executor.Execute(prov.New(), ns, batch)
	require.NoError(t, err)
	require.NotEmpty(t, writeSet)
	require.Contains(t, after.Namespaces, ns.String())
	require.Equal(t, "acme", after.Namespaces[ns.String()].Name)

	_, writeSet2, err := executor.Execute(prov.New(), ns, batch)
	require.NoError(t, err)
	require.Equal(t, writeSet, writeSet2)
}

// Scenario: agent creation plus key registration leaves the agent with a
// current identity and an empty prior-identity set.
func TestExecuteAgentAndKeyRegistration(t *testing.T) {
	ns := freshNS(t)
	agent := vocab.Agent("alice")
	identity := vocab.Identity("alice-key-1")
	now := time.Now().UTC()

	batch := []prov.Operation{
		prov.CreateNamespace{NS: ns, Name: "acme", UUID: ns.UUID},
		prov.CreateAgent{NS: ns, ID: agent},
		prov.RegisterKey{NS: ns, AgentID: agent, IdentityID: identity, PublicKey: "ab", Kind: prov.RegisterKeyGenerated, Registered: now},
	}
	after, _, err := executor.Execute(prov.New(), ns, batch)
	require.NoError(t, err)
	a := after.Agents[agent.String()]
	require.NotNil(t, a.CurrentIdentity)
	require.Equal(t, identity.String(), a.CurrentIdentity.String())
	require.Equal(t, 0, a.PriorIdentities.Len())
}

// Scenario: starting then ending an activity with explicit times records
// both timestamps and the association edge exactly once per agent.
func TestExecuteStartEndActivity(t *testing.T) {
	ns := freshNS(t)
	activity := vocab.Activity("build")
	agent := vocab.Agent("alice")
	start := time.Now().UTC()
	end := start.Add(time.Hour)

	batch := []prov.Operation{
		prov.CreateNamespace{NS: ns, Name: "acme", UUID: ns.UUID},
		prov.StartActivity{NS: ns, ActivityID: activity, AgentID: agent, Time: start},
		prov.EndActivity{NS: ns, ActivityID: activity, AgentID: agent, Time: end},
	}
	after, _, err := executor.Execute(prov.New(), ns, batch)
	require.NoError(t, err)
	act := after.Activities[activity.String()]
	require.NotNil(t, act.Started)
	require.NotNil(t, act.Ended)
	require.True(t, act.Started.Equal(start))
	require.True(t, act.Ended.Equal(end))
	require.Len(t, after.WasAssociatedWith(), 1)
}

// An EndActivity that would leave ended before started is rejected with
// ConstraintViolation and the whole batch is discarded (§4.3 postCheck).
func TestExecuteEndBeforeStartRejected(t *testing.T) {
	ns := freshNS(t)
	activity := vocab.Activity("build")
	agent := vocab.Agent("alice")
	start := time.Now().UTC()
	end := start.Add(-time.Hour)

	batch := []prov.Operation{
		prov.StartActivity{NS: ns, ActivityID: activity, AgentID: agent, Time: start},
		prov.EndActivity{NS: ns, ActivityID: activity, AgentID: agent, Time: end},
	}
	_, writeSet, err := executor.Execute(prov.New(), ns, batch)
	require.Error(t, err)
	require.True(t, errors.IsKind(err, errors.KindConstraintViolation))
	require.Nil(t, writeSet)
}

// Scenario: ActivityUses applied twice for the same (activity, entity)
// pair is idempotent at the edge-set level — no duplicate edge appears.
func TestExecuteIdempotentUse(t *testing.T) {
	ns := freshNS(t)
	activity := vocab.Activity("build")
	entity := vocab.Entity("input")
	batch := []prov.Operation{
		prov.ActivityUses{NS: ns, ActivityID: activity, EntityID: entity},
		prov.ActivityUses{NS: ns, ActivityID: activity, EntityID: entity},
	}
	after, _, err := executor.Execute(prov.New(), ns, batch)
	require.NoError(t, err)
	require.Len(t, after.UsedEdges(), 1)
}

// Scenario: 100 agents requesting the same base name through
// CreateAgent must each get a distinct address once disambiguated names are
// supplied — the executor itself does not disambiguate (that is the
// pipeline/projection's job), but it must keep 100 distinctly-IDed agents
// perfectly isolated from each other with no collision in the write-set.
func TestExecuteHundredDisambiguatedNames(t *testing.T) {
	ns := freshNS(t)
	var batch []prov.Operation
	for i := 0; i < 100; i++ {
		name := "agent"
		if i > 0 {
			name = fmt.Sprintf("agent-%d", i)
		}
		batch = append(batch, prov.CreateAgent{NS: ns, ID: vocab.Agent(name)})
	}
	after, writeSet, err := executor.Execute(prov.New(), ns, batch)
	require.NoError(t, err)
	require.Len(t, after.Agents, 100)
	require.Len(t, writeSet, 100)
}

// Scenario: a signed attachment round-trips through Execute: a valid
// signature over (namespace, entity, locator) is accepted and promotes the
// entity's CurrentAttachment.
func TestExecuteSignedAttachmentRoundTrip(t *testing.T) {
	ns := freshNS(t)
	agent := vocab.Agent("alice")
	entity := vocab.Entity("artifact")
	identity := vocab.Identity("alice-key-1")
	attachment := vocab.Attachment("artifact-sig-1")
	registered := time.Now().UTC().Add(-time.Hour)
	signedAt := time.Now().UTC()

	key, err := signing.GenerateKey()
	require.NoError(t, err)
	pubHex := hex.EncodeToString(key.Public().Bytes())

	locator := "s3://bucket/artifact"
	message := []byte(ns.String() + ":" + entity.String() + ":" + locator)
	sigHex := hex.EncodeToString(key.Sign(message))

	batch := []prov.Operation{
		prov.CreateAgent{NS: ns, ID: agent},
		prov.RegisterKey{NS: ns, AgentID: agent, IdentityID: identity, PublicKey: pubHex, Registered: registered},
		prov.GenerateEntity{NS: ns, EntityID: entity, ActivityID: vocab.Activity("build")},
		prov.EntityAttach{
			NS: ns, EntityID: entity, AttachmentID: attachment, SignerIdentity: identity,
			SignatureHex: sigHex, Locator: locator, SignatureTime: signedAt,
		},
	}
	after, _, err := executor.Execute(prov.New(), ns, batch)
	require.NoError(t, err)
	e := after.Entities[entity.String()]
	require.NotNil(t, e.CurrentAttachment)
	require.Equal(t, attachment.String(), e.CurrentAttachment.String())
}

// A signature whose SignatureTime precedes the signer identity's
// registration time is rejected as stale, regardless of its cryptographic
// validity.
func TestExecuteStaleSignatureRejected(t *testing.T) {
	ns := freshNS(t)
	agent := vocab.Agent("alice")
	entity := vocab.Entity("artifact")
	identity := vocab.Identity("alice-key-1")
	attachment := vocab.Attachment("artifact-sig-1")
	registered := time.Now().UTC()
	signedAt := registered.Add(-time.Hour) // before registration

	key, err := signing.GenerateKey()
	require.NoError(t, err)
	pubHex := hex.EncodeToString(key.Public().Bytes())
	locator := "s3://bucket/artifact"
	message := []byte(ns.String() + ":" + entity.String() + ":" + locator)
	sigHex := hex.EncodeToString(key.Sign(message))

	batch := []prov.Operation{
		prov.CreateAgent{NS: ns, ID: agent},
		prov.RegisterKey{NS: ns, AgentID: agent, IdentityID: identity, PublicKey: pubHex, Registered: registered},
		prov.GenerateEntity{NS: ns, EntityID: entity, ActivityID: vocab.Activity("build")},
		prov.EntityAttach{
			NS: ns, EntityID: entity, AttachmentID: attachment, SignerIdentity: identity,
			SignatureHex: sigHex, Locator: locator, SignatureTime: signedAt,
		},
	}
	_, _, err = executor.Execute(prov.New(), ns, batch)
	require.Error(t, err)
	require.True(t, errors.IsKind(err, errors.KindStaleSignature))
}

// A batch whose operation declares a different namespace than the one
// Execute was called with is rejected outright (§4.3 namespace containment).
func TestExecuteNamespaceMismatchRejected(t *testing.T) {
	ns := freshNS(t)
	other := freshNS(t)
	_, _, err := executor.Execute(prov.New(), ns, []prov.Operation{
		prov.CreateAgent{NS: other, ID: vocab.Agent("alice")},
	})
	require.Error(t, err)
	require.True(t, errors.IsKind(err, errors.KindNamespaceMismatch))
}

// Dependencies always includes the operation's own namespace address, plus
// every resource address the operation references, and never fewer.
func TestDependenciesAlwaysIncludesNamespace(t *testing.T) {
	ns := freshNS(t)
	op := prov.CreateAgent{NS: ns, ID: vocab.Agent("alice")}
	deps := executor.Dependencies(ns, op)
	nsAddr := kv.New(ns.String(), ns.String())
	require.Contains(t, deps, nsAddr)
	require.Len(t, deps, 2) // namespace + agent
}

// Running the same batch through Execute in a permuted but causally valid
// order (here, a batch with no inter-operation ordering dependency) always
// yields the identical write-set: the executor's output depends only on
// the set of operations applied, not incidental slice ordering of
// independent creates.
func TestExecuteDeterministicAcrossPermutation(t *testing.T) {
	ns := freshNS(t)
	names := []string{"alice", "bob", "carol", "dave", "erin"}
	base := make([]prov.Operation, len(names))
	for i, n := range names {
		base[i] = prov.CreateAgent{NS: ns, ID: vocab.Agent(n)}
	}

	_, wantWriteSet, err := executor.Execute(prov.New(), ns, base)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 10; trial++ {
		permuted := make([]prov.Operation, len(base))
		copy(permuted, base)
		rng.Shuffle(len(permuted), func(i, j int) { permuted[i], permuted[j] = permuted[j], permuted[i] })
		_, gotWriteSet, err := executor.Execute(prov.New(), ns, permuted)
		require.NoError(t, err)
		require.Equal(t, wantWriteSet, gotWriteSet)
	}
}

// kv.New is injective across distinct resource IRIs in the same namespace
// for the sample of names exercised here: no two distinct (namespace,
// resource) pairs collide on the same address.
func TestAddressInjectivityAcrossNames(t *testing.T) {
	ns := freshNS(t)
	seen := map[kv.Address]string{}
	for i := 0; i < 500; i++ {
		name := "agent-" + uuid.New().String()
		addr := kv.New(ns.String(), vocab.Agent(name).String())
		if existing, ok := seen[addr]; ok {
			t.Fatalf("address collision between %q and %q", existing, name)
		}
		seen[addr] = name
	}
}
