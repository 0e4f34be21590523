package projection_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle/prov"
	"github.com/chronicle-ledger/chronicle/projection"
)

func openProjection(t *testing.T) (*projection.Projection, context.Context) {
	t.Helper()
	ctx := context.Background()
	p, err := projection.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, ctx
}

// An unclaimed name disambiguates to itself; a second request for the same
// (namespace, kind, name) once it is taken advances to "<name>-1", and a
// third to "<name>-2" — the persistent counter never reuses a suffix even
// though nothing was ever deleted.
func TestDisambiguateCounterAdvances(t *testing.T) {
	p, ctx := openProjection(t)
	ns := vocab.Namespace("acme", uuid.New())

	first, err := p.Disambiguate(ctx, ns, vocab.KindAgent, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", first)

	require.NoError(t, p.Apply(ctx, []prov.Operation{prov.CreateAgent{NS: ns, ID: vocab.Agent(first)}}))

	second, err := p.Disambiguate(ctx, ns, vocab.KindAgent, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice-1", second)
	require.NoError(t, p.Apply(ctx, []prov.Operation{prov.CreateAgent{NS: ns, ID: vocab.Agent(second)}}))

	third, err := p.Disambiguate(ctx, ns, vocab.KindAgent, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice-2", third)
}

// Scenario: 100 agents requesting the same base name each resolve to a
// distinct disambiguated name, with no collisions across the whole run.
func TestDisambiguateHundredCollidingNames(t *testing.T) {
	p, ctx := openProjection(t)
	ns := vocab.Namespace("acme", uuid.New())

	seen := make(map[string]bool, 100)
	for i := 0; i < 100; i++ {
		name, err := p.Disambiguate(ctx, ns, vocab.KindAgent, "worker")
		require.NoError(t, err)
		require.False(t, seen[name], "disambiguated name %q reused", name)
		seen[name] = true
		require.NoError(t, p.Apply(ctx, []prov.Operation{prov.CreateAgent{NS: ns, ID: vocab.Agent(name)}}))
	}
	require.Len(t, seen, 100)
}

// Disambiguation is scoped per (namespace, kind): the same base name is
// available again in a different namespace or under a different kind.
func TestDisambiguateScopedByNamespaceAndKind(t *testing.T) {
	p, ctx := openProjection(t)
	ns1 := vocab.Namespace("acme", uuid.New())
	ns2 := vocab.Namespace("other", uuid.New())

	require.NoError(t, p.Apply(ctx, []prov.Operation{prov.CreateAgent{NS: ns1, ID: vocab.Agent("alice")}}))

	name, err := p.Disambiguate(ctx, ns2, vocab.KindAgent, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", name, "a name taken in one namespace must still be free in another")

	name, err = p.Disambiguate(ctx, ns1, vocab.KindActivity, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", name, "a name taken as an agent must still be free as an activity")
}

// Activity start/end timestamps must similarly survive an unrelated
// replay: once `started` is committed, a later batch that never mentions
// StartActivity again must not null it back out.
func TestApplyCoalescePreservesActivityTimestamps(t *testing.T) {
	p, ctx := openProjection(t)
	ns := vocab.Namespace("acme", uuid.New())
	activity := vocab.Activity("build")
	agent := vocab.Agent("alice")
	start := time.Now().UTC()

	require.NoError(t, p.Apply(ctx, []prov.Operation{
		prov.StartActivity{NS: ns, ActivityID: activity, AgentID: agent, Time: start},
	}))
	require.NoError(t, p.Apply(ctx, []prov.Operation{
		prov.ActivityUses{NS: ns, ActivityID: activity, EntityID: vocab.Entity("input")},
	}))

	act, err := p.LookupActivity(ctx, ns, "build")
	require.NoError(t, err)
	require.Equal(t, activity.String(), act.String())

	recent, ok, err := p.MostRecentStartedActivity(ctx, ns)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, activity.String(), recent.String())
}

// CurrentAgent round-trips through SetCurrentAgent, and remains unset
// until explicitly written.
func TestCurrentAgentFlag(t *testing.T) {
	p, ctx := openProjection(t)
	_, ok, err := p.CurrentAgent(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	agent := vocab.Agent("alice")
	require.NoError(t, p.SetCurrentAgent(ctx, agent))
	got, ok, err := p.CurrentAgent(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, agent.String(), got.String())
}
