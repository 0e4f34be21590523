package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle/ledger"
	"github.com/chronicle-ledger/chronicle/ledger/memledger"
	"github.com/chronicle-ledger/chronicle/projection"
	"github.com/chronicle-ledger/chronicle/transport"
)

func newTestPipeline(t *testing.T) (*Pipeline, context.Context) {
	t.Helper()
	ctx := context.Background()
	proj, err := projection.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = proj.Close() })

	ns := vocab.Namespace("acme", uuid.New())
	p := New(ns, memledger.New(), proj, nil)
	go func() { _ = p.Run(ctx) }()
	_, err = p.Submit(ctx, CreateNamespace{Name: "acme", UUID: ns.UUID})
	require.NoError(t, err)
	return p, ctx
}

// Many callers submitting CreateAgent for the same base name concurrently
// must still come out fully disambiguated with no collisions: the only
// way that holds is if the pipeline's single mailbox goroutine processes
// Disambiguate-then-commit for each command to completion before starting
// the next, never interleaving two commands' steps (§4.6 Ordering).
func TestPipelineSerializesConcurrentSubmissions(t *testing.T) {
	p, ctx := newTestPipeline(t)

	const n = 50
	var wg sync.WaitGroup
	names := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.Submit(ctx, CreateAgent{Name: "worker"})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "submission %d failed", i)
	}

	agents, err := p.proj.ListAgents(ctx, p.ns)
	require.NoError(t, err)
	require.Len(t, agents, n, "every concurrently submitted CreateAgent must have disambiguated to a distinct name")
}

// Submissions enqueued from a single caller are replied to in exactly the
// order they were submitted: Submit blocks until its own command is fully
// processed, so after each sequential call the projection holds exactly
// one more agent than before.
func TestPipelineProcessesInEnqueueOrder(t *testing.T) {
	p, ctx := newTestPipeline(t)

	var got []string
	for i := 0; i < 5; i++ {
		_, err := p.Submit(ctx, CreateAgent{Name: "alice"})
		require.NoError(t, err)
		agents, err := p.proj.ListAgents(ctx, p.ns)
		require.NoError(t, err)
		got = append(got, fmt.Sprintf("%d", len(agents)))
	}
	want := []string{"1", "2", "3", "4", "5"}
	require.Equal(t, want, got)
}

// blockingLedger never completes a submission, so Submit against it must
// surface SubmissionTimeout once the pipeline's bounded wait elapses,
// rather than hanging forever (§4.6 Timeouts).
type blockingLedger struct{}

func (blockingLedger) Submit(ctx context.Context, _ transport.Envelope) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingLedger) Subscribe(context.Context) (<-chan ledger.CommittedBatch, error) {
	return make(chan ledger.CommittedBatch), nil
}

var _ ledger.Ledger = blockingLedger{}

func TestPipelineSubmitTimesOut(t *testing.T) {
	ctx := context.Background()
	proj, err := projection.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = proj.Close() })

	ns := vocab.Namespace("acme", uuid.New())
	p := New(ns, blockingLedger{}, proj, nil)
	p.timeout = 20 * time.Millisecond
	go func() { _ = p.Run(ctx) }()

	_, err = p.Submit(ctx, CreateNamespace{Name: "acme", UUID: ns.UUID})
	require.Error(t, err)
	require.True(t, errors.IsKind(err, errors.KindSubmissionTimeout))
}
