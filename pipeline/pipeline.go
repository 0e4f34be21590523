// Package pipeline implements the command pipeline (§4.6/C7): a
// single-writer actor that resolves user-facing commands into operations,
// validates them against a local shadow graph, submits them to the ledger
// transport, and — on commit — replays them into the query projection.
// Grounded on erigon's turbo/snapshotsync orchestration style: one
// long-lived goroutine draining a channel of work items, with
// golang.org/x/sync/errgroup supervising that drain goroutine.
package pipeline

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle-lib/keystore"
	"github.com/chronicle-ledger/chronicle-lib/log"
	"github.com/chronicle-ledger/chronicle/core/executor"
	"github.com/chronicle-ledger/chronicle/ledger"
	"github.com/chronicle-ledger/chronicle/processor"
	"github.com/chronicle-ledger/chronicle/projection"
	"github.com/chronicle-ledger/chronicle/prov"
	"github.com/chronicle-ledger/chronicle/transport"
)

var logger = log.New("pipeline")

// DefaultSubmitTimeout is the bounded wait on a ledger submission before
// the pipeline gives up with SubmissionTimeout (§4.6 Timeouts).
const DefaultSubmitTimeout = 10 * time.Second

// maxSubmitRetries bounds retry of transient transport errors (§5 Retry
// policy); permanent errors (protocol mismatch, rejected envelope)
// surface immediately via backoff.Permanent.
const maxSubmitRetries = 3

// submitSemaphore bounds how many ledger submissions may be in-flight at
// once across every Pipeline in the process, guarding against a slow
// transport starving an unrelated caller.
var submitSemaphore = semaphore.NewWeighted(4)

// Reply is what a command resolves to: a committed transaction id, or an
// error (malformed input, executor rejection, or a submission timeout).
type Reply struct {
	TxID string
	Err  error
}

type job struct {
	ctx   context.Context
	cmd   Command
	reply chan Reply
}

// Pipeline is the single-writer actor for one namespace. The zero value
// is not usable; build one with New.
type Pipeline struct {
	ns      vocab.ID
	ledger  ledger.Ledger
	proj    *projection.Projection
	keys    keystore.Store
	timeout time.Duration

	shadow  *prov.Model
	mailbox chan job
}

// New constructs a Pipeline scoped to ns, backed by l for transport, proj
// for reference resolution and replay, and keys for signing. Call Run to
// start draining its mailbox.
func New(ns vocab.ID, l ledger.Ledger, proj *projection.Projection, keys keystore.Store) *Pipeline {
	return &Pipeline{
		ns:      ns,
		ledger:  l,
		proj:    proj,
		keys:    keys,
		timeout: DefaultSubmitTimeout,
		shadow:  prov.New(),
		mailbox: make(chan job, 64),
	}
}

// Submit enqueues cmd and blocks until it is fully processed: resolved,
// validated, submitted, committed, and replayed into the projection
// (§4.6 steps 1-5), or ctx is cancelled first.
func (p *Pipeline) Submit(ctx context.Context, cmd Command) (string, error) {
	j := job{ctx: ctx, cmd: cmd, reply: make(chan Reply, 1)}
	select {
	case p.mailbox <- j:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case r := <-j.reply:
		return r.TxID, r.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Run drains the mailbox strictly in enqueue order until ctx is
// cancelled, never interleaving the steps of two commands (§4.6
// Ordering). It returns when ctx is done or the mailbox loop errors.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.drain(ctx)
	})
	return g.Wait()
}

func (p *Pipeline) drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-p.mailbox:
			p.process(j)
		}
	}
}

func (p *Pipeline) process(j job) {
	ctx := j.ctx
	op, err := j.cmd.build(ctx, p)
	if err != nil {
		p.reply(j, Reply{Err: err})
		return
	}

	// Step 3: validate against the shadow graph first, for fast failure
	// before any I/O (§4.6 step 3).
	if _, _, err := executor.Execute(p.shadow, p.ns, []prov.Operation{op}); err != nil {
		p.reply(j, Reply{Err: err})
		return
	}

	frag, err := processor.EncodeOperation(op)
	if err != nil {
		p.reply(j, Reply{Err: err})
		return
	}
	env := transport.Envelope{
		ProtocolVersion: transport.ProtocolVersion,
		SpanID:          uuid.New().String(),
		Body:            []string{frag},
	}

	submitCtx, cancel := context.WithTimeout(ctx, p.timeout)
	txID, err := p.submitWithRetry(submitCtx, env)
	cancel()
	if err != nil {
		if errors.IsKind(err, errors.KindSubmissionTimeout) {
			logger.Debugw("submission timed out, projection untouched", "namespace", p.ns.String())
		}
		p.reply(j, Reply{Err: err})
		return
	}

	// Step 5: commit locally — advance the shadow graph and replay into
	// the projection — only after the ledger has accepted the batch.
	newShadow, _, err := executor.Execute(p.shadow, p.ns, []prov.Operation{op})
	if err != nil {
		// Unreachable in practice: identical validation already passed
		// above against the same shadow graph.
		p.reply(j, Reply{Err: err})
		return
	}
	p.shadow = newShadow

	if err := p.proj.Apply(ctx, []prov.Operation{op}); err != nil {
		p.reply(j, Reply{Err: err})
		return
	}
	p.reply(j, Reply{TxID: txID})
}

func (p *Pipeline) reply(j job, r Reply) {
	select {
	case j.reply <- r:
	default:
		logger.Debugw("dropped reply channel, batch outcome unobserved by caller", "namespace", p.ns.String())
	}
}

// submitWithRetry submits env to the ledger transport, retrying transient
// transport failures up to maxSubmitRetries times with exponential
// backoff; a context deadline exceeded surfaces as SubmissionTimeout
// (§4.6 Timeouts, §5 Retry policy).
func (p *Pipeline) submitWithRetry(ctx context.Context, env transport.Envelope) (string, error) {
	if err := submitSemaphore.Acquire(ctx, 1); err != nil {
		return "", errors.Wrap(errors.KindSubmissionTimeout, err, "acquire submit slot")
	}
	defer submitSemaphore.Release(1)

	var txID string
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxSubmitRetries)
	operation := func() error {
		id, err := p.ledger.Submit(ctx, env)
		if err != nil {
			if errors.IsKind(err, errors.KindUnsupportedProtocol) || errors.IsKind(err, errors.KindMalformedInput) {
				return backoff.Permanent(err)
			}
			return err
		}
		txID = id
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrap(errors.KindSubmissionTimeout, err, "ledger submission timed out")
		}
		return "", err
	}
	return txID, nil
}

// resolveAgent resolves an explicit agent name, or falls back to the
// projection's current-agent flag when name is empty (§4.6 step 1).
func (p *Pipeline) resolveAgent(ctx context.Context, name string) (vocab.ID, error) {
	if name != "" {
		return p.proj.LookupAgent(ctx, p.ns, name)
	}
	agent, ok, err := p.proj.CurrentAgent(ctx)
	if err != nil {
		return vocab.ID{}, err
	}
	if !ok {
		return vocab.ID{}, errors.New(errors.KindMalformedInput, "no agent name given and no current agent is set")
	}
	return agent, nil
}

// resolveActivity resolves an explicit activity name, or falls back to
// the most recently started activity in the namespace when name is empty
// (§4.6 step 1).
func (p *Pipeline) resolveActivity(ctx context.Context, name string) (vocab.ID, error) {
	if name != "" {
		return p.proj.LookupActivity(ctx, p.ns, name)
	}
	activity, ok, err := p.proj.MostRecentStartedActivity(ctx, p.ns)
	if err != nil {
		return vocab.ID{}, err
	}
	if !ok {
		return vocab.ID{}, errors.New(errors.KindMalformedInput, "no activity name given and none has been started")
	}
	return activity, nil
}
