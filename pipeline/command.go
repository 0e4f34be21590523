package pipeline

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle/prov"
)

// Command is a user-facing verb the pipeline resolves into one
// prov.Operation (§4.6). Implementations may look up or disambiguate
// names through the supplied Pipeline before building their operation.
type Command interface {
	build(ctx context.Context, p *Pipeline) (prov.Operation, error)
}

// CreateNamespace creates the namespace the pipeline is scoped to, or is a
// no-op if it already exists.
type CreateNamespace struct {
	Name string
	UUID uuid.UUID
}

func (c CreateNamespace) build(_ context.Context, p *Pipeline) (prov.Operation, error) {
	return prov.CreateNamespace{NS: p.ns, Name: c.Name, UUID: c.UUID}, nil
}

// CreateAgent creates a new agent, disambiguating Name against existing
// agents in the namespace.
type CreateAgent struct {
	Name       string
	DomainType string
	Custom     map[string]any
}

func (c CreateAgent) build(ctx context.Context, p *Pipeline) (prov.Operation, error) {
	name, err := p.proj.Disambiguate(ctx, p.ns, vocab.KindAgent, c.Name)
	if err != nil {
		return nil, err
	}
	return prov.CreateAgent{
		NS:         p.ns,
		ID:         vocab.Agent(name),
		Attributes: prov.Attributes{DomainType: c.DomainType, Custom: c.Custom},
	}, nil
}

// RegisterKey generates (or imports) a new signing key for an agent and
// registers it as the agent's current identity.
type RegisterKey struct {
	AgentName  string
	Kind       prov.RegisterKeyKind
	ImportedPublicKeyHex string // only consulted when Kind == RegisterKeyImported
	Registered time.Time
}

func (c RegisterKey) build(ctx context.Context, p *Pipeline) (prov.Operation, error) {
	agent, err := p.proj.LookupAgent(ctx, p.ns, c.AgentName)
	if err != nil {
		return nil, err
	}

	var pubKeyHex string
	switch c.Kind {
	case prov.RegisterKeyGenerated:
		pub, err := p.keys.Generate(c.AgentName)
		if err != nil {
			return nil, err
		}
		pubKeyHex = hex.EncodeToString(pub.Bytes())
	case prov.RegisterKeyImported:
		if c.ImportedPublicKeyHex == "" {
			return nil, errors.New(errors.KindMalformedInput, "imported key registration requires a public key")
		}
		pubKeyHex = c.ImportedPublicKeyHex
	default:
		return nil, errors.Newf(errors.KindMalformedInput, "unknown key registration kind %q", c.Kind)
	}

	identityName := c.AgentName + "-" + uuid.New().String()
	return prov.RegisterKey{
		NS:         p.ns,
		AgentID:    agent,
		IdentityID: vocab.Identity(identityName),
		PublicKey:  pubKeyHex,
		Kind:       c.Kind,
		Registered: c.Registered,
	}, nil
}

// CreateActivity creates a new activity, disambiguating Name.
type CreateActivity struct {
	Name       string
	DomainType string
	Custom     map[string]any
}

func (c CreateActivity) build(ctx context.Context, p *Pipeline) (prov.Operation, error) {
	name, err := p.proj.Disambiguate(ctx, p.ns, vocab.KindActivity, c.Name)
	if err != nil {
		return nil, err
	}
	return prov.CreateActivity{
		NS:         p.ns,
		ID:         vocab.Activity(name),
		Attributes: prov.Attributes{DomainType: c.DomainType, Custom: c.Custom},
	}, nil
}

// StartActivity starts an activity as a given (or the current) agent. An
// empty AgentName resolves to the projection's current-agent flag.
type StartActivity struct {
	ActivityName string
	AgentName    string
	Time         time.Time
}

func (c StartActivity) build(ctx context.Context, p *Pipeline) (prov.Operation, error) {
	activity, err := p.proj.LookupActivity(ctx, p.ns, c.ActivityName)
	if err != nil {
		return nil, err
	}
	agent, err := p.resolveAgent(ctx, c.AgentName)
	if err != nil {
		return nil, err
	}
	return prov.StartActivity{NS: p.ns, ActivityID: activity, AgentID: agent, Time: c.Time}, nil
}

// EndActivity ends an activity as a given (or the current) agent. An
// empty ActivityName resolves to the most recently started activity.
type EndActivity struct {
	ActivityName string
	AgentName    string
	Time         time.Time
}

func (c EndActivity) build(ctx context.Context, p *Pipeline) (prov.Operation, error) {
	activity, err := p.resolveActivity(ctx, c.ActivityName)
	if err != nil {
		return nil, err
	}
	agent, err := p.resolveAgent(ctx, c.AgentName)
	if err != nil {
		return nil, err
	}
	return prov.EndActivity{NS: p.ns, ActivityID: activity, AgentID: agent, Time: c.Time}, nil
}

// ActivityUses records that an activity used an entity.
type ActivityUses struct {
	ActivityName string
	EntityName   string
}

func (c ActivityUses) build(ctx context.Context, p *Pipeline) (prov.Operation, error) {
	activity, err := p.resolveActivity(ctx, c.ActivityName)
	if err != nil {
		return nil, err
	}
	entity, err := p.proj.LookupEntity(ctx, p.ns, c.EntityName)
	if err != nil {
		return nil, err
	}
	return prov.ActivityUses{NS: p.ns, ActivityID: activity, EntityID: entity}, nil
}

// GenerateEntity creates a new entity generated by an activity,
// disambiguating Name.
type GenerateEntity struct {
	Name         string
	ActivityName string
}

func (c GenerateEntity) build(ctx context.Context, p *Pipeline) (prov.Operation, error) {
	name, err := p.proj.Disambiguate(ctx, p.ns, vocab.KindEntity, c.Name)
	if err != nil {
		return nil, err
	}
	activity, err := p.resolveActivity(ctx, c.ActivityName)
	if err != nil {
		return nil, err
	}
	return prov.GenerateEntity{NS: p.ns, EntityID: vocab.Entity(name), ActivityID: activity}, nil
}

// EntityDerive records that one entity was derived from another.
type EntityDerive struct {
	GeneratedEntityName string
	UsedEntityName       string
	Kind                 prov.DerivationKind
}

func (c EntityDerive) build(ctx context.Context, p *Pipeline) (prov.Operation, error) {
	generated, err := p.proj.LookupEntity(ctx, p.ns, c.GeneratedEntityName)
	if err != nil {
		return nil, err
	}
	used, err := p.proj.LookupEntity(ctx, p.ns, c.UsedEntityName)
	if err != nil {
		return nil, err
	}
	kind := c.Kind
	if !prov.ValidDerivationKind(kind) {
		kind = prov.DerivationUnspecified
	}
	return prov.EntityDerive{NS: p.ns, GeneratedEntity: generated, UsedEntity: used, Kind: kind}, nil
}

// EntityAttach signs and binds a locator to an entity as SignerAgentName's
// current identity.
type EntityAttach struct {
	EntityName      string
	SignerAgentName string
	Locator         string
	Time            time.Time
}

func (c EntityAttach) build(ctx context.Context, p *Pipeline) (prov.Operation, error) {
	entity, err := p.proj.LookupEntity(ctx, p.ns, c.EntityName)
	if err != nil {
		return nil, err
	}
	signerAgent, err := p.resolveAgent(ctx, c.SignerAgentName)
	if err != nil {
		return nil, err
	}
	agent, ok := p.shadow.Agents[signerAgent.String()]
	if !ok || agent.CurrentIdentity == nil {
		return nil, errors.Newf(errors.KindUnknownSigner, "agent %q has no registered identity", signerAgent)
	}
	signerIdentity := *agent.CurrentIdentity

	message := attachMessage(p.ns, entity, c.Locator)
	sig, err := p.keys.Sign(c.SignerAgentName, message)
	if err != nil {
		return nil, err
	}

	return prov.EntityAttach{
		NS:             p.ns,
		EntityID:       entity,
		AttachmentID:   vocab.Attachment(c.EntityName + "-" + uuid.New().String()),
		SignerIdentity: signerIdentity,
		SignatureHex:   hex.EncodeToString(sig),
		Locator:        c.Locator,
		SignatureTime:  c.Time,
	}, nil
}

// attachMessage must match core/executor's verification convention
// exactly: the (namespace, entity, locator) triple the signature binds.
func attachMessage(ns, entity vocab.ID, locator string) []byte {
	return []byte(ns.String() + ":" + entity.String() + ":" + locator)
}

// ActsOnBehalfOf delegates responsibility, with optional activity/role
// qualifiers.
type ActsOnBehalfOf struct {
	DelegateName    string
	ResponsibleName string
	ActivityName    string
	Role            string
}

func (c ActsOnBehalfOf) build(ctx context.Context, p *Pipeline) (prov.Operation, error) {
	delegate, err := p.proj.LookupAgent(ctx, p.ns, c.DelegateName)
	if err != nil {
		return nil, err
	}
	responsible, err := p.proj.LookupAgent(ctx, p.ns, c.ResponsibleName)
	if err != nil {
		return nil, err
	}
	var activity *vocab.ID
	if c.ActivityName != "" {
		act, err := p.proj.LookupActivity(ctx, p.ns, c.ActivityName)
		if err != nil {
			return nil, err
		}
		activity = &act
	}
	return prov.ActsOnBehalfOf{NS: p.ns, Delegate: delegate, Responsible: responsible, Activity: activity, Role: c.Role}, nil
}

// SetAttributes replaces a target resource's attribute bag wholesale.
type SetAttributes struct {
	TargetName string
	TargetKind vocab.Kind
	DomainType string
	Custom     map[string]any
}

func (c SetAttributes) build(ctx context.Context, p *Pipeline) (prov.Operation, error) {
	var target vocab.ID
	var err error
	switch c.TargetKind {
	case vocab.KindAgent:
		target, err = p.proj.LookupAgent(ctx, p.ns, c.TargetName)
	case vocab.KindActivity:
		target, err = p.proj.LookupActivity(ctx, p.ns, c.TargetName)
	case vocab.KindEntity:
		target, err = p.proj.LookupEntity(ctx, p.ns, c.TargetName)
	default:
		return nil, errors.Newf(errors.KindMalformedInput, "attributes cannot target kind %q", c.TargetKind)
	}
	if err != nil {
		return nil, err
	}
	return prov.SetAttributes{
		NS:         p.ns,
		Target:     target,
		Attributes: prov.Attributes{DomainType: c.DomainType, Custom: c.Custom},
	}, nil
}
