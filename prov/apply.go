package prov

import (
	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
)

func (m *Model) stubNamespace(id vocab.ID) *Namespace {
	key := id.String()
	if ns, ok := m.Namespaces[key]; ok {
		return ns
	}
	ns := &Namespace{ID: id, Name: id.Decompose()}
	m.Namespaces[key] = ns
	return ns
}

func (m *Model) stubAgent(ns, id vocab.ID) *Agent {
	key := id.String()
	if a, ok := m.Agents[key]; ok {
		return a
	}
	a := &Agent{ID: id, Namespace: ns, Name: id.Decompose(), PriorIdentities: newIDSet()}
	m.Agents[key] = a
	return a
}

func (m *Model) stubActivity(ns, id vocab.ID) *Activity {
	key := id.String()
	if a, ok := m.Activities[key]; ok {
		return a
	}
	a := &Activity{ID: id, Namespace: ns, Name: id.Decompose()}
	m.Activities[key] = a
	return a
}

func (m *Model) stubEntity(ns, id vocab.ID) *Entity {
	key := id.String()
	if e, ok := m.Entities[key]; ok {
		return e
	}
	e := &Entity{ID: id, Namespace: ns, Name: id.Decompose(), PriorAttachments: newIDSet()}
	m.Entities[key] = e
	return e
}

// Apply mutates m according to op. It is a pure, total function: every
// precondition (signature validity, namespace containment, constraint
// checks such as ended >= started) is the caller's responsibility
// (core/executor); by the time Apply runs, op is known-valid and Apply
// always succeeds (§4.1 "pure mutators").
func (m *Model) Apply(op Operation) {
	switch o := op.(type) {
	case CreateNamespace:
		m.applyCreateNamespace(o)
	case CreateAgent:
		m.applyCreateAgent(o)
	case RegisterKey:
		m.applyRegisterKey(o)
	case CreateActivity:
		m.applyCreateActivity(o)
	case StartActivity:
		m.applyStartActivity(o)
	case EndActivity:
		m.applyEndActivity(o)
	case ActivityUses:
		m.applyActivityUses(o)
	case GenerateEntity:
		m.applyGenerateEntity(o)
	case EntityDerive:
		m.applyEntityDerive(o)
	case EntityAttach:
		m.applyEntityAttach(o)
	case ActsOnBehalfOf:
		m.applyActsOnBehalfOf(o)
	case SetAttributes:
		m.applySetAttributes(o)
	}
}

// FromOps applies every operation in ops, in order, to a fresh model
// (§4.1 "bulk from_ops").
func FromOps(ops []Operation) *Model {
	m := New()
	for _, op := range ops {
		m.Apply(op)
	}
	return m
}

func (m *Model) applyCreateNamespace(o CreateNamespace) {
	key := o.NS.String()
	if _, ok := m.Namespaces[key]; ok {
		return
	}
	m.Namespaces[key] = &Namespace{ID: o.NS, Name: o.Name, UUID: o.UUID}
}

func (m *Model) applyCreateAgent(o CreateAgent) {
	a := m.stubAgent(o.NS, o.ID)
	if o.Attributes.DomainType != "" || o.Attributes.Custom != nil {
		a.Attributes = o.Attributes
	}
}

func (m *Model) applyRegisterKey(o RegisterKey) {
	a := m.stubAgent(o.NS, o.AgentID)
	ident := &Identity{
		ID:          o.IdentityID,
		Namespace:   o.NS,
		OwningAgent: o.AgentID,
		PublicKey:   o.PublicKey,
		Registered:  o.Registered,
	}
	m.Identities[o.IdentityID.String()] = ident
	if a.CurrentIdentity != nil && a.CurrentIdentity.String() != o.IdentityID.String() {
		a.PriorIdentities.Add(*a.CurrentIdentity)
	}
	cur := o.IdentityID
	a.CurrentIdentity = &cur
}

func (m *Model) applyCreateActivity(o CreateActivity) {
	a := m.stubActivity(o.NS, o.ID)
	if o.Attributes.DomainType != "" || o.Attributes.Custom != nil {
		a.Attributes = o.Attributes
	}
}

func (m *Model) applyStartActivity(o StartActivity) {
	act := m.stubActivity(o.NS, o.ActivityID)
	m.stubAgent(o.NS, o.AgentID)
	if act.Started == nil {
		t := o.Time
		act.Started = &t
	}
	m.wasAssociatedWith.Add(Edge{From: o.ActivityID, To: o.AgentID})
}

func (m *Model) applyEndActivity(o EndActivity) {
	act := m.stubActivity(o.NS, o.ActivityID)
	m.stubAgent(o.NS, o.AgentID)
	if act.Ended == nil {
		t := o.Time
		act.Ended = &t
	}
	m.wasAssociatedWith.Add(Edge{From: o.ActivityID, To: o.AgentID})
}

func (m *Model) applyActivityUses(o ActivityUses) {
	m.stubActivity(o.NS, o.ActivityID)
	m.stubEntity(o.NS, o.EntityID)
	m.used.Add(Edge{From: o.ActivityID, To: o.EntityID})
}

func (m *Model) applyGenerateEntity(o GenerateEntity) {
	m.stubEntity(o.NS, o.EntityID)
	m.stubActivity(o.NS, o.ActivityID)
	m.wasGeneratedBy.Add(Edge{From: o.EntityID, To: o.ActivityID})
}

// ValidDerivationKind reports whether kind is one of the closed set of
// derivation kinds; any other value (including empty) collapses to
// DerivationUnspecified (§4.3 tie-break rule).
func ValidDerivationKind(kind DerivationKind) bool {
	switch kind {
	case DerivationUnspecified, DerivationRevision, DerivationQuotation, DerivationPrimarySource:
		return true
	default:
		return false
	}
}

func (m *Model) applyEntityDerive(o EntityDerive) {
	m.stubEntity(o.NS, o.GeneratedEntity)
	m.stubEntity(o.NS, o.UsedEntity)
	kind := o.Kind
	if !ValidDerivationKind(kind) {
		kind = DerivationUnspecified
	}
	m.wasDerivedFrom.Add(DerivationEdge{Generated: o.GeneratedEntity, Used: o.UsedEntity, Kind: kind})
}

func (m *Model) applyEntityAttach(o EntityAttach) {
	e := m.stubEntity(o.NS, o.EntityID)
	att := &Attachment{
		ID:             o.AttachmentID,
		Namespace:      o.NS,
		OwningEntity:   o.EntityID,
		SignerIdentity: o.SignerIdentity,
		SignatureHex:   o.SignatureHex,
		Locator:        o.Locator,
		SignatureTime:  o.SignatureTime,
	}
	m.Attachments[o.AttachmentID.String()] = att
	if e.CurrentAttachment != nil && e.CurrentAttachment.String() != o.AttachmentID.String() {
		e.PriorAttachments.Add(*e.CurrentAttachment)
	}
	cur := o.AttachmentID
	e.CurrentAttachment = &cur
}

func (m *Model) applyActsOnBehalfOf(o ActsOnBehalfOf) {
	m.stubAgent(o.NS, o.Delegate)
	m.stubAgent(o.NS, o.Responsible)
	m.actedOnBehalfOf.Add(ActedOnBehalfOfEdge{
		Delegate:    o.Delegate,
		Responsible: o.Responsible,
		Activity:    o.Activity,
		Role:        o.Role,
	})
}

func (m *Model) applySetAttributes(o SetAttributes) {
	key := o.Target.String()
	switch {
	case m.Agents[key] != nil:
		m.Agents[key].Attributes = o.Attributes
	case m.Activities[key] != nil:
		m.Activities[key].Attributes = o.Attributes
	case m.Entities[key] != nil:
		m.Entities[key].Attributes = o.Attributes
	default:
		// Target not yet seen under any kind: SetAttributes never creates
		// a stub on its own, since it carries no kind tag to stub with.
	}
}
