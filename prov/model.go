// Package prov is the in-memory provenance model: namespaces, agents,
// activities, entities, identities, and attachments, connected by the five
// edge relations from the data model, plus the deterministic apply
// algorithm each operation implements. No package in this tree performs
// I/O from prov; it is pure, arena-based state (§9 Design notes).
package prov

import (
	"time"

	"github.com/chronicle-ledger/chronicle-lib/common/oset"
	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
)

// DerivationKind is the closed set of entity-derivation kinds (§3.2).
type DerivationKind string

const (
	DerivationUnspecified   DerivationKind = "unspecified"
	DerivationRevision      DerivationKind = "revision"
	DerivationQuotation     DerivationKind = "quotation"
	DerivationPrimarySource DerivationKind = "primary-source"
)

// Attributes is the typed bag of custom, domain-supplied properties any
// agent, activity, or entity may carry, plus an optional subclass IRI
// (§9 glossary "Domain type"). Restored from the original's attribute
// merge semantics: SetAttributes always replaces the whole bag.
type Attributes struct {
	DomainType string
	Custom     map[string]any
}

// Namespace is the root container every other resource is reachable
// through exactly once (§3.2).
type Namespace struct {
	ID   vocab.ID
	Name string
	UUID [16]byte
}

// Identity is a (public-key, owning-agent) binding (§3.2).
type Identity struct {
	ID          vocab.ID
	Namespace   vocab.ID
	OwningAgent vocab.ID
	PublicKey   string // hex-lowercase compressed 33-byte secp256k1 point; not DER-encoded
	Registered  time.Time
}

// Agent owns a current identity and a monotonically growing set of prior
// ones (§3.2, §3.3 invariant 3).
type Agent struct {
	ID              vocab.ID
	Namespace       vocab.ID
	Name            string
	CurrentIdentity *vocab.ID
	PriorIdentities *oset.Set[vocab.ID]
	Attributes      Attributes
}

// Activity moves through Unseen -> Stub -> Started -> Ended (§4.3).
type Activity struct {
	ID         vocab.ID
	Namespace  vocab.ID
	Name       string
	Started    *time.Time
	Ended      *time.Time
	Attributes Attributes
}

// Attachment is a signed blob assertion bound to an entity (§9 glossary).
type Attachment struct {
	ID             vocab.ID
	Namespace      vocab.ID
	OwningEntity   vocab.ID
	SignerIdentity vocab.ID
	SignatureHex   string
	Locator        string
	SignatureTime  time.Time
}

// Entity owns a current attachment and prior ones, symmetric to Agent
// (§3.2, §3.3 invariant 4).
type Entity struct {
	ID                vocab.ID
	Namespace         vocab.ID
	Name              string
	CurrentAttachment *vocab.ID
	PriorAttachments  *oset.Set[vocab.ID]
	Attributes        Attributes
}

func idLess(a, b vocab.ID) bool { return a.String() < b.String() }

func newIDSet() *oset.Set[vocab.ID] { return oset.New(idLess) }

// Edge is one endpoint pair of an edge relation, ordered so two identical
// edges from different apply orders compare equal.
type Edge struct{ From, To vocab.ID }

func edgeLess(a, b Edge) bool {
	if a.From.String() != b.From.String() {
		return a.From.String() < b.From.String()
	}
	return a.To.String() < b.To.String()
}

// ActedOnBehalfOfEdge is the delegate/responsible edge, carrying optional
// activity and role qualifiers (§3.2, restored from the original's
// acted_on_behalf_of edge).
type ActedOnBehalfOfEdge struct {
	Delegate    vocab.ID
	Responsible vocab.ID
	Activity    *vocab.ID
	Role        string
}

// actedLess orders on the full qualified tuple, not just the
// (delegate, responsible) pair: oset.Set treats any two items where
// neither compares less than the other as the same item, so two facts
// differing only by Activity/Role must still compare unequal or one
// silently replaces the other (§3.2, §4.3 tie-break rule "for sets,
// union").
func actedLess(a, b ActedOnBehalfOfEdge) bool {
	if a.Delegate.String() != b.Delegate.String() {
		return a.Delegate.String() < b.Delegate.String()
	}
	if a.Responsible.String() != b.Responsible.String() {
		return a.Responsible.String() < b.Responsible.String()
	}
	aAct, bAct := activityKey(a.Activity), activityKey(b.Activity)
	if aAct != bAct {
		return aAct < bAct
	}
	return a.Role < b.Role
}

// activityKey gives the nil activity qualifier a sort key that never
// collides with a real activity IRI.
func activityKey(id *vocab.ID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// DerivationEdge is the was-derived-from edge with its kind qualifier.
type DerivationEdge struct {
	Generated vocab.ID
	Used      vocab.ID
	Kind      DerivationKind
}

// derivationLess orders on the full (generated, used, kind) tuple: an
// entity can simultaneously be a revision of and a quotation from the
// same source (the original's from_json_ld.rs decodes WasRevisionOf,
// WasQuotedFrom, HadPrimarySource, and bare WasDerivedFrom as four
// distinct facts over the same entity pair), so Kind must participate
// in equality or one kind silently replaces another.
func derivationLess(a, b DerivationEdge) bool {
	if a.Generated.String() != b.Generated.String() {
		return a.Generated.String() < b.Generated.String()
	}
	if a.Used.String() != b.Used.String() {
		return a.Used.String() < b.Used.String()
	}
	return a.Kind < b.Kind
}

// Model is the full provenance graph for one namespace scope: an arena per
// resource kind plus the edge relation sets (§9 Design notes: arena, no
// in-memory back-pointers — relations hold identifiers only).
type Model struct {
	Namespaces  map[string]*Namespace
	Agents      map[string]*Agent
	Activities  map[string]*Activity
	Entities    map[string]*Entity
	Identities  map[string]*Identity
	Attachments map[string]*Attachment

	wasAssociatedWith *oset.Set[Edge] // (activity, agent)
	wasGeneratedBy    *oset.Set[Edge] // (entity, activity)
	used              *oset.Set[Edge] // (activity, entity)
	actedOnBehalfOf   *oset.Set[ActedOnBehalfOfEdge]
	wasDerivedFrom    *oset.Set[DerivationEdge]
}

// New returns an empty model.
func New() *Model {
	return &Model{
		Namespaces:        map[string]*Namespace{},
		Agents:            map[string]*Agent{},
		Activities:        map[string]*Activity{},
		Entities:          map[string]*Entity{},
		Identities:        map[string]*Identity{},
		Attachments:       map[string]*Attachment{},
		wasAssociatedWith: oset.New(edgeLess),
		wasGeneratedBy:    oset.New(edgeLess),
		used:              oset.New(edgeLess),
		actedOnBehalfOf:   oset.New(actedLess),
		wasDerivedFrom:    oset.New(derivationLess),
	}
}

// WasAssociatedWith, WasGeneratedByEdges, UsedEdges, ActedOnBehalfOfEdges,
// and WasDerivedFromEdges return the edges of each relation in ascending
// (from,to) order (§3.3 invariant 5).
func (m *Model) WasAssociatedWith() []Edge   { return m.wasAssociatedWith.Items() }
func (m *Model) WasGeneratedByEdges() []Edge { return m.wasGeneratedBy.Items() }
func (m *Model) UsedEdges() []Edge           { return m.used.Items() }
func (m *Model) ActedOnBehalfOfEdges() []ActedOnBehalfOfEdge {
	return m.actedOnBehalfOf.Items()
}
func (m *Model) WasDerivedFromEdges() []DerivationEdge { return m.wasDerivedFrom.Items() }
