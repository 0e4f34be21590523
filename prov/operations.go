package prov

import (
	"time"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
)

// Operation is the tagged-sum interface every business fact implements
// (§9 Design notes: a tagged sum with one variant per operation kind, no
// open inheritance). Namespace returns the scoping namespace identifier
// every dependency and namespace-containment check is keyed on.
type Operation interface {
	Namespace() vocab.ID
	isOperation()
}

// CreateNamespace inserts a namespace, or is a no-op if it already exists.
type CreateNamespace struct {
	NS   vocab.ID
	Name string
	UUID [16]byte
}

// CreateAgent creates an agent stub, or updates its attributes if present.
type CreateAgent struct {
	NS         vocab.ID
	ID         vocab.ID
	Attributes Attributes
}

// RegisterKeyKind distinguishes how the registered public key was obtained;
// the executor treats both the same, the distinction is carried for the
// pipeline's command-building step (§4.6).
type RegisterKeyKind string

const (
	RegisterKeyGenerated RegisterKeyKind = "generate"
	RegisterKeyImported  RegisterKeyKind = "import"
)

// RegisterKey adds a new identity for an agent, rotating the current one
// into prior-identities (§3.3 invariant 3).
type RegisterKey struct {
	NS         vocab.ID
	AgentID    vocab.ID
	IdentityID vocab.ID
	PublicKey  string
	Kind       RegisterKeyKind
	Registered time.Time
}

// CreateActivity creates an activity stub, or updates its attributes.
type CreateActivity struct {
	NS         vocab.ID
	ID         vocab.ID
	Attributes Attributes
}

// StartActivity sets Started if empty and always records association.
type StartActivity struct {
	NS         vocab.ID
	ActivityID vocab.ID
	AgentID    vocab.ID
	Time       time.Time
}

// EndActivity sets Ended if empty and always records association.
type EndActivity struct {
	NS         vocab.ID
	ActivityID vocab.ID
	AgentID    vocab.ID
	Time       time.Time
}

// ActivityUses adds a used(activity, entity) edge.
type ActivityUses struct {
	NS         vocab.ID
	ActivityID vocab.ID
	EntityID   vocab.ID
}

// GenerateEntity adds a was-generated-by(entity, activity) edge.
type GenerateEntity struct {
	NS         vocab.ID
	EntityID   vocab.ID
	ActivityID vocab.ID
}

// EntityDerive adds a was-derived-from edge; an unrecognised kind string
// collapses to DerivationUnspecified (§4.3 tie-break rule).
type EntityDerive struct {
	NS              vocab.ID
	GeneratedEntity vocab.ID
	UsedEntity      vocab.ID
	Kind            DerivationKind
}

// EntityAttach promotes a signed attachment to CurrentAttachment, pushing
// any previous one to PriorAttachments.
type EntityAttach struct {
	NS             vocab.ID
	EntityID       vocab.ID
	AttachmentID   vocab.ID
	SignerIdentity vocab.ID
	SignatureHex   string
	Locator        string
	SignatureTime  time.Time
}

// ActsOnBehalfOf adds a delegate/responsible edge, with optional activity
// and role qualifiers (restored from the original's acted_on_behalf_of).
type ActsOnBehalfOf struct {
	NS          vocab.ID
	Delegate    vocab.ID
	Responsible vocab.ID
	Activity    *vocab.ID
	Role        string
}

// SetAttributes replaces a target resource's attribute bag wholesale.
// Target must name an agent, activity, or entity already present (or
// stubbed) in the model.
type SetAttributes struct {
	NS         vocab.ID
	Target     vocab.ID
	Attributes Attributes
}

func (o CreateNamespace) Namespace() vocab.ID  { return o.NS }
func (o CreateAgent) Namespace() vocab.ID      { return o.NS }
func (o RegisterKey) Namespace() vocab.ID      { return o.NS }
func (o CreateActivity) Namespace() vocab.ID   { return o.NS }
func (o StartActivity) Namespace() vocab.ID    { return o.NS }
func (o EndActivity) Namespace() vocab.ID      { return o.NS }
func (o ActivityUses) Namespace() vocab.ID     { return o.NS }
func (o GenerateEntity) Namespace() vocab.ID   { return o.NS }
func (o EntityDerive) Namespace() vocab.ID     { return o.NS }
func (o EntityAttach) Namespace() vocab.ID     { return o.NS }
func (o ActsOnBehalfOf) Namespace() vocab.ID   { return o.NS }
func (o SetAttributes) Namespace() vocab.ID    { return o.NS }

func (CreateNamespace) isOperation()  {}
func (CreateAgent) isOperation()      {}
func (RegisterKey) isOperation()      {}
func (CreateActivity) isOperation()   {}
func (StartActivity) isOperation()    {}
func (EndActivity) isOperation()      {}
func (ActivityUses) isOperation()     {}
func (GenerateEntity) isOperation()   {}
func (EntityDerive) isOperation()     {}
func (EntityAttach) isOperation()     {}
func (ActsOnBehalfOf) isOperation()   {}
func (SetAttributes) isOperation()    {}
