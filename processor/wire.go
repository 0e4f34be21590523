package processor

import (
	"encoding/json"
	"time"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle/prov"
)

// OperationWire is the envelope-body encoding of a single prov.Operation:
// one JSON object per batch entry, tagged by Op, carrying only the fields
// that variant needs. This is deliberately distinct from the resource
// encoding in prov/jsonld — operations are commands, not resources, and
// never appear in a committed graph.
type OperationWire struct {
	Op string `json:"op"`

	NS         vocab.ID   `json:"ns"`
	ID         *vocab.ID  `json:"id,omitempty"`
	AgentID    *vocab.ID  `json:"agentId,omitempty"`
	ActivityID *vocab.ID  `json:"activityId,omitempty"`
	EntityID   *vocab.ID  `json:"entityId,omitempty"`
	IdentityID *vocab.ID  `json:"identityId,omitempty"`
	Generated  *vocab.ID  `json:"generatedEntity,omitempty"`
	Used       *vocab.ID  `json:"usedEntity,omitempty"`
	Attachment *vocab.ID  `json:"attachmentId,omitempty"`
	Signer     *vocab.ID  `json:"signerIdentity,omitempty"`
	Delegate   *vocab.ID  `json:"delegate,omitempty"`
	Responsible *vocab.ID `json:"responsible,omitempty"`
	Activity   *vocab.ID  `json:"activity,omitempty"`
	Target     *vocab.ID  `json:"target,omitempty"`

	Name       string              `json:"name,omitempty"`
	UUID       [16]byte            `json:"uuid,omitempty"`
	PublicKey  string              `json:"publicKey,omitempty"`
	KeyKind    prov.RegisterKeyKind `json:"keyKind,omitempty"`
	Registered *time.Time          `json:"registered,omitempty"`
	Time       *time.Time          `json:"time,omitempty"`
	Kind       prov.DerivationKind `json:"derivationKind,omitempty"`
	SignatureHex  string           `json:"signatureHex,omitempty"`
	Locator       string           `json:"locator,omitempty"`
	SignatureTime *time.Time       `json:"signatureTime,omitempty"`
	Role          string           `json:"role,omitempty"`
	Attributes    *prov.Attributes `json:"attributes,omitempty"`
}

// EncodeOperation converts a typed prov.Operation into its wire fragment
// for inclusion in an envelope body, the inverse of OperationWire.ToOperation.
func EncodeOperation(op prov.Operation) (string, error) {
	w := OperationWire{NS: op.Namespace()}
	switch o := op.(type) {
	case prov.CreateNamespace:
		w.Op = "CreateNamespace"
		w.Name = o.Name
		w.UUID = o.UUID
	case prov.CreateAgent:
		w.Op = "CreateAgent"
		w.ID = &o.ID
		w.Attributes = &o.Attributes
	case prov.RegisterKey:
		w.Op = "RegisterKey"
		w.AgentID = &o.AgentID
		w.IdentityID = &o.IdentityID
		w.PublicKey = o.PublicKey
		w.KeyKind = o.Kind
		reg := o.Registered
		w.Registered = &reg
	case prov.CreateActivity:
		w.Op = "CreateActivity"
		w.ID = &o.ID
		w.Attributes = &o.Attributes
	case prov.StartActivity:
		w.Op = "StartActivity"
		w.ActivityID = &o.ActivityID
		w.AgentID = &o.AgentID
		t := o.Time
		w.Time = &t
	case prov.EndActivity:
		w.Op = "EndActivity"
		w.ActivityID = &o.ActivityID
		w.AgentID = &o.AgentID
		t := o.Time
		w.Time = &t
	case prov.ActivityUses:
		w.Op = "ActivityUses"
		w.ActivityID = &o.ActivityID
		w.EntityID = &o.EntityID
	case prov.GenerateEntity:
		w.Op = "GenerateEntity"
		w.EntityID = &o.EntityID
		w.ActivityID = &o.ActivityID
	case prov.EntityDerive:
		w.Op = "EntityDerive"
		w.Generated = &o.GeneratedEntity
		w.Used = &o.UsedEntity
		w.Kind = o.Kind
	case prov.EntityAttach:
		w.Op = "EntityAttach"
		w.EntityID = &o.EntityID
		w.Attachment = &o.AttachmentID
		w.Signer = &o.SignerIdentity
		w.SignatureHex = o.SignatureHex
		w.Locator = o.Locator
		st := o.SignatureTime
		w.SignatureTime = &st
	case prov.ActsOnBehalfOf:
		w.Op = "ActsOnBehalfOf"
		w.Delegate = &o.Delegate
		w.Responsible = &o.Responsible
		w.Activity = o.Activity
		w.Role = o.Role
	case prov.SetAttributes:
		w.Op = "SetAttributes"
		w.Target = &o.Target
		w.Attributes = &o.Attributes
	default:
		return "", errors.Newf(errors.KindMalformedInput, "unknown operation type %T", op)
	}
	b, err := json.Marshal(w)
	if err != nil {
		return "", errors.Wrap(errors.KindMalformedInput, err, "encode operation")
	}
	return string(b), nil
}

func emptyAttrs() prov.Attributes { return prov.Attributes{} }

// ToOperation reconstructs the typed prov.Operation the wire fragment
// describes.
func (w OperationWire) ToOperation() (prov.Operation, error) {
	attrs := func() prov.Attributes {
		if w.Attributes != nil {
			return *w.Attributes
		}
		return emptyAttrs()
	}
	zeroTime := func(t *time.Time) time.Time {
		if t != nil {
			return *t
		}
		return time.Time{}
	}
	switch w.Op {
	case "CreateNamespace":
		return prov.CreateNamespace{NS: w.NS, Name: w.Name, UUID: w.UUID}, nil
	case "CreateAgent":
		return prov.CreateAgent{NS: w.NS, ID: derefID(w.ID), Attributes: attrs()}, nil
	case "RegisterKey":
		return prov.RegisterKey{
			NS:         w.NS,
			AgentID:    derefID(w.AgentID),
			IdentityID: derefID(w.IdentityID),
			PublicKey:  w.PublicKey,
			Kind:       w.KeyKind,
			Registered: zeroTime(w.Registered),
		}, nil
	case "CreateActivity":
		return prov.CreateActivity{NS: w.NS, ID: derefID(w.ID), Attributes: attrs()}, nil
	case "StartActivity":
		return prov.StartActivity{NS: w.NS, ActivityID: derefID(w.ActivityID), AgentID: derefID(w.AgentID), Time: zeroTime(w.Time)}, nil
	case "EndActivity":
		return prov.EndActivity{NS: w.NS, ActivityID: derefID(w.ActivityID), AgentID: derefID(w.AgentID), Time: zeroTime(w.Time)}, nil
	case "ActivityUses":
		return prov.ActivityUses{NS: w.NS, ActivityID: derefID(w.ActivityID), EntityID: derefID(w.EntityID)}, nil
	case "GenerateEntity":
		return prov.GenerateEntity{NS: w.NS, EntityID: derefID(w.EntityID), ActivityID: derefID(w.ActivityID)}, nil
	case "EntityDerive":
		return prov.EntityDerive{NS: w.NS, GeneratedEntity: derefID(w.Generated), UsedEntity: derefID(w.Used), Kind: w.Kind}, nil
	case "EntityAttach":
		return prov.EntityAttach{
			NS:             w.NS,
			EntityID:       derefID(w.EntityID),
			AttachmentID:   derefID(w.Attachment),
			SignerIdentity: derefID(w.Signer),
			SignatureHex:   w.SignatureHex,
			Locator:        w.Locator,
			SignatureTime:  zeroTime(w.SignatureTime),
		}, nil
	case "ActsOnBehalfOf":
		return prov.ActsOnBehalfOf{NS: w.NS, Delegate: derefID(w.Delegate), Responsible: derefID(w.Responsible), Activity: w.Activity, Role: w.Role}, nil
	case "SetAttributes":
		return prov.SetAttributes{NS: w.NS, Target: derefID(w.Target), Attributes: attrs()}, nil
	default:
		return nil, errors.Newf(errors.KindMalformedInput, "unknown operation tag %q", w.Op)
	}
}

func derefID(id *vocab.ID) vocab.ID {
	if id == nil {
		return vocab.ID{}
	}
	return *id
}
