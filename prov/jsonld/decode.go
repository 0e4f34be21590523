package jsonld

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle/prov"
)

func decodeAttributes(n Node) (prov.Attributes, error) {
	var a prov.Attributes
	if raw, ok := n.Properties[PredDomainType]; ok {
		if err := decodeLiteral(raw, &a.DomainType); err != nil {
			return a, err
		}
	}
	if raw, ok := n.Properties[PredAttributes]; ok {
		var blob json.RawMessage
		if err := decodeLiteral(raw, &blob); err != nil {
			return a, err
		}
		if err := json.Unmarshal(blob, &a.Custom); err != nil {
			return a, errors.Wrap(errors.KindMalformedDocument, err, "decode custom attributes")
		}
	}
	return a, nil
}

func parseID(s string) (vocab.ID, error) {
	return vocab.Parse(s)
}

// DecodeNodes reconstructs a provenance model from its expanded node form
// (the inverse of EncodeNodes). Unknown node types are rejected with
// MalformedDocument; unknown predicate keys already fail inside Node's
// UnmarshalJSON with UnknownTerm.
func DecodeNodes(nodes []Node) (*prov.Model, error) {
	m := prov.New()

	var ns vocab.ID
	for _, n := range nodes {
		if len(n.Type) > 0 && n.Type[len(n.Type)-1] == ClassNamespace {
			id, err := parseID(n.ID)
			if err != nil {
				return nil, err
			}
			ns = id
			break
		}
	}

	for _, n := range nodes {
		class := n.Type[len(n.Type)-1]
		switch class {
		case ClassNamespace:
			id, err := parseID(n.ID)
			if err != nil {
				return nil, err
			}
			var name, uuidStr string
			if err := decodeLiteral(n.Properties[PredName], &name); err != nil {
				return nil, err
			}
			if err := decodeLiteral(n.Properties[PredUUID], &uuidStr); err != nil {
				return nil, err
			}
			u, err := uuid.Parse(uuidStr)
			if err != nil {
				return nil, errors.Wrap(errors.KindMalformedDocument, err, "decode namespace uuid")
			}
			m.Namespaces[id.String()] = &prov.Namespace{ID: id, Name: name, UUID: u}

		case ClassAgent:
			if err := decodeAgent(m, ns, n); err != nil {
				return nil, err
			}
		case ClassActivity:
			if err := decodeActivity(m, ns, n); err != nil {
				return nil, err
			}
		case ClassEntity:
			if err := decodeEntity(m, ns, n); err != nil {
				return nil, err
			}
		case ClassIdentity:
			if err := decodeIdentity(m, ns, n); err != nil {
				return nil, err
			}
		case ClassAttachment:
			if err := decodeAttachment(m, ns, n); err != nil {
				return nil, err
			}
		case "chronicle:Edge":
			if err := decodeEdge(m, n); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Newf(errors.KindMalformedDocument, "unrecognised node type %q", class)
		}
	}
	return m, nil
}

func decodeAgent(m *prov.Model, ns vocab.ID, n Node) error {
	id, err := parseID(n.ID)
	if err != nil {
		return err
	}
	attrs, err := decodeAttributes(n)
	if err != nil {
		return err
	}
	a := prov.GetOrCreateAgentStub(m, ns, id)
	a.Attributes = attrs
	if raw, ok := n.Properties[PredCurrentIdentity]; ok {
		ref, err := decodeRef(raw)
		if err != nil {
			return err
		}
		cur, err := parseID(ref)
		if err != nil {
			return err
		}
		a.CurrentIdentity = &cur
	}
	if raw, ok := n.Properties[PredPriorIdentity]; ok {
		refs, err := decodeRefArray(raw)
		if err != nil {
			return err
		}
		for _, r := range refs {
			pid, err := parseID(r)
			if err != nil {
				return err
			}
			a.PriorIdentities.Add(pid)
		}
	}
	return nil
}

func decodeActivity(m *prov.Model, ns vocab.ID, n Node) error {
	id, err := parseID(n.ID)
	if err != nil {
		return err
	}
	attrs, err := decodeAttributes(n)
	if err != nil {
		return err
	}
	act := prov.GetOrCreateActivityStub(m, ns, id)
	act.Attributes = attrs
	if raw, ok := n.Properties[PredStarted]; ok {
		var s string
		if err := decodeLiteral(raw, &s); err != nil {
			return err
		}
		t, err := parseTime(s)
		if err != nil {
			return err
		}
		act.Started = &t
	}
	if raw, ok := n.Properties[PredEnded]; ok {
		var s string
		if err := decodeLiteral(raw, &s); err != nil {
			return err
		}
		t, err := parseTime(s)
		if err != nil {
			return err
		}
		act.Ended = &t
	}
	return nil
}

func decodeEntity(m *prov.Model, ns vocab.ID, n Node) error {
	id, err := parseID(n.ID)
	if err != nil {
		return err
	}
	attrs, err := decodeAttributes(n)
	if err != nil {
		return err
	}
	e := prov.GetOrCreateEntityStub(m, ns, id)
	e.Attributes = attrs
	if raw, ok := n.Properties[PredCurrentAttachment]; ok {
		ref, err := decodeRef(raw)
		if err != nil {
			return err
		}
		cur, err := parseID(ref)
		if err != nil {
			return err
		}
		e.CurrentAttachment = &cur
	}
	if raw, ok := n.Properties[PredPriorAttachment]; ok {
		refs, err := decodeRefArray(raw)
		if err != nil {
			return err
		}
		for _, r := range refs {
			pid, err := parseID(r)
			if err != nil {
				return err
			}
			e.PriorAttachments.Add(pid)
		}
	}
	return nil
}

func decodeIdentity(m *prov.Model, ns vocab.ID, n Node) error {
	id, err := parseID(n.ID)
	if err != nil {
		return err
	}
	ownerRef, err := decodeRef(n.Properties[PredOwningAgent])
	if err != nil {
		return err
	}
	owner, err := parseID(ownerRef)
	if err != nil {
		return err
	}
	var pubKey, registered string
	if err := decodeLiteral(n.Properties[PredPublicKey], &pubKey); err != nil {
		return err
	}
	if err := decodeLiteral(n.Properties[PredRegistered], &registered); err != nil {
		return err
	}
	t, err := parseTime(registered)
	if err != nil {
		return err
	}
	m.Identities[id.String()] = &prov.Identity{
		ID: id, Namespace: ns, OwningAgent: owner, PublicKey: pubKey, Registered: t,
	}
	return nil
}

func decodeAttachment(m *prov.Model, ns vocab.ID, n Node) error {
	id, err := parseID(n.ID)
	if err != nil {
		return err
	}
	entityRef, err := decodeRef(n.Properties[PredOwningEntity])
	if err != nil {
		return err
	}
	entityID, err := parseID(entityRef)
	if err != nil {
		return err
	}
	signerRef, err := decodeRef(n.Properties[PredSignerIdentity])
	if err != nil {
		return err
	}
	signerID, err := parseID(signerRef)
	if err != nil {
		return err
	}
	var sigHex, signedAt, locator string
	if err := decodeLiteral(n.Properties[PredSignature], &sigHex); err != nil {
		return err
	}
	if err := decodeLiteral(n.Properties[PredSignatureTime], &signedAt); err != nil {
		return err
	}
	if raw, ok := n.Properties[PredLocator]; ok {
		if err := decodeLiteral(raw, &locator); err != nil {
			return err
		}
	}
	t, err := parseTime(signedAt)
	if err != nil {
		return err
	}
	m.Attachments[id.String()] = &prov.Attachment{
		ID: id, Namespace: ns, OwningEntity: entityID, SignerIdentity: signerID,
		SignatureHex: sigHex, Locator: locator, SignatureTime: t,
	}
	return nil
}

func decodeEdge(m *prov.Model, n Node) error {
	var predicate string
	if err := decodeLiteral(n.Properties["chronicle:edgePredicate"], &predicate); err != nil {
		return err
	}
	fromRef, err := decodeRef(n.Properties["chronicle:edgeFrom"])
	if err != nil {
		return err
	}
	toRef, err := decodeRef(n.Properties["chronicle:edgeTo"])
	if err != nil {
		return err
	}
	from, err := parseID(fromRef)
	if err != nil {
		return err
	}
	to, err := parseID(toRef)
	if err != nil {
		return err
	}
	switch predicate {
	case PredWasAssociatedWith:
		prov.AddWasAssociatedWith(m, from, to)
	case PredWasGeneratedBy:
		prov.AddWasGeneratedBy(m, from, to)
	case PredUsed:
		prov.AddUsed(m, from, to)
	case PredActedOnBehalfOf:
		edge := prov.ActedOnBehalfOfEdge{Delegate: from, Responsible: to}
		if raw, ok := n.Properties[PredHadActivity]; ok {
			ref, err := decodeRef(raw)
			if err != nil {
				return err
			}
			actID, err := parseID(ref)
			if err != nil {
				return err
			}
			edge.Activity = &actID
		}
		if raw, ok := n.Properties[PredHadRole]; ok {
			if err := decodeLiteral(raw, &edge.Role); err != nil {
				return err
			}
		}
		prov.AddActedOnBehalfOf(m, edge)
	case PredWasDerivedFrom:
		var kind string
		if raw, ok := n.Properties[PredDerivationKind]; ok {
			if err := decodeLiteral(raw, &kind); err != nil {
				return err
			}
		}
		if kind == "" {
			kind = string(prov.DerivationUnspecified)
		}
		prov.AddWasDerivedFrom(m, from, to, prov.DerivationKind(kind))
	default:
		return errors.Newf(errors.KindUnknownTerm, "%s", predicate)
	}
	return nil
}

// Decode parses canonical linked-data JSON text into a provenance model.
func Decode(data []byte) (*prov.Model, error) {
	var nodes []Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		if e, ok := err.(*errors.Error); ok {
			// Node.UnmarshalJSON already classified it (e.g. UnknownTerm).
			return nil, e
		}
		return nil, errors.Wrap(errors.KindMalformedDocument, err, "unmarshal linked-data document")
	}
	return DecodeNodes(nodes)
}
