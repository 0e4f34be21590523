package jsonld

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle/prov"
)

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrap(errors.KindMalformedDocument, err, "parse RFC3339 timestamp")
	}
	return t.UTC(), nil
}

func attributeProps(a prov.Attributes) map[string]json.RawMessage {
	props := map[string]json.RawMessage{}
	if a.DomainType != "" {
		props[PredDomainType] = literal(a.DomainType)
	}
	if len(a.Custom) > 0 {
		b, _ := json.Marshal(a.Custom)
		props[PredAttributes] = literal(json.RawMessage(b))
	}
	return props
}

// EncodeNodes renders m as the sorted array of expanded linked-data nodes
// (§4.2, §4.3 step 3: the executor partitions this set by (namespace,
// node-id) to compute its write-set).
func EncodeNodes(m *prov.Model) []Node {
	var nodes []Node

	for _, ns := range m.Namespaces {
		props := map[string]json.RawMessage{
			PredName: literal(ns.Name),
			PredUUID: literal(uuidString(ns.UUID)),
		}
		nodes = append(nodes, Node{ID: ns.ID.String(), Type: typesFor(ClassNamespace, ""), Properties: props})
	}

	for _, a := range m.Agents {
		props := attributeProps(a.Attributes)
		if a.CurrentIdentity != nil {
			props[PredCurrentIdentity] = reference(a.CurrentIdentity.String())
		}
		if a.PriorIdentities.Len() > 0 {
			props[PredPriorIdentity] = refArray(idStrings(a.PriorIdentities.Items()))
		}
		nodes = append(nodes, Node{ID: a.ID.String(), Type: typesFor(ClassAgent, a.Attributes.DomainType), Properties: props})
	}

	for _, act := range m.Activities {
		props := attributeProps(act.Attributes)
		if act.Started != nil {
			props[PredStarted] = literal(formatTime(*act.Started))
		}
		if act.Ended != nil {
			props[PredEnded] = literal(formatTime(*act.Ended))
		}
		nodes = append(nodes, Node{ID: act.ID.String(), Type: typesFor(ClassActivity, act.Attributes.DomainType), Properties: props})
	}

	for _, e := range m.Entities {
		props := attributeProps(e.Attributes)
		if e.CurrentAttachment != nil {
			props[PredCurrentAttachment] = reference(e.CurrentAttachment.String())
		}
		if e.PriorAttachments.Len() > 0 {
			props[PredPriorAttachment] = refArray(idStrings(e.PriorAttachments.Items()))
		}
		nodes = append(nodes, Node{ID: e.ID.String(), Type: typesFor(ClassEntity, e.Attributes.DomainType), Properties: props})
	}

	for _, id := range m.Identities {
		props := map[string]json.RawMessage{
			PredOwningAgent: reference(id.OwningAgent.String()),
			PredPublicKey:   literal(id.PublicKey),
			PredRegistered:  literal(formatTime(id.Registered)),
		}
		nodes = append(nodes, Node{ID: id.ID.String(), Type: typesFor(ClassIdentity, ""), Properties: props})
	}

	for _, att := range m.Attachments {
		props := map[string]json.RawMessage{
			PredOwningEntity:   reference(att.OwningEntity.String()),
			PredSignerIdentity: reference(att.SignerIdentity.String()),
			PredSignature:      literal(att.SignatureHex),
			PredSignatureTime:  literal(formatTime(att.SignatureTime)),
		}
		if att.Locator != "" {
			props[PredLocator] = literal(att.Locator)
		}
		nodes = append(nodes, Node{ID: att.ID.String(), Type: typesFor(ClassAttachment, ""), Properties: props})
	}

	for _, e := range m.WasAssociatedWith() {
		nodes = append(nodes, edgeNode(PredWasAssociatedWith, e.From.String(), e.To.String(), ""))
	}
	for _, e := range m.WasGeneratedByEdges() {
		nodes = append(nodes, edgeNode(PredWasGeneratedBy, e.From.String(), e.To.String(), ""))
	}
	for _, e := range m.UsedEdges() {
		nodes = append(nodes, edgeNode(PredUsed, e.From.String(), e.To.String(), ""))
	}
	for _, e := range m.ActedOnBehalfOfEdges() {
		// The qualifier pair must fold into the synthetic id: two facts
		// for the same (delegate, responsible) differing only in
		// Activity/Role are distinct facts (§3.2) and must not collide
		// on the same node id — and so the same content address
		// (core/executor.Execute keys off this id via kv.New).
		qualifier := ""
		if e.Activity != nil || e.Role != "" {
			activityQualifier := ""
			if e.Activity != nil {
				activityQualifier = e.Activity.String()
			}
			qualifier = activityQualifier + "/" + e.Role
		}
		n := edgeNode(PredActedOnBehalfOf, e.Delegate.String(), e.Responsible.String(), qualifier)
		if e.Activity != nil {
			n.Properties[PredHadActivity] = reference(e.Activity.String())
		}
		if e.Role != "" {
			n.Properties[PredHadRole] = literal(e.Role)
		}
		nodes = append(nodes, n)
	}
	for _, e := range m.WasDerivedFromEdges() {
		n := edgeNode(PredWasDerivedFrom, e.Generated.String(), e.Used.String(), string(e.Kind))
		n.Properties[PredDerivationKind] = literal(string(e.Kind))
		nodes = append(nodes, n)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// edgeNode renders a relation edge as its own linked-data node, keyed by a
// deterministic synthetic id so edges partition into write-set entries the
// same way resources do. qualifier folds in whatever further distinguishes
// two edges over the same (from, to) pair (role/activity, derivation
// kind) — pass "" for the unqualified relations, which have at most one
// fact per pair.
func edgeNode(predicate, from, to, qualifier string) Node {
	id := "chronicle:edge:" + predicate + ":" + from + ":" + to
	if qualifier != "" {
		id += ":" + qualifier
	}
	return Node{
		ID:   id,
		Type: []string{"chronicle:Edge"},
		Properties: map[string]json.RawMessage{
			"chronicle:edgePredicate": literal(predicate),
			"chronicle:edgeFrom":      reference(from),
			"chronicle:edgeTo":        reference(to),
		},
	}
}

// Encode renders m as canonical, sorted linked-data JSON text.
func Encode(m *prov.Model) ([]byte, error) {
	nodes := EncodeNodes(m)
	b, err := json.Marshal(nodes)
	if err != nil {
		return nil, errors.Wrap(errors.KindMalformedDocument, err, "marshal linked-data document")
	}
	return b, nil
}

func idStrings(ids []vocab.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func uuidString(raw [16]byte) string {
	return uuid.UUID(raw).String()
}
