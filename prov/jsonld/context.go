// Package jsonld serialises a provenance model to and from its expanded
// linked-data form and compacts it against a single, process-wide fixed
// context (§4.2). There is no mature JSON-LD 1.1 processor among the
// example dependencies, so this package is a deliberately narrow,
// spec-scoped expand/compact layer written against encoding/json rather
// than a general-purpose JSON-LD library (see DESIGN.md).
package jsonld

import "sync"

// Term is one IRI in the fixed vocabulary this codec understands. Decoding
// any edge whose predicate IRI is not one of these fails with UnknownTerm.
type Term string

const (
	TermID    = "@id"
	TermType  = "@type"
	TermValue = "@value"

	ClassNamespace  = "chronicle:Namespace"
	ClassAgent      = "prov:Agent"
	ClassActivity   = "prov:Activity"
	ClassEntity     = "prov:Entity"
	ClassIdentity   = "chronicle:Identity"
	ClassAttachment = "chronicle:Attachment"

	PredName              = "chronicle:name"
	PredUUID              = "chronicle:uuid"
	PredDomainType        = "chronicle:domainType"
	PredAttributes        = "chronicle:attributes"
	PredStarted           = "prov:startedAtTime"
	PredEnded             = "prov:endedAtTime"
	PredCurrentIdentity   = "chronicle:hasIdentity"
	PredPriorIdentity     = "chronicle:hadIdentity"
	PredOwningAgent       = "chronicle:identityOf"
	PredPublicKey         = "chronicle:publicKey"
	PredRegistered        = "chronicle:registeredAtTime"
	PredCurrentAttachment = "chronicle:hasAttachment"
	PredPriorAttachment   = "chronicle:hadAttachment"
	PredOwningEntity      = "chronicle:attachmentOf"
	PredSignerIdentity    = "chronicle:signedBy"
	PredSignature         = "chronicle:signature"
	PredLocator           = "chronicle:locator"
	PredSignatureTime     = "chronicle:signedAtTime"

	PredWasAssociatedWith = "prov:wasAssociatedWith"
	PredWasGeneratedBy    = "prov:wasGeneratedBy"
	PredUsed              = "prov:used"
	PredActedOnBehalfOf   = "prov:actedOnBehalfOf"
	PredHadActivity       = "chronicle:qualifiedActivity"
	PredHadRole           = "chronicle:hadRole"
	PredWasDerivedFrom    = "prov:wasDerivedFrom"
	PredDerivationKind    = "chronicle:derivationKind"
)

// knownTerms is the fixed, process-wide set of predicate IRIs this codec
// will decode; anything else is UnknownTerm. Built once via sync.Once and
// never mutated afterwards (§9 "process-wide constant").
var (
	knownTermsOnce sync.Once
	knownTerms     map[string]struct{}
)

func isKnownTerm(iri string) bool {
	knownTermsOnce.Do(func() {
		terms := []string{
			PredName, PredUUID, PredDomainType, PredAttributes, PredStarted, PredEnded,
			PredCurrentIdentity, PredPriorIdentity, PredOwningAgent, PredPublicKey, PredRegistered,
			PredCurrentAttachment, PredPriorAttachment, PredOwningEntity, PredSignerIdentity,
			PredSignature, PredLocator, PredSignatureTime,
			PredWasAssociatedWith, PredWasGeneratedBy, PredUsed, PredActedOnBehalfOf,
			PredHadActivity, PredHadRole, PredWasDerivedFrom, PredDerivationKind,
			"chronicle:edgePredicate", "chronicle:edgeFrom", "chronicle:edgeTo",
		}
		knownTerms = make(map[string]struct{}, len(terms))
		for _, t := range terms {
			knownTerms[t] = struct{}{}
		}
	})
	_, ok := knownTerms[iri]
	return ok
}

// typesFor builds the @type array for a node of the given native PROV/
// chronicle class, optionally prefixed with a user-supplied domain type.
// Both are always present when domainType is set, satisfying the
// subtyping guarantee in §4.2: a receiver that only understands prov:*
// types still matches nativeClass even if it ignores domainType.
func typesFor(nativeClass, domainType string) []string {
	if domainType == "" {
		return []string{nativeClass}
	}
	return []string{domainType, nativeClass}
}
