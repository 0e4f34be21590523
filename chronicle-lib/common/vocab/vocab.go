// Package vocab constructs and decomposes the ledger's typed resource
// identifiers: URIs of the shape chronicle:<kind>:<name>[:<uuid>]. It is the
// Go counterpart of the original Rust project's vocab module (Chronicle::*
// IRI constructors) and its models.rs id types (NamespaceId, AgentId, ...).
package vocab

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/chronicle-ledger/chronicle-lib/errors"
)

// Kind is one of the six first-class resource kinds.
type Kind string

const (
	KindNamespace  Kind = "ns"
	KindAgent      Kind = "agent"
	KindActivity   Kind = "activity"
	KindEntity     Kind = "entity"
	KindIdentity   Kind = "identity"
	KindAttachment Kind = "attachment"
)

const scheme = "chronicle"

// ID is a canonical identifier: two IDs denote the same resource iff their
// String() representations are byte-equal (§3.1 invariant).
type ID struct {
	Kind Kind
	Name string
	UUID uuid.UUID // only set for namespaces
}

// escapeName percent-escapes a name the same way net/url escapes a path
// segment, guaranteeing the "printable subset" restriction from §3.1 and
// that encoding is injective (no two distinct names collide after escaping).
// url.PathEscape's encodePathSegment mode leaves ':' unescaped (it only
// escapes '/', ';', ',', and '?'), but ':' is the field separator Parse
// splits the whole IRI on, so a name containing one would otherwise
// introduce an extra field and truncate silently on the round trip.
// Escape it explicitly after PathEscape runs.
func escapeName(name string) string {
	return strings.ReplaceAll(url.PathEscape(name), ":", "%3A")
}

func unescapeName(escaped string) (string, error) {
	name, err := url.PathUnescape(escaped)
	if err != nil {
		return "", errors.Wrap(errors.KindMalformedInput, err, "invalid percent-encoded identifier segment")
	}
	return name, nil
}

// String renders the canonical IRI for id.
func (id ID) String() string {
	if id.Kind == KindNamespace {
		return fmt.Sprintf("%s:%s:%s:%s", scheme, id.Kind, escapeName(id.Name), id.UUID.String())
	}
	return fmt.Sprintf("%s:%s:%s", scheme, id.Kind, escapeName(id.Name))
}

// Namespace builds a namespace identifier from a name and UUID.
func Namespace(name string, id uuid.UUID) ID {
	return ID{Kind: KindNamespace, Name: name, UUID: id}
}

// Agent, Activity, Entity, Identity, Attachment build non-namespace identifiers.
func Agent(name string) ID      { return ID{Kind: KindAgent, Name: name} }
func Activity(name string) ID   { return ID{Kind: KindActivity, Name: name} }
func Entity(name string) ID     { return ID{Kind: KindEntity, Name: name} }
func Identity(name string) ID   { return ID{Kind: KindIdentity, Name: name} }
func Attachment(name string) ID { return ID{Kind: KindAttachment, Name: name} }

// Parse decomposes a canonical IRI back into its typed parts (§3.1
// invariant: identifiers are canonical, so round-tripping Parse(id.String())
// must reproduce id exactly).
func Parse(iri string) (ID, error) {
	parts := strings.Split(iri, ":")
	if len(parts) < 3 || parts[0] != scheme {
		return ID{}, errors.Newf(errors.KindMalformedInput, "not a chronicle identifier: %q", iri)
	}
	kind := Kind(parts[1])
	name, err := unescapeName(parts[2])
	if err != nil {
		return ID{}, err
	}
	switch kind {
	case KindNamespace:
		if len(parts) != 4 {
			return ID{}, errors.Newf(errors.KindMalformedInput, "namespace identifier missing uuid: %q", iri)
		}
		u, err := uuid.Parse(parts[3])
		if err != nil {
			return ID{}, errors.Wrap(errors.KindMalformedInput, err, "invalid namespace uuid")
		}
		return Namespace(name, u), nil
	case KindAgent, KindActivity, KindEntity, KindIdentity, KindAttachment:
		return ID{Kind: kind, Name: name}, nil
	default:
		return ID{}, errors.Newf(errors.KindMalformedInput, "unknown identifier kind %q in %q", kind, iri)
	}
}

// Decompose returns the human name embedded in id, mirroring the original's
// per-type `decompose()` helpers.
func (id ID) Decompose() string { return id.Name }

// MarshalText renders id as its canonical IRI, letting ID drop straight into
// JSON maps and struct fields as a plain string rather than a nested object.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses a canonical IRI back into id.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
