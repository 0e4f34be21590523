// Package kv implements the ledger's content-addressed state space: mapping
// a (namespace, resource) pair onto the 70-hex-character address under
// which its encoded state is stored, plus the ReadSet/WriteSet types the
// executor (core/executor) and transport layers pass between each other.
//
// Address layout follows the same "family prefix + hash tail" convention
// erigon-lib/kv uses to separate table namespaces (see tables.go in the
// reference tree), collapsed here to a single flat address space since the
// ledger has no notion of per-table storage engines.
package kv

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/chronicle-ledger/chronicle-lib/common/mathutil"
	"github.com/chronicle-ledger/chronicle-lib/errors"
)

// FamilyPrefix identifies this ledger's transaction family in the address
// space, the same role the "cc" prefix plays in the original Rust
// implementation's addressing scheme.
const FamilyPrefix = "cc0001"

// AddressLength is the total length of an address: 6 hex chars of family
// prefix plus 64 hex chars (32 bytes) of SHA-256 digest.
const AddressLength = len(FamilyPrefix) + 64

// Address is a content address: FamilyPrefix followed by 64 lowercase hex
// characters.
type Address string

// ReadSet is the set of addresses an operation declares it depends on,
// together with their state as of the prior committed graph.
type ReadSet map[Address][]byte

// WriteSet is the set of addresses an operation batch updates, together
// with their new encoded state.
type WriteSet map[Address][]byte

// New computes the address for a resource IRI scoped to a namespace IRI.
// Two distinct (namespace, resource) pairs never collide in practice
// (SHA-256 preimage resistance); this is the sole addressing rule used by
// every component that reads or writes ledger state (§4.5).
func New(namespaceIRI, resourceIRI string) Address {
	h := sha256.Sum256([]byte(namespaceIRI + ":" + resourceIRI))
	return Address(FamilyPrefix + hex.EncodeToString(h[:]))
}

// Valid reports whether addr has the expected family prefix and hex shape.
func (a Address) Valid() bool {
	s := string(a)
	if len(s) != AddressLength {
		return false
	}
	if s[:len(FamilyPrefix)] != FamilyPrefix {
		return false
	}
	return mathutil.IsHex64(s[len(FamilyPrefix):])
}

// Parse validates and wraps a raw address string.
func Parse(s string) (Address, error) {
	a := Address(s)
	if !a.Valid() {
		return "", errors.Newf(errors.KindMalformedInput, "not a valid ledger address: %q", s)
	}
	return a, nil
}

// Merge layers src's entries onto dst, returning dst. Used by the pipeline
// and processor to accumulate write-sets across a batch (§4.4 last-write-
// wins semantics are enforced by the executor before this is ever called;
// Merge itself is a plain last-writer-wins union of maps).
func (dst WriteSet) Merge(src WriteSet) WriteSet {
	if dst == nil {
		dst = make(WriteSet, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
