// Package signing implements agent key material: secp256k1 signing and
// verification over raw message digests, the Go equivalent of the original
// implementation's use of the k256 crate for identity key material.
package signing

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/chronicle-ledger/chronicle-lib/errors"
)

// PrivateKey is a raw 32-byte secp256k1 scalar.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey is a compressed 33-byte secp256k1 point.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// GenerateKey creates a new random signing key.
func GenerateKey() (PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return PrivateKey{}, errors.Wrap(errors.KindKeystoreUnavailable, err, "generate signing key")
	}
	return PrivateKey{key: key}, nil
}

// ParsePrivateKey decodes 32 raw bytes into a PrivateKey.
func ParsePrivateKey(raw []byte) (PrivateKey, error) {
	if len(raw) != 32 {
		return PrivateKey{}, errors.Newf(errors.KindMalformedInput, "signing key must be 32 bytes, got %d", len(raw))
	}
	key := secp256k1.PrivKeyFromBytes(raw)
	return PrivateKey{key: key}, nil
}

// Bytes returns the raw 32-byte scalar.
func (k PrivateKey) Bytes() []byte {
	return k.key.Serialize()
}

// Public returns the key's corresponding public key.
func (k PrivateKey) Public() PublicKey {
	return PublicKey{key: k.key.PubKey()}
}

// Sign produces a deterministic (RFC6979) ECDSA signature over the SHA-256
// digest of message. The executor never signs anything directly — only
// chronicle-lib/keystore-backed agents do, at the pipeline's command
// boundary (§6.5).
func (k PrivateKey) Sign(message []byte) []byte {
	digest := sha256.Sum256(message)
	sig := ecdsa.Sign(k.key, digest[:])
	return sig.Serialize()
}

// ParsePublicKey decodes a compressed or uncompressed public key.
func ParsePublicKey(raw []byte) (PublicKey, error) {
	key, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return PublicKey{}, errors.Wrap(errors.KindInvalidSignature, err, "parse public key")
	}
	return PublicKey{key: key}, nil
}

// Bytes returns the compressed public key encoding.
func (k PublicKey) Bytes() []byte {
	return k.key.SerializeCompressed()
}

// Verify checks sig against message under this public key, returning
// KindInvalidSignature on any mismatch or malformed signature (§4.4,
// EntityAttach verification).
func (k PublicKey) Verify(message, sig []byte) error {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return errors.Wrap(errors.KindInvalidSignature, err, "parse signature")
	}
	digest := sha256.Sum256(message)
	if !parsed.Verify(digest[:], k.key) {
		return errors.New(errors.KindInvalidSignature, "signature does not verify against the declared identity's public key")
	}
	return nil
}
