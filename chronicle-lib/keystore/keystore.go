// Package keystore stores and retrieves agent signing keys, one raw
// 32-byte scalar file per agent under a directory, mirroring the original
// implementation's DirectoryStoredKeys.
package keystore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle-lib/log"
	"github.com/chronicle-ledger/chronicle-lib/signing"
)

// Store is the interface pipeline depends on: sign on behalf of an agent,
// and fetch an agent's public key for verification.
type Store interface {
	Sign(agentName string, message []byte) ([]byte, error)
	PublicKey(agentName string) ([]byte, error)
	Generate(agentName string) (signing.PublicKey, error)
}

// Directory is a Store backed by one file per agent under a root
// directory, named "<agentName>.key" and containing the raw 32-byte
// signing key with 0600 permissions.
type Directory struct {
	root string
	log  interface {
		Debugw(string, ...any)
	}
}

// NewDirectory opens (creating if necessary) a directory-backed key store.
func NewDirectory(root string) (*Directory, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, errors.Wrap(errors.KindKeystoreUnavailable, err, "create keystore directory")
	}
	return &Directory{root: root, log: log.New("keystore")}, nil
}

// path joins agentName into the keystore directory, rejecting any name
// that could escape it via a path separator or a ".." segment.
func (d *Directory) path(agentName string) (string, error) {
	if agentName == "" || strings.ContainsAny(agentName, "/\\") || agentName == "." || agentName == ".." {
		return "", errors.Newf(errors.KindMalformedInput, "invalid agent name for keystore lookup: %q", agentName)
	}
	return filepath.Join(d.root, agentName+".key"), nil
}

// Generate creates and persists a new signing key for agentName,
// overwriting any existing key.
func (d *Directory) Generate(agentName string) (signing.PublicKey, error) {
	path, err := d.path(agentName)
	if err != nil {
		return signing.PublicKey{}, err
	}
	key, err := signing.GenerateKey()
	if err != nil {
		return signing.PublicKey{}, err
	}
	if err := os.WriteFile(path, key.Bytes(), 0600); err != nil {
		return signing.PublicKey{}, errors.Wrap(errors.KindKeystoreUnavailable, err, "persist signing key")
	}
	d.log.Debugw("generated signing key", "agent", agentName)
	return key.Public(), nil
}

func (d *Directory) load(agentName string) (signing.PrivateKey, error) {
	path, err := d.path(agentName)
	if err != nil {
		return signing.PrivateKey{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return signing.PrivateKey{}, errors.Newf(errors.KindUnknownSigner, "no signing key for agent %q", agentName)
		}
		return signing.PrivateKey{}, errors.Wrap(errors.KindKeystoreUnavailable, err, "read signing key")
	}
	return signing.ParsePrivateKey(raw)
}

// Sign signs message as agentName.
func (d *Directory) Sign(agentName string, message []byte) ([]byte, error) {
	key, err := d.load(agentName)
	if err != nil {
		return nil, err
	}
	return key.Sign(message), nil
}

// PublicKey returns agentName's current public key bytes.
func (d *Directory) PublicKey(agentName string) ([]byte, error) {
	key, err := d.load(agentName)
	if err != nil {
		return nil, err
	}
	return key.Public().Bytes(), nil
}
