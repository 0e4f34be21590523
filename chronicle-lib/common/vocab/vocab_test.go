package vocab_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
)

// Parse(id.String()) must reproduce id exactly for every name in the
// printable subset §3.1 allows, including names containing a colon — the
// same byte that separates an IRI's own fields. url.PathEscape alone
// leaves ':' unescaped, so this previously truncated the name at the
// first embedded colon instead of round-tripping it.
func TestAgentNameWithColonRoundTrips(t *testing.T) {
	id := vocab.Agent("foo:bar")
	parsed, err := vocab.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, "foo:bar", parsed.Name)
	require.Equal(t, id.String(), parsed.String())
}

func TestNamespaceNameWithColonRoundTrips(t *testing.T) {
	id := vocab.Namespace("foo:bar:baz", uuid.New())
	parsed, err := vocab.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, "foo:bar:baz", parsed.Name)
	require.Equal(t, id.UUID, parsed.UUID)
	require.Equal(t, id.String(), parsed.String())
}

func TestActivityNameRoundTrips(t *testing.T) {
	id := vocab.Activity("build-42")
	parsed, err := vocab.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}
