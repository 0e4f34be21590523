package projection

import (
	"context"
	"database/sql"

	"github.com/chronicle-ledger/chronicle-lib/errors"
)

// schema is the full set of table definitions: the six resources, the five
// edge relations, and the persistent per-namespace name-disambiguation
// counter (§4.7, §9 Open Question — resolved in favour of a counter table
// rather than max(rowid), since rowid reuse after a row is ever removed
// would let two distinct resources collide on the same discriminator).
const schema = `
CREATE TABLE IF NOT EXISTS namespaces (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	iri        TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	uuid       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	iri             TEXT NOT NULL UNIQUE,
	namespace_iri   TEXT NOT NULL REFERENCES namespaces(iri),
	name            TEXT NOT NULL,
	domain_type     TEXT,
	attributes_json TEXT,
	current_identity_iri TEXT
);

CREATE TABLE IF NOT EXISTS activities (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	iri             TEXT NOT NULL UNIQUE,
	namespace_iri   TEXT NOT NULL REFERENCES namespaces(iri),
	name            TEXT NOT NULL,
	domain_type     TEXT,
	attributes_json TEXT,
	started         TEXT,
	ended           TEXT
);

CREATE TABLE IF NOT EXISTS entities (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	iri             TEXT NOT NULL UNIQUE,
	namespace_iri   TEXT NOT NULL REFERENCES namespaces(iri),
	name            TEXT NOT NULL,
	domain_type     TEXT,
	attributes_json TEXT,
	current_attachment_iri TEXT
);

CREATE TABLE IF NOT EXISTS identities (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	iri             TEXT NOT NULL UNIQUE,
	namespace_iri   TEXT NOT NULL REFERENCES namespaces(iri),
	owning_agent_iri TEXT NOT NULL,
	public_key      TEXT NOT NULL,
	registered      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS attachments (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	iri             TEXT NOT NULL UNIQUE,
	namespace_iri   TEXT NOT NULL REFERENCES namespaces(iri),
	owning_entity_iri TEXT NOT NULL,
	signer_identity_iri TEXT NOT NULL,
	signature_hex   TEXT NOT NULL,
	locator         TEXT,
	signature_time  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS was_associated_with (
	activity_iri TEXT NOT NULL,
	agent_iri    TEXT NOT NULL,
	PRIMARY KEY (activity_iri, agent_iri)
);

CREATE TABLE IF NOT EXISTS was_generated_by (
	entity_iri   TEXT NOT NULL,
	activity_iri TEXT NOT NULL,
	PRIMARY KEY (entity_iri, activity_iri)
);

CREATE TABLE IF NOT EXISTS used (
	activity_iri TEXT NOT NULL,
	entity_iri   TEXT NOT NULL,
	PRIMARY KEY (activity_iri, entity_iri)
);

-- activity_iri/role are qualifiers, not just decoration: two facts for the
-- same (delegate, responsible) pair with different roles or activities are
-- distinct facts (§3.2), so both columns join the primary key or the
-- INSERT OR IGNORE replay silently drops the second fact.
CREATE TABLE IF NOT EXISTS acted_on_behalf_of (
	delegate_iri    TEXT NOT NULL,
	responsible_iri TEXT NOT NULL,
	activity_iri    TEXT,
	role            TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (delegate_iri, responsible_iri, activity_iri, role)
);

-- kind joins the primary key for the same reason: an entity can be
-- simultaneously a revision of and a quotation from the same source.
CREATE TABLE IF NOT EXISTS was_derived_from (
	generated_iri TEXT NOT NULL,
	used_iri      TEXT NOT NULL,
	kind          TEXT NOT NULL,
	PRIMARY KEY (generated_iri, used_iri, kind)
);

CREATE TABLE IF NOT EXISTS name_counters (
	namespace_iri TEXT NOT NULL,
	kind          TEXT NOT NULL,
	base_name     TEXT NOT NULL,
	counter       INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (namespace_iri, kind, base_name)
);

CREATE TABLE IF NOT EXISTS current_agent (
	singleton   INTEGER PRIMARY KEY CHECK (singleton = 0),
	agent_iri   TEXT NOT NULL
);
`

// Migrate creates every table used by the projection if it does not
// already exist, run once in a single transaction at startup, mirroring
// the hand-rolled "CREATE TABLE IF NOT EXISTS at boot" migration style
// this tree uses in the absence of an embedded-migration dependency
// anywhere in the example pack.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.KindProjectionDegraded, err, "begin migration transaction")
	}
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(errors.KindProjectionDegraded, err, "apply projection schema")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.KindProjectionDegraded, err, "commit migration transaction")
	}
	return nil
}
