// Package projection is the query-side relational mirror of the ledger
// (§4.7/C8): an embedded SQLite database populated only by replaying
// committed operations, never by client commands directly. It also hosts
// the name-disambiguation counter the command pipeline consults before
// building an operation that creates a new resource (§3.3 invariant 6).
package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/chronicle-ledger/chronicle-lib/common/mathutil"
	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle-lib/errors"
	"github.com/chronicle-ledger/chronicle-lib/log"
	"github.com/chronicle-ledger/chronicle/prov"
)

var logger = log.New("projection")

// Projection wraps a migrated SQLite database.
type Projection struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and
// migrates its schema. Use ":memory:" for an ephemeral, test-only store.
func Open(ctx context.Context, path string) (*Projection, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.KindProjectionDegraded, err, "open projection database")
	}
	db.SetMaxOpenConns(1) // single-writer discipline; SQLite tolerates only one writer at a time
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Projection{db: db}, nil
}

// Close releases the underlying database handle.
func (p *Projection) Close() error {
	return p.db.Close()
}

// Disambiguate resolves a client-requested name within a namespace to the
// name that should actually be used for a newly created resource: the
// requested name itself if it is not yet taken within (namespace, kind),
// or "<name>-<n>" where n is a monotonic, persistent per-(namespace,
// kind, name) counter otherwise (§3.3 invariant 6, §9 Open Question
// resolved by a counter table rather than max(rowid)).
func (p *Projection) Disambiguate(ctx context.Context, ns vocab.ID, kind vocab.Kind, requestedName string) (string, error) {
	taken, err := p.nameTaken(ctx, ns, kind, requestedName)
	if err != nil {
		return "", err
	}
	if !taken {
		return requestedName, nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(errors.KindProjectionDegraded, err, "begin disambiguation transaction")
	}
	defer tx.Rollback()

	var counter int64
	err = tx.QueryRowContext(ctx,
		`SELECT counter FROM name_counters WHERE namespace_iri = ? AND kind = ? AND base_name = ?`,
		ns.String(), string(kind), requestedName,
	).Scan(&counter)
	switch {
	case err == sql.ErrNoRows:
		counter = 0
	case err != nil:
		return "", errors.Wrap(errors.KindProjectionDegraded, err, "read name counter")
	}
	next, overflow := mathutil.SafeAdd(uint64(counter), 1)
	if overflow {
		return "", errors.Newf(errors.KindProjectionDegraded, "name counter for %q overflowed in namespace %q", requestedName, ns)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO name_counters(namespace_iri, kind, base_name, counter) VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace_iri, kind, base_name) DO UPDATE SET counter = excluded.counter`,
		ns.String(), string(kind), requestedName, next,
	); err != nil {
		return "", errors.Wrap(errors.KindProjectionDegraded, err, "advance name counter")
	}
	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(errors.KindProjectionDegraded, err, "commit name counter advance")
	}
	return requestedName + mathutil.FormatCounter(next), nil
}

func (p *Projection) nameTaken(ctx context.Context, ns vocab.ID, kind vocab.Kind, name string) (bool, error) {
	var table string
	switch kind {
	case vocab.KindAgent:
		table = "agents"
	case vocab.KindActivity:
		table = "activities"
	case vocab.KindEntity:
		table = "entities"
	default:
		return false, nil
	}
	var exists int
	err := p.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE namespace_iri = ? AND name = ? LIMIT 1`, table),
		ns.String(), name,
	).Scan(&exists)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, errors.Wrap(errors.KindProjectionDegraded, err, "check name collision")
	default:
		return true, nil
	}
}

// Apply replays a committed batch of operations into the relational
// mirror inside a single transaction, the pipeline's step 5 (§4.6). The
// pipeline always calls this with a single-operation batch, so SetAttributes
// is handled separately from the rest: prov.FromOps builds its working
// model from nothing but the ops in this call, and Model.applySetAttributes
// deliberately never stubs a target it has not seen under some kind tag —
// replayed alone, it would find no such resource in that fresh model and
// silently write nothing. applySetAttributesDirect instead updates whichever
// table already holds the target iri directly, matching the operation's
// wholesale-replace semantics without needing prior context rebuilt first.
func (p *Projection) Apply(ctx context.Context, ops []prov.Operation) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.KindProjectionDegraded, err, "begin apply transaction")
	}
	defer tx.Rollback()

	var rest []prov.Operation
	for _, op := range ops {
		if sa, ok := op.(prov.SetAttributes); ok {
			if err := applySetAttributesDirect(ctx, tx, sa); err != nil {
				return err
			}
			continue
		}
		rest = append(rest, op)
	}

	if len(rest) > 0 {
		m := prov.FromOps(rest)
		if err := replaceResources(ctx, tx, m); err != nil {
			return err
		}
		if err := replaceEdges(ctx, tx, m); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.KindProjectionDegraded, err, "commit apply transaction")
	}
	logger.Debugw("projection updated", "operations", len(ops))
	return nil
}

// applySetAttributesDirect replaces the domain_type/attributes_json columns
// of whichever resource table already holds sa.Target, wholesale, mirroring
// Model.applySetAttributes' own "replace, don't merge" rule. A target not
// yet known under any kind is left untouched, same as the in-memory model.
func applySetAttributesDirect(ctx context.Context, tx *sql.Tx, sa prov.SetAttributes) error {
	attrs, err := attributesJSON(sa.Attributes)
	if err != nil {
		return err
	}
	domainType := domainTypePtr(sa.Attributes)
	iri := sa.Target.String()

	for _, table := range [...]string{"agents", "activities", "entities"} {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET domain_type = ?, attributes_json = ? WHERE iri = ?`, table),
			domainType, attrs, iri,
		)
		if err != nil {
			return errors.Wrap(errors.KindProjectionDegraded, err, "apply attribute replacement")
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return nil
		}
	}
	return nil
}

// attributesJSON encodes a, returning nil when it carries no information
// (the zero value) so the caller can pass SQL NULL and let COALESCE leave
// any previously-projected attributes bag untouched.
func attributesJSON(a prov.Attributes) (*string, error) {
	if a.DomainType == "" && len(a.Custom) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, errors.Wrap(errors.KindProjectionDegraded, err, "marshal attributes")
	}
	s := string(b)
	return &s, nil
}

func domainTypePtr(a prov.Attributes) *string {
	if a.DomainType == "" {
		return nil
	}
	return &a.DomainType
}

func replaceResources(ctx context.Context, tx *sql.Tx, m *prov.Model) error {
	for _, iri := range sortedKeys(m.Namespaces) {
		n := m.Namespaces[iri]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO namespaces(iri, name, uuid) VALUES (?, ?, ?)
			 ON CONFLICT(iri) DO UPDATE SET name = excluded.name, uuid = excluded.uuid`,
			n.ID.String(), n.Name, n.ID.UUID.String(),
		); err != nil {
			return errors.Wrap(errors.KindProjectionDegraded, err, "upsert namespace")
		}
	}
	for _, iri := range sortedKeys(m.Agents) {
		a := m.Agents[iri]
		attrs, err := attributesJSON(a.Attributes)
		if err != nil {
			return err
		}
		var currentIdentity *string
		if a.CurrentIdentity != nil {
			s := a.CurrentIdentity.String()
			currentIdentity = &s
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO agents(iri, namespace_iri, name, domain_type, attributes_json, current_identity_iri)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(iri) DO UPDATE SET
				domain_type = COALESCE(excluded.domain_type, agents.domain_type),
				attributes_json = COALESCE(excluded.attributes_json, agents.attributes_json),
				current_identity_iri = COALESCE(excluded.current_identity_iri, agents.current_identity_iri)`,
			a.ID.String(), a.Namespace.String(), a.Name, domainTypePtr(a.Attributes), attrs, currentIdentity,
		); err != nil {
			return errors.Wrap(errors.KindProjectionDegraded, err, "upsert agent")
		}
	}
	for _, iri := range sortedKeys(m.Activities) {
		act := m.Activities[iri]
		attrs, err := attributesJSON(act.Attributes)
		if err != nil {
			return err
		}
		var started, ended *string
		if act.Started != nil {
			s := act.Started.Format(rfc3339)
			started = &s
		}
		if act.Ended != nil {
			e := act.Ended.Format(rfc3339)
			ended = &e
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activities(iri, namespace_iri, name, domain_type, attributes_json, started, ended)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(iri) DO UPDATE SET
				domain_type = COALESCE(excluded.domain_type, activities.domain_type),
				attributes_json = COALESCE(excluded.attributes_json, activities.attributes_json),
				started = COALESCE(activities.started, excluded.started),
				ended = COALESCE(activities.ended, excluded.ended)`,
			act.ID.String(), act.Namespace.String(), act.Name, domainTypePtr(act.Attributes), attrs, started, ended,
		); err != nil {
			return errors.Wrap(errors.KindProjectionDegraded, err, "upsert activity")
		}
	}
	for _, iri := range sortedKeys(m.Entities) {
		e := m.Entities[iri]
		attrs, err := attributesJSON(e.Attributes)
		if err != nil {
			return err
		}
		var currentAttachment *string
		if e.CurrentAttachment != nil {
			s := e.CurrentAttachment.String()
			currentAttachment = &s
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entities(iri, namespace_iri, name, domain_type, attributes_json, current_attachment_iri)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(iri) DO UPDATE SET
				domain_type = COALESCE(excluded.domain_type, entities.domain_type),
				attributes_json = COALESCE(excluded.attributes_json, entities.attributes_json),
				current_attachment_iri = COALESCE(excluded.current_attachment_iri, entities.current_attachment_iri)`,
			e.ID.String(), e.Namespace.String(), e.Name, domainTypePtr(e.Attributes), attrs, currentAttachment,
		); err != nil {
			return errors.Wrap(errors.KindProjectionDegraded, err, "upsert entity")
		}
	}
	for _, iri := range sortedKeys(m.Identities) {
		id := m.Identities[iri]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO identities(iri, namespace_iri, owning_agent_iri, public_key, registered)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(iri) DO UPDATE SET public_key = excluded.public_key, registered = excluded.registered`,
			id.ID.String(), id.Namespace.String(), id.OwningAgent.String(), id.PublicKey, id.Registered.Format(rfc3339),
		); err != nil {
			return errors.Wrap(errors.KindProjectionDegraded, err, "upsert identity")
		}
	}
	for _, iri := range sortedKeys(m.Attachments) {
		at := m.Attachments[iri]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attachments(iri, namespace_iri, owning_entity_iri, signer_identity_iri, signature_hex, locator, signature_time)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(iri) DO UPDATE SET signature_hex = excluded.signature_hex,
				locator = excluded.locator, signature_time = excluded.signature_time`,
			at.ID.String(), at.Namespace.String(), at.OwningEntity.String(), at.SignerIdentity.String(),
			at.SignatureHex, at.Locator, at.SignatureTime.Format(rfc3339),
		); err != nil {
			return errors.Wrap(errors.KindProjectionDegraded, err, "upsert attachment")
		}
	}
	return nil
}

func replaceEdges(ctx context.Context, tx *sql.Tx, m *prov.Model) error {
	for _, e := range m.WasAssociatedWith() {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO was_associated_with(activity_iri, agent_iri) VALUES (?, ?)`,
			e.From.String(), e.To.String(),
		); err != nil {
			return errors.Wrap(errors.KindProjectionDegraded, err, "insert was_associated_with edge")
		}
	}
	for _, e := range m.WasGeneratedByEdges() {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO was_generated_by(entity_iri, activity_iri) VALUES (?, ?)`,
			e.From.String(), e.To.String(),
		); err != nil {
			return errors.Wrap(errors.KindProjectionDegraded, err, "insert was_generated_by edge")
		}
	}
	for _, e := range m.UsedEdges() {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO used(activity_iri, entity_iri) VALUES (?, ?)`,
			e.From.String(), e.To.String(),
		); err != nil {
			return errors.Wrap(errors.KindProjectionDegraded, err, "insert used edge")
		}
	}
	for _, e := range m.ActedOnBehalfOfEdges() {
		var activity any
		if e.Activity != nil {
			activity = e.Activity.String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO acted_on_behalf_of(delegate_iri, responsible_iri, activity_iri, role) VALUES (?, ?, ?, ?)`,
			e.Delegate.String(), e.Responsible.String(), activity, e.Role,
		); err != nil {
			return errors.Wrap(errors.KindProjectionDegraded, err, "insert acted_on_behalf_of edge")
		}
	}
	for _, e := range m.WasDerivedFromEdges() {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO was_derived_from(generated_iri, used_iri, kind) VALUES (?, ?, ?)`,
			e.Generated.String(), e.Used.String(), string(e.Kind),
		); err != nil {
			return errors.Wrap(errors.KindProjectionDegraded, err, "insert was_derived_from edge")
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const rfc3339 = "2006-01-02T15:04:05Z07:00"
