package projection

import (
	"context"
	"database/sql"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle-lib/errors"
)

// LookupAgent resolves an agent by (namespace, name), the reference
// resolution the command pipeline performs before building an operation
// (§4.6 step 1).
func (p *Projection) LookupAgent(ctx context.Context, ns vocab.ID, name string) (vocab.ID, error) {
	var iri string
	err := p.db.QueryRowContext(ctx,
		`SELECT iri FROM agents WHERE namespace_iri = ? AND name = ?`, ns.String(), name,
	).Scan(&iri)
	if err == sql.ErrNoRows {
		return vocab.ID{}, errors.Newf(errors.KindMalformedInput, "no agent named %q in namespace %q", name, ns)
	}
	if err != nil {
		return vocab.ID{}, errors.Wrap(errors.KindProjectionDegraded, err, "lookup agent")
	}
	return vocab.Parse(iri)
}

// LookupActivity resolves an activity by (namespace, name).
func (p *Projection) LookupActivity(ctx context.Context, ns vocab.ID, name string) (vocab.ID, error) {
	var iri string
	err := p.db.QueryRowContext(ctx,
		`SELECT iri FROM activities WHERE namespace_iri = ? AND name = ?`, ns.String(), name,
	).Scan(&iri)
	if err == sql.ErrNoRows {
		return vocab.ID{}, errors.Newf(errors.KindMalformedInput, "no activity named %q in namespace %q", name, ns)
	}
	if err != nil {
		return vocab.ID{}, errors.Wrap(errors.KindProjectionDegraded, err, "lookup activity")
	}
	return vocab.Parse(iri)
}

// LookupEntity resolves an entity by (namespace, name).
func (p *Projection) LookupEntity(ctx context.Context, ns vocab.ID, name string) (vocab.ID, error) {
	var iri string
	err := p.db.QueryRowContext(ctx,
		`SELECT iri FROM entities WHERE namespace_iri = ? AND name = ?`, ns.String(), name,
	).Scan(&iri)
	if err == sql.ErrNoRows {
		return vocab.ID{}, errors.Newf(errors.KindMalformedInput, "no entity named %q in namespace %q", name, ns)
	}
	if err != nil {
		return vocab.ID{}, errors.Wrap(errors.KindProjectionDegraded, err, "lookup entity")
	}
	return vocab.Parse(iri)
}

// ListAgents lists every agent IRI in a namespace, ascending.
func (p *Projection) ListAgents(ctx context.Context, ns vocab.ID) ([]vocab.ID, error) {
	return p.listIRIs(ctx, "agents", ns)
}

// ListActivities lists every activity IRI in a namespace, ascending.
func (p *Projection) ListActivities(ctx context.Context, ns vocab.ID) ([]vocab.ID, error) {
	return p.listIRIs(ctx, "activities", ns)
}

// ListEntities lists every entity IRI in a namespace, ascending.
func (p *Projection) ListEntities(ctx context.Context, ns vocab.ID) ([]vocab.ID, error) {
	return p.listIRIs(ctx, "entities", ns)
}

func (p *Projection) listIRIs(ctx context.Context, table string, ns vocab.ID) ([]vocab.ID, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT iri FROM `+table+` WHERE namespace_iri = ? ORDER BY iri ASC`, ns.String(),
	)
	if err != nil {
		return nil, errors.Wrap(errors.KindProjectionDegraded, err, "list "+table)
	}
	defer rows.Close()

	var ids []vocab.ID
	for rows.Next() {
		var iri string
		if err := rows.Scan(&iri); err != nil {
			return nil, errors.Wrap(errors.KindProjectionDegraded, err, "scan "+table+" row")
		}
		id, err := vocab.Parse(iri)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetCurrentAgent records agent as the single "current agent" flag the
// pipeline consults to resolve an omitted agent reference (§4.6 step 1).
func (p *Projection) SetCurrentAgent(ctx context.Context, agent vocab.ID) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO current_agent(singleton, agent_iri) VALUES (0, ?)
		 ON CONFLICT(singleton) DO UPDATE SET agent_iri = excluded.agent_iri`,
		agent.String(),
	)
	if err != nil {
		return errors.Wrap(errors.KindProjectionDegraded, err, "set current agent")
	}
	return nil
}

// CurrentAgent returns the current agent flag, if one has been set.
func (p *Projection) CurrentAgent(ctx context.Context) (vocab.ID, bool, error) {
	var iri string
	err := p.db.QueryRowContext(ctx, `SELECT agent_iri FROM current_agent WHERE singleton = 0`).Scan(&iri)
	if err == sql.ErrNoRows {
		return vocab.ID{}, false, nil
	}
	if err != nil {
		return vocab.ID{}, false, errors.Wrap(errors.KindProjectionDegraded, err, "read current agent")
	}
	id, err := vocab.Parse(iri)
	if err != nil {
		return vocab.ID{}, false, err
	}
	return id, true, nil
}

// MostRecentStartedActivity resolves the omitted-activity-reference case
// in §4.6 step 1: the activity with the latest non-null `started` time in
// the namespace.
func (p *Projection) MostRecentStartedActivity(ctx context.Context, ns vocab.ID) (vocab.ID, bool, error) {
	var iri string
	err := p.db.QueryRowContext(ctx,
		`SELECT iri FROM activities WHERE namespace_iri = ? AND started IS NOT NULL ORDER BY started DESC LIMIT 1`,
		ns.String(),
	).Scan(&iri)
	if err == sql.ErrNoRows {
		return vocab.ID{}, false, nil
	}
	if err != nil {
		return vocab.ID{}, false, errors.Wrap(errors.KindProjectionDegraded, err, "read most recently started activity")
	}
	id, err := vocab.Parse(iri)
	if err != nil {
		return vocab.ID{}, false, err
	}
	return id, true, nil
}
