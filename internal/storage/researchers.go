package storage

import (
	"context"
	"fmt"
)

const selectResearcherFields = `id, external_id, name, h_index, institution`

type scanner interface {
	Scan(dest ...any) error
}

func scanResearcher(s scanner) (Researcher, error) {
	var r Researcher
	err := s.Scan(&r.ID, &r.ExternalID, &r.Name, &r.HIndex, &r.Institution)
	return r, err
}

// AddResearcher stores r, or returns the researcher already stored under
// r.ExternalID. An existing row only gains h-index and institution when
// they were unset.
func (t *Tx) AddResearcher(ctx context.Context, r Researcher) (Researcher, error) {
	if r.ExternalID == "" {
		return Researcher{}, fmt.Errorf("adding researcher %q: empty external id", r.Name)
	}

	inserted, err := t.addOrGet(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO researchers (external_id, name, h_index, institution)
			VALUES (?, ?, ?, ?)
		`, r.ExternalID, r.Name, r.HIndex, r.Institution)
		return err
	})
	if err != nil {
		return Researcher{}, fmt.Errorf("adding researcher %s: %w", r.ExternalID, err)
	}

	if !inserted && (r.HIndex != nil || r.Institution != nil) {
		_, err := t.tx.ExecContext(ctx, `
			UPDATE researchers
			SET h_index = COALESCE(h_index, ?), institution = COALESCE(institution, ?)
			WHERE external_id = ?
		`, r.HIndex, r.Institution, r.ExternalID)
		if err != nil {
			return Researcher{}, fmt.Errorf("filling researcher %s: %w", r.ExternalID, err)
		}
	}

	return getResearcher(ctx, t.tx, r.ExternalID)
}

// AddResearcher stores r in its own transaction. See Tx.AddResearcher.
func (d *DB) AddResearcher(ctx context.Context, r Researcher) (Researcher, error) {
	return inTx(ctx, d, func(tx *Tx) (Researcher, error) {
		return tx.AddResearcher(ctx, r)
	})
}

// GetResearcher returns the researcher with the given external id.
func (d *DB) GetResearcher(ctx context.Context, externalID string) (Researcher, error) {
	return getResearcher(ctx, d.db, externalID)
}

// GetResearcher reads a researcher inside the transaction.
func (t *Tx) GetResearcher(ctx context.Context, externalID string) (Researcher, error) {
	return getResearcher(ctx, t.tx, externalID)
}

func getResearcher(ctx context.Context, q querier, externalID string) (Researcher, error) {
	row := q.QueryRowContext(ctx, `SELECT `+selectResearcherFields+` FROM researchers WHERE external_id = ?`, externalID)
	r, err := scanResearcher(row)
	if err != nil {
		return Researcher{}, notFound(err, "researcher", externalID)
	}
	return r, nil
}

// HasResearcher reports whether a researcher with the external id is stored.
func (d *DB) HasResearcher(ctx context.Context, externalID string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM researchers WHERE external_id = ?`, externalID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking researcher %s: %w", externalID, err)
	}
	return n > 0, nil
}

// ListResearchers returns every stored researcher ordered by id.
func (d *DB) ListResearchers(ctx context.Context) ([]Researcher, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+selectResearcherFields+` FROM researchers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing researchers: %w", err)
	}
	defer rows.Close()

	var out []Researcher
	for rows.Next() {
		r, err := scanResearcher(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning researcher: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
