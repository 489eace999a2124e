package storage

import (
	"context"
	"fmt"
)

// AddAuthorship links a researcher to a paper. A repeated link returns the
// existing row, including its original order.
func (t *Tx) AddAuthorship(ctx context.Context, a Authorship) (Authorship, error) {
	_, err := t.addOrGet(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO authorships (researcher_id, paper_id, author_order)
			VALUES (?, ?, ?)
		`, a.ResearcherID, a.PaperID, a.Order)
		return err
	})
	if err != nil {
		return Authorship{}, fmt.Errorf("adding authorship %d/%d: %w", a.ResearcherID, a.PaperID, err)
	}

	var out Authorship
	err = t.tx.QueryRowContext(ctx, `
		SELECT id, researcher_id, paper_id, author_order
		FROM authorships WHERE researcher_id = ? AND paper_id = ?
	`, a.ResearcherID, a.PaperID).Scan(&out.ID, &out.ResearcherID, &out.PaperID, &out.Order)
	if err != nil {
		return Authorship{}, notFound(err, "authorship", fmt.Sprintf("%d/%d", a.ResearcherID, a.PaperID))
	}
	return out, nil
}

// AddAuthorship links a researcher to a paper in its own transaction.
func (d *DB) AddAuthorship(ctx context.Context, a Authorship) (Authorship, error) {
	return inTx(ctx, d, func(tx *Tx) (Authorship, error) {
		return tx.AddAuthorship(ctx, a)
	})
}
