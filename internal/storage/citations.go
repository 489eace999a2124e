package storage

import (
	"context"
	"fmt"
)

const selectCitationFields = `id, citing_paper_id, cited_paper_id, context, intent, llm_purpose, sentiment`

func scanCitation(s scanner) (Citation, error) {
	var c Citation
	err := s.Scan(&c.ID, &c.CitingPaperID, &c.CitedPaperID, &c.Context, &c.Intent, &c.LLMPurpose, &c.Sentiment)
	return c, err
}

// AddCitation stores one citing context. The (citing, cited, context)
// triple is unique; repeating it returns the stored row. Labels on c are
// ignored, they are set by SetSentiment and SetPurpose.
func (t *Tx) AddCitation(ctx context.Context, c Citation) (Citation, error) {
	if c.CitingPaperID == "" || c.CitedPaperID == "" {
		return Citation{}, fmt.Errorf("adding citation %q -> %q: empty paper id", c.CitingPaperID, c.CitedPaperID)
	}

	_, err := t.addOrGet(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO citations (citing_paper_id, cited_paper_id, context, intent)
			VALUES (?, ?, ?, ?)
		`, c.CitingPaperID, c.CitedPaperID, c.Context, c.Intent)
		return err
	})
	if err != nil {
		return Citation{}, fmt.Errorf("adding citation %s -> %s: %w", c.CitingPaperID, c.CitedPaperID, err)
	}

	row := t.tx.QueryRowContext(ctx, `
		SELECT `+selectCitationFields+` FROM citations
		WHERE citing_paper_id = ? AND cited_paper_id = ? AND context = ?
	`, c.CitingPaperID, c.CitedPaperID, c.Context)
	out, err := scanCitation(row)
	if err != nil {
		return Citation{}, notFound(err, "citation", c.CitingPaperID+"->"+c.CitedPaperID)
	}
	return out, nil
}

// AddCitation stores one citing context in its own transaction.
func (d *DB) AddCitation(ctx context.Context, c Citation) (Citation, error) {
	return inTx(ctx, d, func(tx *Tx) (Citation, error) {
		return tx.AddCitation(ctx, c)
	})
}

// CitationsForPaper returns the contexts citing the paper, in insertion order.
func (d *DB) CitationsForPaper(ctx context.Context, citedExternalID string) ([]Citation, error) {
	return d.queryCitations(ctx, `
		SELECT `+selectCitationFields+` FROM citations
		WHERE cited_paper_id = ? ORDER BY id
	`, citedExternalID)
}

// ReferencesOfPaper returns the contexts in which the paper cites others.
func (d *DB) ReferencesOfPaper(ctx context.Context, citingExternalID string) ([]Citation, error) {
	return d.queryCitations(ctx, `
		SELECT `+selectCitationFields+` FROM citations
		WHERE citing_paper_id = ? ORDER BY id
	`, citingExternalID)
}

// ListCitations returns citations with start <= id < end, ordered by id.
// An end of 0 or less means no upper bound.
func (d *DB) ListCitations(ctx context.Context, start, end int64) ([]Citation, error) {
	if end <= 0 {
		return d.queryCitations(ctx, `
			SELECT `+selectCitationFields+` FROM citations
			WHERE id >= ? ORDER BY id
		`, start)
	}
	return d.queryCitations(ctx, `
		SELECT `+selectCitationFields+` FROM citations
		WHERE id >= ? AND id < ? ORDER BY id
	`, start, end)
}

// GetCitation returns the citation with the given row id.
func (d *DB) GetCitation(ctx context.Context, id int64) (Citation, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectCitationFields+` FROM citations WHERE id = ?`, id)
	c, err := scanCitation(row)
	if err != nil {
		return Citation{}, notFound(err, "citation", fmt.Sprint(id))
	}
	return c, nil
}

// SetSentiment records the sentiment label of a citation.
func (d *DB) SetSentiment(ctx context.Context, id int64, label string) error {
	return d.setLabel(ctx, "sentiment", id, label)
}

// SetPurpose records the purpose label of a citation.
func (d *DB) SetPurpose(ctx context.Context, id int64, label string) error {
	return d.setLabel(ctx, "llm_purpose", id, label)
}

func (d *DB) setLabel(ctx context.Context, column string, id int64, label string) error {
	res, err := d.db.ExecContext(ctx, `UPDATE citations SET `+column+` = ? WHERE id = ?`, label, id)
	if err != nil {
		return fmt.Errorf("setting %s on citation %d: %w", column, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting %s on citation %d: %w", column, id, err)
	}
	if n == 0 {
		return fmt.Errorf("citation %d: %w", id, ErrNotFound)
	}
	return nil
}

func (d *DB) queryCitations(ctx context.Context, query string, args ...any) ([]Citation, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying citations: %w", err)
	}
	defer rows.Close()

	var out []Citation
	for rows.Next() {
		c, err := scanCitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning citation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats counts rows and pending crawl work.
func (d *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM researchers),
			(SELECT COUNT(*) FROM papers),
			(SELECT COUNT(*) FROM authorships),
			(SELECT COUNT(*) FROM citations),
			(SELECT COUNT(*) FROM papers WHERE citations_fetched = 0),
			(SELECT COUNT(*) FROM papers WHERE references_fetched = 0),
			(SELECT COUNT(*) FROM citations WHERE sentiment IS NOT NULL),
			(SELECT COUNT(*) FROM citations WHERE llm_purpose IS NOT NULL)
	`).Scan(&s.Researchers, &s.Papers, &s.Authorships, &s.Citations,
		&s.PendingCitations, &s.PendingReferences, &s.WithSentiment, &s.WithPurpose)
	if err != nil {
		return Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	return s, nil
}
