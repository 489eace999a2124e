package storage

import (
	"context"
	"fmt"
)

const selectPaperFields = `p.id, p.external_id, p.title, p.year, p.venue, p.citation_count, p.doi,
	p.citations_fetched, p.references_fetched`

func scanPaper(s scanner) (Paper, error) {
	var p Paper
	err := s.Scan(&p.ID, &p.ExternalID, &p.Title, &p.Year, &p.Venue, &p.CitationCount, &p.DOI,
		&p.CitationsFetched, &p.ReferencesFetched)
	return p, err
}

// AddPaper stores p, or returns the paper already stored under
// p.ExternalID unchanged. The progress flags of p are ignored; new papers
// always start unfetched.
func (t *Tx) AddPaper(ctx context.Context, p Paper) (Paper, error) {
	if p.ExternalID == "" {
		return Paper{}, fmt.Errorf("adding paper %q: empty external id", p.Title)
	}

	_, err := t.addOrGet(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO papers (external_id, title, year, venue, citation_count, doi)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.ExternalID, p.Title, p.Year, p.Venue, p.CitationCount, p.DOI)
		return err
	})
	if err != nil {
		return Paper{}, fmt.Errorf("adding paper %s: %w", p.ExternalID, err)
	}

	return getPaper(ctx, t.tx, p.ExternalID)
}

// AddPaper stores p in its own transaction. See Tx.AddPaper.
func (d *DB) AddPaper(ctx context.Context, p Paper) (Paper, error) {
	return inTx(ctx, d, func(tx *Tx) (Paper, error) {
		return tx.AddPaper(ctx, p)
	})
}

// GetPaper returns the paper with the given external id.
func (d *DB) GetPaper(ctx context.Context, externalID string) (Paper, error) {
	return getPaper(ctx, d.db, externalID)
}

func getPaper(ctx context.Context, q querier, externalID string) (Paper, error) {
	row := q.QueryRowContext(ctx, `SELECT `+selectPaperFields+` FROM papers p WHERE p.external_id = ?`, externalID)
	p, err := scanPaper(row)
	if err != nil {
		return Paper{}, notFound(err, "paper", externalID)
	}
	return p, nil
}

// MarkCitationsFetched records that every citation of the paper has been
// stored. It reports whether the flag changed; marking twice is a no-op.
func (t *Tx) MarkCitationsFetched(ctx context.Context, externalID string) (bool, error) {
	return markFetched(ctx, t.tx, "citations_fetched", externalID)
}

// MarkReferencesFetched records that every reference of the paper has
// been stored.
func (t *Tx) MarkReferencesFetched(ctx context.Context, externalID string) (bool, error) {
	return markFetched(ctx, t.tx, "references_fetched", externalID)
}

// MarkCitationsFetched marks the paper in its own transaction.
func (d *DB) MarkCitationsFetched(ctx context.Context, externalID string) (bool, error) {
	return markFetched(ctx, d.db, "citations_fetched", externalID)
}

// MarkReferencesFetched marks the paper in its own transaction.
func (d *DB) MarkReferencesFetched(ctx context.Context, externalID string) (bool, error) {
	return markFetched(ctx, d.db, "references_fetched", externalID)
}

// markFetched only ever sets a flag, never clears it.
func markFetched(ctx context.Context, q querier, column, externalID string) (bool, error) {
	res, err := q.ExecContext(ctx, `UPDATE papers SET `+column+` = 1 WHERE external_id = ? AND `+column+` = 0`, externalID)
	if err != nil {
		return false, fmt.Errorf("marking %s on %s: %w", column, externalID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking %s on %s: %w", column, externalID, err)
	}
	if n == 0 {
		if _, err := getPaper(ctx, q, externalID); err != nil {
			return false, err
		}
	}
	return n > 0, nil
}

// PapersByResearcher returns the researcher's papers in id order.
func (d *DB) PapersByResearcher(ctx context.Context, researcherID int64) ([]Paper, error) {
	return d.queryPapers(ctx, `
		SELECT `+selectPaperFields+`
		FROM papers p JOIN authorships a ON a.paper_id = p.id
		WHERE a.researcher_id = ?
		ORDER BY p.id
	`, researcherID)
}

// PapersPendingCitations returns the researcher's papers whose citations
// have not been fully fetched.
func (d *DB) PapersPendingCitations(ctx context.Context, researcherID int64) ([]Paper, error) {
	return d.queryPapers(ctx, `
		SELECT `+selectPaperFields+`
		FROM papers p JOIN authorships a ON a.paper_id = p.id
		WHERE a.researcher_id = ? AND p.citations_fetched = 0
		ORDER BY p.id
	`, researcherID)
}

// PapersPendingReferences returns the researcher's papers whose references
// have not been fully fetched.
func (d *DB) PapersPendingReferences(ctx context.Context, researcherID int64) ([]Paper, error) {
	return d.queryPapers(ctx, `
		SELECT `+selectPaperFields+`
		FROM papers p JOIN authorships a ON a.paper_id = p.id
		WHERE a.researcher_id = ? AND p.references_fetched = 0
		ORDER BY p.id
	`, researcherID)
}

func (d *DB) queryPapers(ctx context.Context, query string, args ...any) ([]Paper, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var papers []Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}
