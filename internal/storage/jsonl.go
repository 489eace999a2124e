package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// Record types in a graph dump.
const (
	RecordResearcher = "researcher"
	RecordPaper      = "paper"
	RecordAuthorship = "authorship"
	RecordCitation   = "citation"
)

// Record is one line of a graph dump. Exactly one payload field is set,
// matching Type. Authorships name their ends by external id so a dump can
// be loaded into a store with different row ids.
type Record struct {
	Type       string            `json:"type"`
	Researcher *Researcher       `json:"researcher,omitempty"`
	Paper      *Paper            `json:"paper,omitempty"`
	Authorship *AuthorshipRecord `json:"authorship,omitempty"`
	Citation   *Citation         `json:"citation,omitempty"`
}

// AuthorshipRecord is an authorship keyed by external ids.
type AuthorshipRecord struct {
	Researcher string `json:"researcher"`
	Paper      string `json:"paper"`
	Order      int    `json:"author_order"`
}

// DumpCounts counts the records written or read.
type DumpCounts struct {
	Researchers int `json:"researchers"`
	Papers      int `json:"papers"`
	Authorships int `json:"authorships"`
	Citations   int `json:"citations"`
}

// ExportJSONL writes the whole graph to w, one record per line, with every
// researcher and paper before the authorships that reference them.
func (d *DB) ExportJSONL(ctx context.Context, w io.Writer) (DumpCounts, error) {
	var counts DumpCounts
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	researchers, err := d.ListResearchers(ctx)
	if err != nil {
		return counts, err
	}
	for i := range researchers {
		if err := enc.Encode(Record{Type: RecordResearcher, Researcher: &researchers[i]}); err != nil {
			return counts, fmt.Errorf("encoding researcher: %w", err)
		}
		counts.Researchers++
	}

	papers, err := d.queryPapers(ctx, `SELECT `+selectPaperFields+` FROM papers p ORDER BY p.id`)
	if err != nil {
		return counts, err
	}
	for i := range papers {
		if err := enc.Encode(Record{Type: RecordPaper, Paper: &papers[i]}); err != nil {
			return counts, fmt.Errorf("encoding paper: %w", err)
		}
		counts.Papers++
	}

	authorships, err := d.authorshipRecords(ctx)
	if err != nil {
		return counts, err
	}
	for i := range authorships {
		if err := enc.Encode(Record{Type: RecordAuthorship, Authorship: &authorships[i]}); err != nil {
			return counts, fmt.Errorf("encoding authorship: %w", err)
		}
		counts.Authorships++
	}

	citations, err := d.ListCitations(ctx, 0, 0)
	if err != nil {
		return counts, err
	}
	for i := range citations {
		if err := enc.Encode(Record{Type: RecordCitation, Citation: &citations[i]}); err != nil {
			return counts, fmt.Errorf("encoding citation: %w", err)
		}
		counts.Citations++
	}

	if err := bw.Flush(); err != nil {
		return counts, fmt.Errorf("writing dump: %w", err)
	}
	return counts, nil
}

func (d *DB) authorshipRecords(ctx context.Context) ([]AuthorshipRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT r.external_id, p.external_id, a.author_order
		FROM authorships a
		JOIN researchers r ON r.id = a.researcher_id
		JOIN papers p ON p.id = a.paper_id
		ORDER BY a.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying authorships: %w", err)
	}
	defer rows.Close()

	var out []AuthorshipRecord
	for rows.Next() {
		var a AuthorshipRecord
		if err := rows.Scan(&a.Researcher, &a.Paper, &a.Order); err != nil {
			return nil, fmt.Errorf("scanning authorship: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ImportJSONL loads a graph dump in one transaction. Every record goes
// through the add-or-get writers, so loading a dump twice, or into a store
// that already holds part of it, adds only what is missing. Fetched flags
// and labels are merged: a set flag or label is never cleared.
func (d *DB) ImportJSONL(ctx context.Context, r io.Reader) (DumpCounts, error) {
	var counts DumpCounts
	err := d.InTx(ctx, func(tx *Tx) error {
		scanner := bufio.NewScanner(r)
		buf := make([]byte, MaxJSONLLineCapacity)
		scanner.Buffer(buf, MaxJSONLLineCapacity)

		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Bytes()
			if len(line) == 0 {
				continue // Skip empty lines
			}

			var rec Record
			if err := json.Unmarshal(line, &rec); err != nil {
				return fmt.Errorf("parsing line %d: %w", lineNum, err)
			}
			if err := tx.importRecord(ctx, rec, &counts); err != nil {
				return fmt.Errorf("line %d: %w", lineNum, err)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading dump: %w", err)
		}
		return nil
	})
	if err != nil {
		return DumpCounts{}, err
	}
	return counts, nil
}

func (t *Tx) importRecord(ctx context.Context, rec Record, counts *DumpCounts) error {
	switch {
	case rec.Type == RecordResearcher && rec.Researcher != nil:
		if _, err := t.AddResearcher(ctx, *rec.Researcher); err != nil {
			return err
		}
		counts.Researchers++

	case rec.Type == RecordPaper && rec.Paper != nil:
		p := rec.Paper
		if _, err := t.AddPaper(ctx, *p); err != nil {
			return err
		}
		if p.CitationsFetched {
			if _, err := t.MarkCitationsFetched(ctx, p.ExternalID); err != nil {
				return err
			}
		}
		if p.ReferencesFetched {
			if _, err := t.MarkReferencesFetched(ctx, p.ExternalID); err != nil {
				return err
			}
		}
		counts.Papers++

	case rec.Type == RecordAuthorship && rec.Authorship != nil:
		a := rec.Authorship
		researcher, err := t.GetResearcher(ctx, a.Researcher)
		if err != nil {
			return err
		}
		paper, err := getPaper(ctx, t.tx, a.Paper)
		if err != nil {
			return err
		}
		if _, err := t.AddAuthorship(ctx, Authorship{ResearcherID: researcher.ID, PaperID: paper.ID, Order: a.Order}); err != nil {
			return err
		}
		counts.Authorships++

	case rec.Type == RecordCitation && rec.Citation != nil:
		c := rec.Citation
		stored, err := t.AddCitation(ctx, *c)
		if err != nil {
			return err
		}
		if c.LLMPurpose != nil || c.Sentiment != nil {
			_, err := t.tx.ExecContext(ctx, `
				UPDATE citations
				SET llm_purpose = COALESCE(llm_purpose, ?), sentiment = COALESCE(sentiment, ?)
				WHERE id = ?
			`, c.LLMPurpose, c.Sentiment, stored.ID)
			if err != nil {
				return fmt.Errorf("merging labels of citation %d: %w", stored.ID, err)
			}
		}
		counts.Citations++

	default:
		return fmt.Errorf("unknown or empty record %q", rec.Type)
	}
	return nil
}
