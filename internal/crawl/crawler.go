// Package crawl walks a researcher's publication and citation graph and
// persists it. Each stage is checkpointed in the store, so an interrupted
// run can simply be started again.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/citeq/internal/httpx"
	"github.com/matsen/citeq/internal/s2"
	"github.com/matsen/citeq/internal/storage"
)

// Crawler runs the papers, citations and references stages in order.
type Crawler struct {
	src     Source
	db      *storage.DB
	log     *zap.Logger
	metrics *Metrics
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Crawler) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(c *Crawler) {
		c.metrics = m
	}
}

// New creates a crawler reading from src and writing to db.
func New(src Source, db *storage.DB, opts ...Option) *Crawler {
	c := &Crawler{src: src, db: db, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report summarizes one run.
type Report struct {
	Researcher        storage.Researcher `json:"researcher"`
	Papers            int                `json:"papers"`
	Citations         int                `json:"citations"`
	References        int                `json:"references"`
	SkippedCitations  []string           `json:"skipped_citations,omitempty"`
	SkippedReferences []string           `json:"skipped_references,omitempty"`
}

// Run crawls r. Papers whose citations or references were already fetched
// are not fetched again. The returned report is non-nil even on error and
// reflects the work committed before the failure.
func (c *Crawler) Run(ctx context.Context, r storage.Researcher) (*Report, error) {
	researcher, err := c.db.AddResearcher(ctx, r)
	if err != nil {
		return &Report{Researcher: r}, fmt.Errorf("storing researcher: %w", err)
	}
	report := &Report{Researcher: researcher}
	log := c.log.With(zap.String("researcher", researcher.ExternalID))

	start := time.Now()
	err = c.FetchPapers(ctx, researcher, report)
	c.metrics.observe(StagePapers, start)
	if err != nil {
		return report, fmt.Errorf("fetching papers: %w", err)
	}
	log.Info("papers stage done", zap.Int("papers", report.Papers))

	for _, stage := range []Stage{StageCitations, StageReferences} {
		start := time.Now()
		err := c.FetchEdges(ctx, researcher, stage, report)
		c.metrics.observe(stage, start)
		if err != nil {
			return report, fmt.Errorf("fetching %s: %w", stage, err)
		}
	}

	log.Info("crawl done",
		zap.Int("citations", report.Citations),
		zap.Int("references", report.References),
		zap.Int("skipped", len(report.SkippedCitations)+len(report.SkippedReferences)))
	return report, nil
}

// FetchPapers pages through the researcher's papers. Each page is enriched
// in one batch call, unknown co-authors are looked up, and then the page's
// papers, co-authors and authorships are written in one transaction. Any
// failure aborts.
func (c *Crawler) FetchPapers(ctx context.Context, r storage.Researcher, report *Report) error {
	log := c.log.With(zap.String("researcher", r.ExternalID), zap.String("stage", string(StagePapers)))

	pager := c.src.AuthorPapers(r.ExternalID)
	for pager.Next(ctx) {
		ids := pager.Page().Items
		if len(ids) == 0 {
			continue
		}

		papers, err := c.src.PaperBatch(ctx, ids)
		if err != nil {
			return fmt.Errorf("batch details: %w", err)
		}

		var kept []*s2.Paper
		for i, p := range papers {
			if p == nil || p.PaperID == "" {
				log.Warn("skipping paper without details", zap.String("paper", ids[i]))
				continue
			}
			kept = append(kept, p)
		}

		coauthors, err := c.lookupCoauthors(ctx, r, kept)
		if err != nil {
			return err
		}

		err = c.db.InTx(ctx, func(tx *storage.Tx) error {
			for _, p := range kept {
				if err := writePaper(ctx, tx, r, p, coauthors); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		report.Papers += len(kept)
		c.metrics.addPapers(len(kept))
		log.Info("papers page stored", zap.Int("page", pager.Pages()), zap.Int("papers", report.Papers))
	}
	return pager.Err()
}

// lookupCoauthors fetches profiles for byline authors not yet in the store.
// An author the source no longer knows is stored under its byline name.
func (c *Crawler) lookupCoauthors(ctx context.Context, r storage.Researcher, papers []*s2.Paper) (map[string]storage.Researcher, error) {
	out := make(map[string]storage.Researcher)
	for _, p := range papers {
		for _, a := range p.Authors {
			if a.AuthorID == "" || a.AuthorID == r.ExternalID {
				continue
			}
			if _, seen := out[a.AuthorID]; seen {
				continue
			}

			known, err := c.db.HasResearcher(ctx, a.AuthorID)
			if err != nil {
				return nil, err
			}
			if known {
				out[a.AuthorID] = storage.Researcher{ExternalID: a.AuthorID, Name: a.Name}
				continue
			}

			profile, err := c.src.GetAuthor(ctx, a.AuthorID)
			switch {
			case httpx.IsNotFound(err):
				c.log.Debug("co-author not found", zap.String("author", a.AuthorID))
				out[a.AuthorID] = storage.Researcher{ExternalID: a.AuthorID, Name: a.Name}
			case err != nil:
				return nil, fmt.Errorf("looking up co-author %s: %w", a.AuthorID, err)
			default:
				row := s2.MapAuthor(*profile)
				if row.Name == "" {
					row.Name = a.Name
				}
				out[a.AuthorID] = row
			}
		}
	}
	return out, nil
}

// writePaper stores p, its byline and the researcher's authorship. The
// researcher's order is -1 when the byline omits them.
func writePaper(ctx context.Context, tx *storage.Tx, r storage.Researcher, p *s2.Paper, coauthors map[string]storage.Researcher) error {
	paper, err := tx.AddPaper(ctx, s2.MapPaper(*p))
	if err != nil {
		return err
	}

	linked := false
	for order, a := range p.Authors {
		if a.AuthorID == "" {
			continue
		}
		author := r
		if a.AuthorID != r.ExternalID {
			author, err = tx.AddResearcher(ctx, coauthors[a.AuthorID])
			if err != nil {
				return err
			}
		} else {
			linked = true
		}
		if _, err := tx.AddAuthorship(ctx, storage.Authorship{
			ResearcherID: author.ID,
			PaperID:      paper.ID,
			Order:        order,
		}); err != nil {
			return err
		}
	}

	if !linked {
		_, err = tx.AddAuthorship(ctx, storage.Authorship{ResearcherID: r.ID, PaperID: paper.ID, Order: -1})
	}
	return err
}

// FetchEdges fetches citations or references for each of the researcher's
// papers whose flag for stage is still unset. A paper is marked only after
// its last page is committed. A paper whose fetch ran out of retries, came
// back malformed or disappeared upstream is skipped and keeps its flag.
func (c *Crawler) FetchEdges(ctx context.Context, r storage.Researcher, stage Stage, report *Report) error {
	log := c.log.With(zap.String("researcher", r.ExternalID), zap.String("stage", string(stage)))

	var (
		pending []storage.Paper
		err     error
	)
	switch stage {
	case StageCitations:
		pending, err = c.db.PapersPendingCitations(ctx, r.ID)
	case StageReferences:
		pending, err = c.db.PapersPendingReferences(ctx, r.ID)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
	if err != nil {
		return err
	}

	for i, p := range pending {
		log.Info("fetching edges",
			zap.String("paper", p.ExternalID),
			zap.String("progress", fmt.Sprintf("%d/%d", i+1, len(pending))))

		n, err := c.fetchPaperEdges(ctx, stage, p.ExternalID)
		switch stage {
		case StageCitations:
			report.Citations += n
		case StageReferences:
			report.References += n
		}
		c.metrics.addCitations(n)

		if err != nil {
			if ctx.Err() == nil && skippable(err) {
				log.Warn("skipping paper", zap.String("paper", p.ExternalID), zap.Error(err))
				c.metrics.skip(stage)
				if stage == StageCitations {
					report.SkippedCitations = append(report.SkippedCitations, p.ExternalID)
				} else {
					report.SkippedReferences = append(report.SkippedReferences, p.ExternalID)
				}
				continue
			}
			return fmt.Errorf("paper %s: %w", p.ExternalID, err)
		}

		if stage == StageCitations {
			_, err = c.db.MarkCitationsFetched(ctx, p.ExternalID)
		} else {
			_, err = c.db.MarkReferencesFetched(ctx, p.ExternalID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// fetchPaperEdges pages through one paper's edges, committing each page,
// and returns the number of citation rows written.
func (c *Crawler) fetchPaperEdges(ctx context.Context, stage Stage, paperID string) (int, error) {
	var pager *httpx.Pager[s2.Edge]
	if stage == StageCitations {
		pager = c.src.Citations(paperID, httpx.Start)
	} else {
		pager = c.src.References(paperID, httpx.Start)
	}

	written := 0
	for pager.Next(ctx) {
		edges := pager.Page().Items
		n := 0
		err := c.db.InTx(ctx, func(tx *storage.Tx) error {
			n = 0
			for _, e := range edges {
				k, err := c.writeEdge(ctx, tx, stage, paperID, e)
				if err != nil {
					return err
				}
				n += k
			}
			return nil
		})
		if err != nil {
			return written, err
		}
		written += n
	}

	if err := pager.Err(); err != nil {
		if errors.Is(err, httpx.ErrDecode) {
			return written, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return written, err
	}
	return written, nil
}

// writeEdge stores the paper at the far end of e and one citation row per
// context. An edge without contexts is stored once with an empty context.
func (c *Crawler) writeEdge(ctx context.Context, tx *storage.Tx, stage Stage, paperID string, e s2.Edge) (int, error) {
	if e.Paper == nil || e.Paper.PaperID == "" {
		c.log.Warn("skipping edge without paper id",
			zap.String("paper", paperID),
			zap.String("stage", string(stage)),
			zap.Error(ErrMalformed))
		return 0, nil
	}

	other, err := tx.AddPaper(ctx, s2.MapPaper(*e.Paper))
	if err != nil {
		return 0, err
	}

	citing, cited := other.ExternalID, paperID
	if stage == StageReferences {
		citing, cited = paperID, other.ExternalID
	}

	contexts := e.Contexts
	if len(contexts) == 0 {
		contexts = []string{""}
	}
	intent := s2.JoinIntents(e.Intents)

	for _, text := range contexts {
		if _, err := tx.AddCitation(ctx, storage.Citation{
			CitingPaperID: citing,
			CitedPaperID:  cited,
			Context:       text,
			Intent:        &intent,
		}); err != nil {
			return 0, err
		}
	}
	return len(contexts), nil
}
