// Package resolve picks one canonical researcher for a name by matching
// across OpenAlex and Semantic Scholar.
package resolve

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/matsen/citeq/internal/fuzzy"
	"github.com/matsen/citeq/internal/httpx"
	"github.com/matsen/citeq/internal/openalex"
	"github.com/matsen/citeq/internal/s2"
	"github.com/matsen/citeq/internal/storage"
)

// AuthorDirectory is the OpenAlex side of resolution.
type AuthorDirectory interface {
	SearchAuthors(name string) *httpx.Pager[openalex.Author]
}

// AuthorGraph is the Semantic Scholar side of resolution.
type AuthorGraph interface {
	SearchAuthors(query string) *httpx.Pager[s2.Author]
	GetAuthor(ctx context.Context, authorID string) (*s2.Author, error)
}

// Result is a resolved researcher plus the evidence behind the choice.
type Result struct {
	Researcher  storage.Researcher `json:"researcher"`
	Score       float64            `json:"score"`
	SourceA     fuzzy.Scored       `json:"source_a"`
	CandidatesA []fuzzy.Scored     `json:"candidates_a"`
	CandidatesB []fuzzy.Scored     `json:"candidates_b"`
}

// Resolver resolves query profiles to researchers.
type Resolver struct {
	a   AuthorDirectory
	b   AuthorGraph
	log *zap.Logger
}

// New creates a resolver over the two sources.
func New(a AuthorDirectory, b AuthorGraph, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{a: a, b: b, log: log}
}

// Resolve finds the Semantic Scholar author that best matches q.
//
// The OpenAlex search picks a reference profile by name, institution and
// alternative names among authors with works and citations. Semantic
// Scholar candidates are then scored by name and penalized by how far
// their paper count, h-index and per-year output disagree with it.
func (r *Resolver) Resolve(ctx context.Context, q fuzzy.Profile) (*Result, error) {
	log := r.log.With(zap.String("query", q.Name))

	authorsA, err := httpx.Collect(ctx, r.a.SearchAuthors(q.Name))
	if err != nil {
		return nil, fmt.Errorf("searching OpenAlex for %q: %w", q.Name, err)
	}
	if len(authorsA) == 0 {
		return nil, &ResolutionFailedError{Query: q, Step: StepSourceASearch, Err: fuzzy.ErrNoCandidates}
	}

	byIDA := make(map[string]openalex.Author, len(authorsA))
	candidatesA := make([]fuzzy.Candidate, 0, len(authorsA))
	for _, a := range authorsA {
		if _, dup := byIDA[a.ShortID()]; dup {
			continue
		}
		byIDA[a.ShortID()] = a
		candidatesA = append(candidatesA, candidateFromOpenAlex(a))
	}

	qualified := fuzzy.Qualifying(candidatesA)
	if len(qualified) == 0 {
		return nil, &ResolutionFailedError{
			Query:      q,
			Step:       StepSourceAFilter,
			Err:        fuzzy.ErrNoQualifyingCandidates,
			Candidates: fuzzy.Rank(q, candidatesA),
		}
	}

	bestA, err := fuzzy.Best(q, qualified)
	if err != nil {
		return nil, &ResolutionFailedError{Query: q, Step: StepSourceAMatch, Err: err}
	}
	ref := byIDA[bestA.Candidate.ID]
	log.Info("OpenAlex match",
		zap.String("id", bestA.Candidate.ID),
		zap.String("name", bestA.Candidate.DisplayName),
		zap.Float64("score", bestA.Score),
		zap.Int("candidates", len(qualified)))

	authorsB, err := r.searchB(ctx, ref.DisplayName, q.Name)
	if err != nil {
		return nil, err
	}
	if len(authorsB) == 0 {
		return nil, &ResolutionFailedError{
			Query:      q,
			Step:       StepSourceBSearch,
			Err:        fuzzy.ErrNoCandidates,
			Candidates: fuzzy.Rank(q, qualified),
		}
	}

	byIDB := make(map[string]s2.Author, len(authorsB))
	candidatesB := make([]fuzzy.Candidate, 0, len(authorsB))
	for _, a := range authorsB {
		byIDB[a.AuthorID] = a
		candidatesB = append(candidatesB, candidateFromS2(a))
	}

	qb := q
	if qb.Institution == "" {
		qb.Institution = ref.Institution()
	}
	score := func(c fuzzy.Candidate) float64 {
		return fuzzy.Score(qb, c) - Disagreement(ref, byIDB[c.ID])
	}

	bestB, err := fuzzy.BestBy(candidatesB, score)
	if err != nil {
		return nil, &ResolutionFailedError{Query: q, Step: StepSourceBMatch, Err: err}
	}
	log.Info("Semantic Scholar match",
		zap.String("id", bestB.Candidate.ID),
		zap.String("name", bestB.Candidate.DisplayName),
		zap.Float64("score", bestB.Score),
		zap.Int("candidates", len(candidatesB)))

	return &Result{
		Researcher:  s2.MapAuthor(byIDB[bestB.Candidate.ID]),
		Score:       bestB.Score,
		SourceA:     bestA,
		CandidatesA: fuzzy.Rank(q, qualified),
		CandidatesB: fuzzy.RankBy(candidatesB, score),
	}, nil
}

// searchB searches Semantic Scholar by each name in turn until one yields
// results. Duplicate author ids are dropped.
func (r *Resolver) searchB(ctx context.Context, names ...string) ([]s2.Author, error) {
	tried := make(map[string]bool)
	for _, name := range names {
		if name == "" || tried[name] {
			continue
		}
		tried[name] = true

		found, err := httpx.Collect(ctx, r.b.SearchAuthors(name))
		if err != nil {
			return nil, fmt.Errorf("searching Semantic Scholar for %q: %w", name, err)
		}

		seen := make(map[string]bool, len(found))
		var authors []s2.Author
		for _, a := range found {
			if a.AuthorID == "" || seen[a.AuthorID] {
				continue
			}
			seen[a.AuthorID] = true
			authors = append(authors, a)
		}
		if len(authors) > 0 {
			return authors, nil
		}
	}
	return nil, nil
}

// ResolveByID skips matching and looks the author up directly.
func (r *Resolver) ResolveByID(ctx context.Context, authorID string) (*Result, error) {
	a, err := r.b.GetAuthor(ctx, authorID)
	if err != nil {
		if httpx.IsNotFound(err) {
			return nil, &ResolutionFailedError{Query: fuzzy.Profile{Name: authorID}, Step: StepSourceBLookup, Err: err}
		}
		return nil, err
	}
	return &Result{Researcher: s2.MapAuthor(*a)}, nil
}

// Disagreement measures how far a Semantic Scholar profile's numbers are
// from the OpenAlex reference: the absolute differences in total works and
// h-index, plus the per-year differences in works over the years OpenAlex
// reports.
func Disagreement(ref openalex.Author, b s2.Author) float64 {
	hB := 0
	if b.HIndex != nil {
		hB = *b.HIndex
	}

	d := math.Abs(float64(ref.WorksCount-b.PaperCount)) +
		math.Abs(float64(ref.SummaryStats.HIndex-hB))

	perYear := b.PapersByYear()
	for year, n := range ref.WorksByYear() {
		d += math.Abs(float64(n - perYear[year]))
	}
	return d
}

func candidateFromOpenAlex(a openalex.Author) fuzzy.Candidate {
	return fuzzy.Candidate{
		ID:               a.ShortID(),
		DisplayName:      a.DisplayName,
		Institution:      a.Institution(),
		AlternativeNames: a.DisplayNameAlternatives,
		Works:            a.WorksCount,
		Citations:        a.CitedByCount,
	}
}

func candidateFromS2(a s2.Author) fuzzy.Candidate {
	return fuzzy.Candidate{
		ID:               a.AuthorID,
		DisplayName:      a.Name,
		Institution:      a.Institution(),
		AlternativeNames: a.Aliases,
		Works:            a.PaperCount,
		Citations:        a.CitationCount,
	}
}
