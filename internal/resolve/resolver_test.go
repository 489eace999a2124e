package resolve

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/matsen/citeq/internal/fuzzy"
	"github.com/matsen/citeq/internal/httpx"
	"github.com/matsen/citeq/internal/openalex"
	"github.com/matsen/citeq/internal/s2"
	"github.com/matsen/citeq/internal/storage"
)

func staticPager[T any](items []T) *httpx.Pager[T] {
	return httpx.NewPager(func(ctx context.Context, at httpx.Checkpoint) (httpx.Page[T], error) {
		return httpx.Page[T]{Items: items, Next: httpx.Checkpoint{Done: true}}, nil
	}, httpx.Start)
}

type fakeDirectory struct {
	authors []openalex.Author
}

func (f *fakeDirectory) SearchAuthors(name string) *httpx.Pager[openalex.Author] {
	return staticPager(f.authors)
}

type fakeGraph struct {
	byQuery map[string][]s2.Author
	byID    map[string]s2.Author
	queries []string
}

func (f *fakeGraph) SearchAuthors(query string) *httpx.Pager[s2.Author] {
	f.queries = append(f.queries, query)
	return staticPager(f.byQuery[query])
}

func (f *fakeGraph) GetAuthor(ctx context.Context, id string) (*s2.Author, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("author %s: %w", id, httpx.ErrNotFound)
	}
	return &a, nil
}

func papersIn(years ...int) []s2.PaperYear {
	out := make([]s2.PaperYear, len(years))
	for i, y := range years {
		out[i] = s2.PaperYear{PaperID: fmt.Sprint(i), Year: y}
	}
	return out
}

var (
	alice = openalex.Author{
		ID:                    "https://openalex.org/A1",
		DisplayName:           "Alice Smith",
		WorksCount:            50,
		CitedByCount:          500,
		LastKnownInstitutions: []openalex.Institution{{DisplayName: "MIT"}},
		SummaryStats:          openalex.SummaryStats{HIndex: 10},
		CountsByYear:          []openalex.YearCount{{Year: 2022, WorksCount: 2}, {Year: 2023, WorksCount: 3}},
	}
	adam = openalex.Author{
		ID:                    "https://openalex.org/A2",
		DisplayName:           "Adam Smith",
		WorksCount:            3,
		CitedByCount:          10,
		LastKnownInstitutions: []openalex.Institution{{DisplayName: "Yale"}},
	}
)

func TestResolve_PicksMatchingIdentity(t *testing.T) {
	a := &fakeDirectory{authors: []openalex.Author{adam, alice}}
	b := &fakeGraph{byQuery: map[string][]s2.Author{
		"Alice Smith": {
			// Same name, but the numbers disagree with OpenAlex.
			{AuthorID: "S-wrong", Name: "Alice Smith", PaperCount: 4, CitationCount: 9, HIndex: storage.Ptr(1), Papers: papersIn(2001)},
			{AuthorID: "S-right", Name: "Alice Smith", Affiliations: []string{"MIT"}, PaperCount: 48, CitationCount: 480,
				HIndex: storage.Ptr(10), Papers: papersIn(2022, 2022, 2023, 2023, 2023)},
		},
	}}

	res, err := New(a, b, nil).Resolve(context.Background(), fuzzy.Profile{Name: "A. Smith", Institution: "MIT"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if res.SourceA.Candidate.ID != "A1" {
		t.Errorf("OpenAlex winner = %s, want A1 (Alice Smith)", res.SourceA.Candidate.ID)
	}
	if res.Researcher.ExternalID != "S-right" {
		t.Errorf("Researcher = %s, want S-right", res.Researcher.ExternalID)
	}
	if res.Researcher.Institution == nil || *res.Researcher.Institution != "MIT" {
		t.Errorf("Institution = %v, want MIT", res.Researcher.Institution)
	}
	if len(res.CandidatesB) != 2 || res.CandidatesB[0].Candidate.ID != "S-right" {
		t.Errorf("CandidatesB = %+v", res.CandidatesB)
	}
	if len(b.queries) != 1 || b.queries[0] != "Alice Smith" {
		t.Errorf("Semantic Scholar queries = %v, want [Alice Smith]", b.queries)
	}
}

func TestResolve_FallsBackToQueryName(t *testing.T) {
	a := &fakeDirectory{authors: []openalex.Author{alice}}
	b := &fakeGraph{byQuery: map[string][]s2.Author{
		"A. Smith": {
			{AuthorID: "S1", Name: "A. Smith", PaperCount: 50, HIndex: storage.Ptr(10)},
			{AuthorID: "S1", Name: "A. Smith", PaperCount: 50, HIndex: storage.Ptr(10)},
		},
	}}

	res, err := New(a, b, nil).Resolve(context.Background(), fuzzy.Profile{Name: "A. Smith"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Researcher.ExternalID != "S1" {
		t.Errorf("Researcher = %s, want S1", res.Researcher.ExternalID)
	}
	if len(res.CandidatesB) != 1 {
		t.Errorf("duplicate ids not dropped: %d candidates", len(res.CandidatesB))
	}
	if len(b.queries) != 2 || b.queries[1] != "A. Smith" {
		t.Errorf("queries = %v, want display name then query name", b.queries)
	}
}

func TestResolve_Failures(t *testing.T) {
	stub := openalex.Author{ID: "https://openalex.org/A9", DisplayName: "Alice Smith"}

	tests := []struct {
		name      string
		authorsA  []openalex.Author
		authorsB  map[string][]s2.Author
		wantStep  Step
		wantErr   error
		wantCands int
	}{
		{"no OpenAlex candidates", nil, nil, StepSourceASearch, fuzzy.ErrNoCandidates, 0},
		{"only stub profiles", []openalex.Author{stub}, nil, StepSourceAFilter, fuzzy.ErrNoQualifyingCandidates, 1},
		{"no Semantic Scholar candidates", []openalex.Author{alice}, nil, StepSourceBSearch, fuzzy.ErrNoCandidates, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&fakeDirectory{authors: tt.authorsA}, &fakeGraph{byQuery: tt.authorsB}, nil)
			_, err := r.Resolve(context.Background(), fuzzy.Profile{Name: "Alice Smith"})

			var rf *ResolutionFailedError
			if !errors.As(err, &rf) {
				t.Fatalf("Resolve() error = %v, want ResolutionFailedError", err)
			}
			if rf.Step != tt.wantStep {
				t.Errorf("Step = %s, want %s", rf.Step, tt.wantStep)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if len(rf.Candidates) != tt.wantCands {
				t.Errorf("Candidates = %d, want %d", len(rf.Candidates), tt.wantCands)
			}
			if rf.Query.Name != "Alice Smith" {
				t.Errorf("Query = %+v", rf.Query)
			}
		})
	}
}

func TestResolveByID(t *testing.T) {
	b := &fakeGraph{byID: map[string]s2.Author{
		"42": {AuthorID: "42", Name: "Bob Jones", HIndex: storage.Ptr(7), Affiliations: []string{"Yale"}},
	}}
	r := New(&fakeDirectory{}, b, nil)

	res, err := r.ResolveByID(context.Background(), "42")
	if err != nil {
		t.Fatalf("ResolveByID() error = %v", err)
	}
	if res.Researcher.Name != "Bob Jones" || *res.Researcher.HIndex != 7 {
		t.Errorf("Researcher = %+v", res.Researcher)
	}

	_, err = r.ResolveByID(context.Background(), "missing")
	if !IsResolutionFailed(err) || !httpx.IsNotFound(err) {
		t.Errorf("ResolveByID(missing) error = %v, want resolution failure wrapping not found", err)
	}
}

func TestDisagreement(t *testing.T) {
	ref := openalex.Author{
		WorksCount:   10,
		SummaryStats: openalex.SummaryStats{HIndex: 5},
		CountsByYear: []openalex.YearCount{{Year: 2020, WorksCount: 4}, {Year: 2021, WorksCount: 6}},
	}
	b := s2.Author{PaperCount: 8, HIndex: storage.Ptr(3), Papers: papersIn(2020, 2020, 2020, 2021, 2021, 2021, 2021, 2021, 2021, 2019)}

	// |10-8| + |5-3| + |4-3| + |6-6|; 2019 is not reported by OpenAlex.
	if got := Disagreement(ref, b); got != 5 {
		t.Errorf("Disagreement() = %v, want 5", got)
	}
	if got := Disagreement(ref, s2.Author{}); got != 25 {
		t.Errorf("Disagreement(empty) = %v, want 25", got)
	}
}
