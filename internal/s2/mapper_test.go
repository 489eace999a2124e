package s2

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matsen/citeq/internal/storage"
)

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"10.1038/nature12373", "10.1038/nature12373"},
		{"https://doi.org/10.1038/Nature12373", "10.1038/nature12373"},
		{"http://doi.org/10.1038/nature12373", "10.1038/nature12373"},
		{"doi.org/10.1038/nature12373", "10.1038/nature12373"},
		{"DOI:10.1038/nature12373", "10.1038/nature12373"},
		{"  10.1038/nature12373  ", "10.1038/nature12373"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeDOI(tt.input); got != tt.want {
				t.Errorf("NormalizeDOI(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMapPaper(t *testing.T) {
	got := MapPaper(Paper{
		PaperID:       "abc",
		Title:         "  Deep Mutational Scanning ",
		Year:          2021,
		Venue:         "eLife",
		CitationCount: storage.Ptr(7),
		ExternalIDs:   ExternalIDs{DOI: "10.7554/ELIFE.1"},
	})
	want := storage.Paper{
		ExternalID:    "abc",
		Title:         "Deep Mutational Scanning",
		Year:          storage.Ptr(2021),
		Venue:         storage.Ptr("eLife"),
		CitationCount: storage.Ptr(7),
		DOI:           storage.Ptr("10.7554/elife.1"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MapPaper() mismatch (-want +got):\n%s", diff)
	}

	sparse := MapPaper(Paper{PaperID: "x", Title: "T"})
	if sparse.Year != nil || sparse.Venue != nil || sparse.DOI != nil || sparse.CitationCount != nil {
		t.Errorf("MapPaper() of sparse paper = %+v, want NULL optionals", sparse)
	}
}

func TestMapAuthor(t *testing.T) {
	got := MapAuthor(Author{AuthorID: "1", Name: "Alice Smith", Affiliations: []string{"", "MIT", "Broad"}, HIndex: storage.Ptr(30)})
	want := storage.Researcher{ExternalID: "1", Name: "Alice Smith", HIndex: storage.Ptr(30), Institution: storage.Ptr("MIT")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MapAuthor() mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinIntents(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, "unknown"},
		{[]string{""}, "unknown"},
		{[]string{"methodology"}, "methodology"},
		{[]string{"background", "result"}, "background,result"},
	}
	for _, tt := range tests {
		if got := JoinIntents(tt.in); got != tt.want {
			t.Errorf("JoinIntents(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
