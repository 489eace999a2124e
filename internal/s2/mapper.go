package s2

import (
	"strings"

	"github.com/matsen/citeq/internal/storage"
)

// NormalizeDOI normalizes a DOI to a consistent format for comparison.
// It removes common URL prefixes (https://doi.org/, DOI:) and converts to lowercase.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi.org/")
	doi = strings.TrimPrefix(doi, "DOI:")
	return strings.ToLower(doi)
}

// MapPaper converts an API paper to a store row. Zero values become NULL.
func MapPaper(p Paper) storage.Paper {
	out := storage.Paper{
		ExternalID:    p.PaperID,
		Title:         strings.TrimSpace(p.Title),
		CitationCount: p.CitationCount,
	}
	if p.Year > 0 {
		out.Year = storage.Ptr(p.Year)
	}
	if v := strings.TrimSpace(p.Venue); v != "" {
		out.Venue = storage.Ptr(v)
	}
	if doi := NormalizeDOI(p.ExternalIDs.DOI); doi != "" {
		out.DOI = storage.Ptr(doi)
	}
	return out
}

// MapAuthor converts an author profile to a store row. The institution is
// the first listed affiliation.
func MapAuthor(a Author) storage.Researcher {
	out := storage.Researcher{
		ExternalID: a.AuthorID,
		Name:       strings.TrimSpace(a.Name),
		HIndex:     a.HIndex,
	}
	if inst := a.Institution(); inst != "" {
		out.Institution = storage.Ptr(inst)
	}
	return out
}

// JoinIntents renders a citation's intent tags for storage. Citations
// without tags are recorded as "unknown".
func JoinIntents(intents []string) string {
	var kept []string
	for _, in := range intents {
		if in = strings.TrimSpace(in); in != "" {
			kept = append(kept, in)
		}
	}
	if len(kept) == 0 {
		return "unknown"
	}
	return strings.Join(kept, ",")
}
