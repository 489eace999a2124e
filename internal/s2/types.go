// Package s2 provides a client for the Semantic Scholar Academic Graph API.
package s2

import "strings"

// Paper represents a paper from the Semantic Scholar API.
type Paper struct {
	PaperID       string        `json:"paperId"`
	ExternalIDs   ExternalIDs   `json:"externalIds,omitempty"`
	Title         string        `json:"title"`
	Year          int           `json:"year,omitempty"`
	Venue         string        `json:"venue,omitempty"`
	CitationCount *int          `json:"citationCount,omitempty"`
	Authors       []PaperAuthor `json:"authors,omitempty"`
}

// ExternalIDs contains various external identifiers for a paper.
type ExternalIDs struct {
	DOI           string `json:"DOI,omitempty"`
	ArXiv         string `json:"ArXiv,omitempty"`
	PubMed        string `json:"PubMed,omitempty"`
	PubMedCentral string `json:"PubMedCentral,omitempty"`
	CorpusID      int    `json:"CorpusId,omitempty"`
}

// PaperAuthor is an entry in a paper's byline. AuthorID is empty when
// Semantic Scholar could not link the name to an author profile.
type PaperAuthor struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// Author represents an author profile.
type Author struct {
	AuthorID      string      `json:"authorId"`
	Name          string      `json:"name"`
	Aliases       []string    `json:"aliases,omitempty"`
	Affiliations  []string    `json:"affiliations,omitempty"`
	PaperCount    int         `json:"paperCount,omitempty"`
	CitationCount int         `json:"citationCount,omitempty"`
	HIndex        *int        `json:"hIndex,omitempty"`
	Papers        []PaperYear `json:"papers,omitempty"`
}

// PaperYear is the slice of an author's paper list requested with
// fields=papers.year.
type PaperYear struct {
	PaperID string `json:"paperId"`
	Year    int    `json:"year,omitempty"`
}

// Institution returns the first listed affiliation, or "".
func (a Author) Institution() string {
	for _, aff := range a.Affiliations {
		if aff = strings.TrimSpace(aff); aff != "" {
			return aff
		}
	}
	return ""
}

// PapersByYear histograms the author's papers by publication year.
// Papers without a year are not counted.
func (a Author) PapersByYear() map[int]int {
	counts := make(map[int]int)
	for _, p := range a.Papers {
		if p.Year > 0 {
			counts[p.Year]++
		}
	}
	return counts
}

// Edge is one citation or reference of a paper together with the
// sentences in which the citation occurs.
type Edge struct {
	Contexts []string `json:"contexts"`
	Intents  []string `json:"intents"`
	Paper    *Paper   `json:"paper"` // the other end of the edge
}

// citationResult is the raw shape of a citations or references entry.
type citationResult struct {
	Contexts    []string `json:"contexts"`
	Intents     []string `json:"intents"`
	CitingPaper *Paper   `json:"citingPaper,omitempty"` // citations endpoint
	CitedPaper  *Paper   `json:"citedPaper,omitempty"`  // references endpoint
}

// listResponse is the offset-paginated envelope shared by the list endpoints.
type listResponse[T any] struct {
	Total  int  `json:"total,omitempty"`
	Offset int  `json:"offset"`
	Next   *int `json:"next,omitempty"`
	Data   []T  `json:"data"`
}

// paperBatchRequest is the request body for the batch paper lookup.
type paperBatchRequest struct {
	IDs []string `json:"ids"`
}
