// Package openalex provides a client for the OpenAlex author and work
// directory.
package openalex

import "strings"

const idPrefix = "https://openalex.org/"

// Author is an OpenAlex author record.
type Author struct {
	ID                      string        `json:"id"`
	DisplayName             string        `json:"display_name"`
	DisplayNameAlternatives []string      `json:"display_name_alternatives,omitempty"`
	WorksCount              int           `json:"works_count"`
	CitedByCount            int           `json:"cited_by_count"`
	LastKnownInstitutions   []Institution `json:"last_known_institutions,omitempty"`
	LastKnownInstitution    *Institution  `json:"last_known_institution,omitempty"` // older API shape
	SummaryStats            SummaryStats  `json:"summary_stats"`
	CountsByYear            []YearCount   `json:"counts_by_year,omitempty"`
}

// Institution is the institution part of an author record.
type Institution struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code,omitempty"`
}

// SummaryStats holds an author's aggregate citation metrics.
type SummaryStats struct {
	HIndex int `json:"h_index"`
}

// YearCount is one entry of an author's per-year activity.
type YearCount struct {
	Year         int `json:"year"`
	WorksCount   int `json:"works_count"`
	CitedByCount int `json:"cited_by_count"`
}

// ShortID returns the id without the https://openalex.org/ prefix.
func (a Author) ShortID() string {
	return ShortID(a.ID)
}

// Institution returns the most recent institution name, or "".
func (a Author) Institution() string {
	for _, inst := range a.LastKnownInstitutions {
		if name := strings.TrimSpace(inst.DisplayName); name != "" {
			return name
		}
	}
	if a.LastKnownInstitution != nil {
		return strings.TrimSpace(a.LastKnownInstitution.DisplayName)
	}
	return ""
}

// WorksByYear returns works counts keyed by year.
func (a Author) WorksByYear() map[int]int {
	counts := make(map[int]int, len(a.CountsByYear))
	for _, c := range a.CountsByYear {
		counts[c.Year] += c.WorksCount
	}
	return counts
}

// Work is an OpenAlex work record.
type Work struct {
	ID              string `json:"id"`
	DOI             string `json:"doi,omitempty"`
	Title           string `json:"title"`
	DisplayName     string `json:"display_name,omitempty"`
	PublicationYear int    `json:"publication_year,omitempty"`
	CitedByCount    int    `json:"cited_by_count"`
}

// ShortID returns the id without the https://openalex.org/ prefix.
func (w Work) ShortID() string {
	return ShortID(w.ID)
}

// ShortID strips the OpenAlex URL prefix from an entity id.
func ShortID(id string) string {
	return strings.TrimPrefix(id, idPrefix)
}

// listResponse is the cursor-paginated envelope of list endpoints.
type listResponse[T any] struct {
	Meta struct {
		Count      int    `json:"count"`
		NextCursor string `json:"next_cursor"`
	} `json:"meta"`
	Results []T `json:"results"`
}
