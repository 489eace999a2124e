package storage

// Researcher is an author identity keyed by its Semantic Scholar author id.
type Researcher struct {
	ID          int64   `json:"id"`
	ExternalID  string  `json:"external_id"`
	Name        string  `json:"name"`
	HIndex      *int    `json:"h_index,omitempty"`
	Institution *string `json:"institution,omitempty"`
}

// Paper is a publication keyed by its Semantic Scholar paper id.
// CitationsFetched and ReferencesFetched are the crawl checkpoint.
type Paper struct {
	ID                int64   `json:"id"`
	ExternalID        string  `json:"external_id"`
	Title             string  `json:"title"`
	Year              *int    `json:"year,omitempty"`
	Venue             *string `json:"venue,omitempty"`
	CitationCount     *int    `json:"citation_count,omitempty"`
	DOI               *string `json:"doi,omitempty"`
	CitationsFetched  bool    `json:"citations_fetched"`
	ReferencesFetched bool    `json:"references_fetched"`
}

// Authorship links a researcher to a paper. Order is the 0-based byline
// position.
type Authorship struct {
	ID           int64 `json:"id"`
	ResearcherID int64 `json:"researcher_id"`
	PaperID      int64 `json:"paper_id"`
	Order        int   `json:"author_order"`
}

// Citation is one citing context of cited inside citing. Paper ids are
// external ids.
type Citation struct {
	ID            int64   `json:"id"`
	CitingPaperID string  `json:"citing_paper_id"`
	CitedPaperID  string  `json:"cited_paper_id"`
	Context       string  `json:"context"`
	Intent        *string `json:"intent,omitempty"`
	LLMPurpose    *string `json:"llm_purpose,omitempty"`
	Sentiment     *string `json:"sentiment,omitempty"`
}

// Stats summarizes the store contents.
type Stats struct {
	Researchers       int `json:"researchers"`
	Papers            int `json:"papers"`
	Authorships       int `json:"authorships"`
	Citations         int `json:"citations"`
	PendingCitations  int `json:"pending_citations"`
	PendingReferences int `json:"pending_references"`
	WithSentiment     int `json:"with_sentiment"`
	WithPurpose       int `json:"with_purpose"`
}

// Ptr returns a pointer to v. Handy for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
