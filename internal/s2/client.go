package s2

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/matsen/citeq/internal/httpx"
)

const (
	// BaseURL is the Semantic Scholar Graph API base URL.
	BaseURL = "https://api.semanticscholar.org/graph/v1"

	// BatchSize is the most ids the batch endpoint accepts in one request.
	BatchSize = 400

	// DefaultPageSize is the limit used on offset-paginated endpoints.
	DefaultPageSize = 100

	// AuthorSearchFields are the fields needed to score a search candidate.
	AuthorSearchFields = "name,aliases,affiliations,paperCount,citationCount,hIndex,papers.year"

	// AuthorFields are the fields fetched for a direct author lookup.
	AuthorFields = "name,affiliations,hIndex"

	// PaperFields are the fields fetched by the batch endpoint.
	PaperFields = "title,year,venue,externalIds,citationCount,authors"

	// EdgeFields are the fields fetched for citations and references.
	EdgeFields = "contexts,intents,paperId,title,year,venue,externalIds,citationCount"
)

// Client is a Semantic Scholar Graph API client. Retry and rate limiting
// are delegated to the underlying httpx.Client.
type Client struct {
	http      *httpx.Client
	baseURL   string
	apiKey    string
	pageSize  int
	batchSize int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets the retrying client used for requests.
func WithHTTPClient(hc *httpx.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithPageSize sets the limit used on paginated endpoints.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithBatchSize lowers the chunk size of batch lookups. Values above
// BatchSize are clamped.
func WithBatchSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 && n <= BatchSize {
			c.batchSize = n
		}
	}
}

// NewClient creates a new Semantic Scholar client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   BaseURL,
		pageSize:  DefaultPageSize,
		batchSize: BatchSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = httpx.NewClient()
	}

	return c
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"x-api-key": c.apiKey}
}

func (c *Client) endpoint(path string, params url.Values) string {
	if len(params) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + params.Encode()
}

// offsetPager builds a pager over an offset-paginated list endpoint.
func offsetPager[T, U any](c *Client, path string, params url.Values, from httpx.Checkpoint, convert func(T) U) *httpx.Pager[U] {
	fetch := func(ctx context.Context, at httpx.Checkpoint) (httpx.Page[U], error) {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("offset", strconv.Itoa(at.Offset))
		q.Set("limit", strconv.Itoa(c.pageSize))

		var resp listResponse[T]
		if err := c.http.FetchJSON(ctx, c.endpoint(path, q), c.headers(), &resp); err != nil {
			return httpx.Page[U]{}, err
		}

		items := make([]U, 0, len(resp.Data))
		for _, d := range resp.Data {
			items = append(items, convert(d))
		}
		return httpx.Page[U]{Items: items, Next: httpx.AfterOffset(resp.Next)}, nil
	}
	return httpx.NewPager(fetch, from)
}

func identity[T any](v T) T { return v }

// SearchAuthors pages through author profiles matching query.
func (c *Client) SearchAuthors(query string) *httpx.Pager[Author] {
	params := url.Values{"query": {query}, "fields": {AuthorSearchFields}}
	return offsetPager(c, "/author/search", params, httpx.Start, identity[Author])
}

// AuthorPapers pages through the ids of an author's papers.
func (c *Client) AuthorPapers(authorID string) *httpx.Pager[string] {
	params := url.Values{"fields": {"paperId"}}
	return offsetPager(c, "/author/"+url.PathEscape(authorID)+"/papers", params, httpx.Start,
		func(p Paper) string { return p.PaperID })
}

// Citations pages through the papers citing paperID, starting at from.
func (c *Client) Citations(paperID string, from httpx.Checkpoint) *httpx.Pager[Edge] {
	params := url.Values{"fields": {EdgeFields}}
	return offsetPager(c, "/paper/"+url.PathEscape(paperID)+"/citations", params, from,
		func(r citationResult) Edge {
			return Edge{Contexts: r.Contexts, Intents: r.Intents, Paper: r.CitingPaper}
		})
}

// References pages through the papers cited by paperID, starting at from.
func (c *Client) References(paperID string, from httpx.Checkpoint) *httpx.Pager[Edge] {
	params := url.Values{"fields": {EdgeFields}}
	return offsetPager(c, "/paper/"+url.PathEscape(paperID)+"/references", params, from,
		func(r citationResult) Edge {
			return Edge{Contexts: r.Contexts, Intents: r.Intents, Paper: r.CitedPaper}
		})
}

// PaperBatch fetches details for ids, chunked to the batch limit. The
// result is aligned with ids; unknown ids yield nil entries.
func (c *Client) PaperBatch(ctx context.Context, ids []string) ([]*Paper, error) {
	out := make([]*Paper, 0, len(ids))
	endpoint := c.endpoint("/paper/batch", url.Values{"fields": {PaperFields}})

	for start := 0; start < len(ids); start += c.batchSize {
		end := min(start+c.batchSize, len(ids))
		chunk := ids[start:end]

		var papers []*Paper
		if err := c.http.PostJSON(ctx, endpoint, c.headers(), paperBatchRequest{IDs: chunk}, &papers); err != nil {
			return nil, fmt.Errorf("batch lookup of papers %d-%d: %w", start, end, err)
		}
		if len(papers) != len(chunk) {
			return nil, fmt.Errorf("batch lookup of papers %d-%d: got %d results for %d ids", start, end, len(papers), len(chunk))
		}
		out = append(out, papers...)
	}

	return out, nil
}

// GetAuthor looks up one author profile. A missing author returns an
// error matching httpx.ErrNotFound.
func (c *Client) GetAuthor(ctx context.Context, authorID string) (*Author, error) {
	endpoint := c.endpoint("/author/"+url.PathEscape(authorID), url.Values{"fields": {AuthorFields}})

	var a Author
	if err := c.http.FetchJSON(ctx, endpoint, c.headers(), &a); err != nil {
		return nil, fmt.Errorf("author %s: %w", authorID, err)
	}
	if a.AuthorID == "" {
		a.AuthorID = authorID
	}
	return &a, nil
}
