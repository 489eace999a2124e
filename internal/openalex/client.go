package openalex

import (
	"context"
	"net/url"
	"strconv"

	"github.com/matsen/citeq/internal/httpx"
)

const (
	// BaseURL is the OpenAlex API base URL.
	BaseURL = "https://api.openalex.org"

	// MaxPageSize is the largest per-page value OpenAlex accepts.
	MaxPageSize = 200
)

// Client is an OpenAlex API client. Retry and rate limiting are delegated
// to the underlying httpx.Client.
type Client struct {
	http     *httpx.Client
	baseURL  string
	email    string
	pageSize int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithEmail adds mailto= to every request, which puts the client in the
// OpenAlex polite pool.
func WithEmail(email string) ClientOption {
	return func(c *Client) {
		c.email = email
	}
}

// WithHTTPClient sets the retrying client used for requests.
func WithHTTPClient(hc *httpx.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithPageSize sets per-page, clamped to MaxPageSize.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = min(n, MaxPageSize)
		}
	}
}

// NewClient creates a new OpenAlex client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  BaseURL,
		pageSize: MaxPageSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = httpx.NewClient()
	}

	return c
}

func cursorPager[T any](c *Client, path string, params url.Values, from httpx.Checkpoint) *httpx.Pager[T] {
	fetch := func(ctx context.Context, at httpx.Checkpoint) (httpx.Page[T], error) {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		cursor := at.Cursor
		if cursor == "" {
			cursor = "*"
		}
		q.Set("cursor", cursor)
		q.Set("per-page", strconv.Itoa(c.pageSize))
		if c.email != "" {
			q.Set("mailto", c.email)
		}

		var resp listResponse[T]
		if err := c.http.FetchJSON(ctx, c.baseURL+path+"?"+q.Encode(), nil, &resp); err != nil {
			return httpx.Page[T]{}, err
		}

		next := resp.Meta.NextCursor
		if len(resp.Results) == 0 {
			next = ""
		}
		return httpx.Page[T]{Items: resp.Results, Next: httpx.AfterCursor(next)}, nil
	}
	return httpx.NewPager(fetch, from)
}

// SearchAuthors pages through author records matching name.
func (c *Client) SearchAuthors(name string) *httpx.Pager[Author] {
	return cursorPager[Author](c, "/authors", url.Values{"search": {name}}, httpx.CursorStart())
}

// Works pages through the works of an author, starting at from.
func (c *Client) Works(authorID string, from httpx.Checkpoint) *httpx.Pager[Work] {
	return cursorPager[Work](c, "/works", url.Values{"filter": {"author.id:" + ShortID(authorID)}}, from)
}

// CitingWorks pages through the works citing workID, starting at from.
func (c *Client) CitingWorks(workID string, from httpx.Checkpoint) *httpx.Pager[Work] {
	return cursorPager[Work](c, "/works", url.Values{"filter": {"cites:" + ShortID(workID)}}, from)
}
