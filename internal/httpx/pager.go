package httpx

import (
	"context"
	"errors"
	"fmt"
)

// ErrStalled is returned when a page claims more data but its checkpoint
// does not advance.
var ErrStalled = errors.New("pagination did not advance")

// Checkpoint is a resumable position in a paginated listing. Cursor-based
// sources use Cursor, offset-based sources use Offset.
type Checkpoint struct {
	Cursor string `json:"cursor,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Done   bool   `json:"done,omitempty"`
}

// Start is the checkpoint of an unread listing.
var Start = Checkpoint{}

// CursorStart is the initial checkpoint for cursor paging (OpenAlex uses "*").
func CursorStart() Checkpoint {
	return Checkpoint{Cursor: "*"}
}

// AfterCursor builds the checkpoint following a cursor page. An empty next
// cursor ends the listing.
func AfterCursor(next string) Checkpoint {
	if next == "" {
		return Checkpoint{Done: true}
	}
	return Checkpoint{Cursor: next}
}

// AfterOffset builds the checkpoint following an offset page. A nil next
// offset ends the listing.
func AfterOffset(next *int) Checkpoint {
	if next == nil {
		return Checkpoint{Done: true}
	}
	return Checkpoint{Offset: *next}
}

// Page is one page of items plus the checkpoint of the following page.
type Page[T any] struct {
	Items []T
	Next  Checkpoint
}

// PageFunc fetches the page at a checkpoint.
type PageFunc[T any] func(ctx context.Context, at Checkpoint) (Page[T], error)

// Pager lazily walks a paginated listing:
//
//	p := httpx.NewPager(fetch, httpx.Start)
//	for p.Next(ctx) {
//		use(p.Page().Items)
//	}
//	if err := p.Err(); err != nil { ... }
//
// It can be restarted from any checkpoint previously returned by Checkpoint.
type Pager[T any] struct {
	fetch PageFunc[T]
	at    Checkpoint
	page  Page[T]
	err   error
	pages int
}

// NewPager returns a pager that starts at from.
func NewPager[T any](fetch PageFunc[T], from Checkpoint) *Pager[T] {
	return &Pager[T]{fetch: fetch, at: from}
}

// Next fetches the next page. It returns false when the listing is
// exhausted or a fetch failed; check Err to tell them apart.
func (p *Pager[T]) Next(ctx context.Context) bool {
	if p.err != nil || p.at.Done {
		return false
	}

	page, err := p.fetch(ctx, p.at)
	if err != nil {
		p.err = fmt.Errorf("fetching page %d: %w", p.pages+1, err)
		return false
	}
	if !page.Next.Done && page.Next == p.at {
		p.err = fmt.Errorf("page %d at %+v: %w", p.pages+1, p.at, ErrStalled)
		return false
	}

	p.page = page
	p.at = page.Next
	p.pages++
	return true
}

// Page returns the page fetched by the last successful Next.
func (p *Pager[T]) Page() Page[T] {
	return p.page
}

// Err returns the error that stopped the pager, if any.
func (p *Pager[T]) Err() error {
	return p.err
}

// Checkpoint returns where the next call to Next resumes.
func (p *Pager[T]) Checkpoint() Checkpoint {
	return p.at
}

// Pages returns how many pages have been fetched.
func (p *Pager[T]) Pages() int {
	return p.pages
}

// Collect drains the pager into one slice.
func Collect[T any](ctx context.Context, p *Pager[T]) ([]T, error) {
	var all []T
	for p.Next(ctx) {
		all = append(all, p.Page().Items...)
	}
	if err := p.Err(); err != nil {
		return all, err
	}
	return all, nil
}
