package crawl

import (
	"context"
	"errors"

	"github.com/matsen/citeq/internal/httpx"
	"github.com/matsen/citeq/internal/s2"
)

// ErrMalformed indicates a payload that decoded but lacks required fields,
// or a page that could not be decoded at all.
var ErrMalformed = errors.New("malformed payload")

// Source is the citation graph the crawler walks. *s2.Client implements it.
type Source interface {
	AuthorPapers(authorID string) *httpx.Pager[string]
	PaperBatch(ctx context.Context, ids []string) ([]*s2.Paper, error)
	Citations(paperID string, from httpx.Checkpoint) *httpx.Pager[s2.Edge]
	References(paperID string, from httpx.Checkpoint) *httpx.Pager[s2.Edge]
	GetAuthor(ctx context.Context, authorID string) (*s2.Author, error)
}

var _ Source = (*s2.Client)(nil)

// Stage names a crawl stage.
type Stage string

const (
	StagePapers     Stage = "papers"
	StageCitations  Stage = "citations"
	StageReferences Stage = "references"
)

// skippable reports whether a per-paper edge failure should skip the paper
// rather than abort the run.
func skippable(err error) bool {
	return httpx.IsExhausted(err) || httpx.IsNotFound(err) || errors.Is(err, ErrMalformed)
}
