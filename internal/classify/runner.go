package classify

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matsen/citeq/internal/storage"
)

// DefaultWorkers is the number of citations classified concurrently.
const DefaultWorkers = 4

// Runner classifies stored citations and writes the labels back.
type Runner struct {
	db      *storage.DB
	clf     Classifier
	kind    Kind
	workers int
	log     *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(log *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRunner creates a runner writing kind labels produced by clf.
func NewRunner(db *storage.DB, clf Classifier, kind Kind, opts ...RunnerOption) *Runner {
	r := &Runner{db: db, clf: clf, kind: kind, workers: DefaultWorkers, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunReport counts the outcome of a pass.
type RunReport struct {
	Classified int64 `json:"classified"`
	Skipped    int64 `json:"skipped"`
	NoAnswer   int64 `json:"no_answer"`
}

// Run classifies the citations with start <= id < end (end <= 0 means no
// upper bound). Citations with an empty context or an existing label are
// skipped, so an interrupted pass can be re-run over the same range. A
// citation the model never answers for is counted and left unlabelled;
// any other failure stops the pass.
func (r *Runner) Run(ctx context.Context, start, end int64) (*RunReport, error) {
	citations, err := r.db.ListCitations(ctx, start, end)
	if err != nil {
		return nil, err
	}

	report := &RunReport{}
	var todo []storage.Citation
	for _, c := range citations {
		if c.Context == "" || r.labelled(c) {
			report.Skipped++
			continue
		}
		todo = append(todo, c)
	}
	r.log.Info("classifying citations",
		zap.String("kind", string(r.kind)),
		zap.Int("todo", len(todo)),
		zap.Int64("skipped", report.Skipped))

	var done, noAnswer atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, c := range todo {
		g.Go(func() error {
			label, err := r.clf.Classify(gctx, c.Context)
			if errors.Is(err, ErrNoAnswer) {
				noAnswer.Add(1)
				r.log.Warn("no answer for citation", zap.Int64("citation", c.ID))
				return nil
			}
			if err != nil {
				return fmt.Errorf("classifying citation %d: %w", c.ID, err)
			}
			if err := r.write(gctx, c.ID, label); err != nil {
				return err
			}

			n := done.Add(1)
			r.log.Debug("classified citation",
				zap.Int64("citation", c.ID),
				zap.String("label", label),
				zap.String("progress", fmt.Sprintf("%d/%d", n, len(todo))))
			return nil
		})
	}

	err = g.Wait()
	report.Classified = done.Load()
	report.NoAnswer = noAnswer.Load()
	return report, err
}

func (r *Runner) labelled(c storage.Citation) bool {
	if r.kind == KindPurpose {
		return c.LLMPurpose != nil
	}
	return c.Sentiment != nil
}

func (r *Runner) write(ctx context.Context, id int64, label string) error {
	if r.kind == KindPurpose {
		return r.db.SetPurpose(ctx, id, label)
	}
	return r.db.SetSentiment(ctx, id, label)
}
