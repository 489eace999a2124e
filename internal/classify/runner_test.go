package classify

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matsen/citeq/internal/storage"
)

// fakeClassifier answers from a fixed table keyed by context.
type fakeClassifier struct {
	answers map[string]string
	errs    map[string]error

	mu    sync.Mutex
	calls []string
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if err := f.errs[text]; err != nil {
		return "", err
	}
	return f.answers[text], nil
}

func setupTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "classify.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedCitations stores one citation per context; ids start at 1.
func seedCitations(t *testing.T, db *storage.DB, contexts ...string) {
	t.Helper()
	for _, text := range contexts {
		if _, err := db.AddCitation(context.Background(), storage.Citation{
			CitingPaperID: "citing",
			CitedPaperID:  "cited",
			Context:       text,
		}); err != nil {
			t.Fatalf("AddCitation(%q) error = %v", text, err)
		}
	}
}

func labelsOf(t *testing.T, db *storage.DB, kind Kind) map[int64]string {
	t.Helper()
	cites, err := db.ListCitations(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ListCitations() error = %v", err)
	}
	out := map[int64]string{}
	for _, c := range cites {
		v := c.Sentiment
		if kind == KindPurpose {
			v = c.LLMPurpose
		}
		if v != nil {
			out[c.ID] = *v
		}
	}
	return out
}

func TestRunner_ClassifiesAndSkips(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedCitations(t, db, "great work [1]", "", "already done [2]", "flawed [3]")
	if err := db.SetSentiment(ctx, 3, "neutral"); err != nil {
		t.Fatalf("SetSentiment() error = %v", err)
	}

	clf := &fakeClassifier{answers: map[string]string{
		"great work [1]": "positive",
		"flawed [3]":     "negative",
	}}

	report, err := NewRunner(db, clf, KindSentiment, WithWorkers(2)).Run(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff(&RunReport{Classified: 2, Skipped: 2}, report); diff != "" {
		t.Errorf("RunReport (-want +got):\n%s", diff)
	}

	want := map[int64]string{1: "positive", 3: "neutral", 4: "negative"}
	if diff := cmp.Diff(want, labelsOf(t, db, KindSentiment)); diff != "" {
		t.Errorf("sentiment labels (-want +got):\n%s", diff)
	}
	if len(labelsOf(t, db, KindPurpose)) != 0 {
		t.Error("a sentiment pass wrote purpose labels")
	}
}

func TestRunner_Range(t *testing.T) {
	db := setupTestDB(t)
	seedCitations(t, db, "a", "b", "c", "d")

	clf := &fakeClassifier{answers: map[string]string{"a": "use", "b": "use", "c": "use", "d": "use"}}
	report, err := NewRunner(db, clf, KindPurpose).Run(context.Background(), 2, 4)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Classified != 2 {
		t.Errorf("Classified = %d, want 2", report.Classified)
	}
	if diff := cmp.Diff(map[int64]string{2: "use", 3: "use"}, labelsOf(t, db, KindPurpose)); diff != "" {
		t.Errorf("purpose labels (-want +got):\n%s", diff)
	}
}

func TestRunner_NoAnswerIsCounted(t *testing.T) {
	db := setupTestDB(t)
	seedCitations(t, db, "a", "b")

	clf := &fakeClassifier{
		answers: map[string]string{"a": "neutral"},
		errs:    map[string]error{"b": ErrNoAnswer},
	}
	report, err := NewRunner(db, clf, KindSentiment).Run(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Classified != 1 || report.NoAnswer != 1 {
		t.Errorf("RunReport = %+v, want 1 classified and 1 without answer", report)
	}
	if _, ok := labelsOf(t, db, KindSentiment)[2]; ok {
		t.Error("citation without answer was labelled")
	}
}

func TestRunner_ClassifierFailureStops(t *testing.T) {
	db := setupTestDB(t)
	seedCitations(t, db, "a")

	errDown := errors.New("ollama down")
	clf := &fakeClassifier{errs: map[string]error{"a": errDown}}

	_, err := NewRunner(db, clf, KindSentiment).Run(context.Background(), 0, 0)
	if !errors.Is(err, errDown) {
		t.Errorf("Run() error = %v, want %v", err, errDown)
	}
}
