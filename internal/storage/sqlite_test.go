package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// setupTestDB opens a fresh database in a temp dir.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB_CreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("OpenDB() did not create database file")
	}

	// Reopening an existing database is fine.
	db2, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("second OpenDB() error = %v", err)
	}
	db2.Close()
}

func TestAddPaper_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := Paper{ExternalID: "P1", Title: "Phylogenetics", Year: Ptr(2020), DOI: Ptr("10.1/x")}
	first, err := db.AddPaper(ctx, p)
	if err != nil {
		t.Fatalf("AddPaper() error = %v", err)
	}
	second, err := db.AddPaper(ctx, p)
	if err != nil {
		t.Fatalf("second AddPaper() error = %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("AddPaper() rows differ (-first +second):\n%s", diff)
	}
	if first.ID == 0 || first.Title != "Phylogenetics" || *first.Year != 2020 {
		t.Errorf("AddPaper() = %+v", first)
	}

	stats, _ := db.Stats(ctx)
	if stats.Papers != 1 {
		t.Errorf("Papers = %d, want 1", stats.Papers)
	}
}

func TestAddPaper_ExistingRowUnchanged(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	orig, _ := db.AddPaper(ctx, Paper{ExternalID: "P1", Title: "Original"})
	got, err := db.AddPaper(ctx, Paper{ExternalID: "P1", Title: "Changed", Year: Ptr(1999)})
	if err != nil {
		t.Fatalf("AddPaper() error = %v", err)
	}
	if diff := cmp.Diff(orig, got); diff != "" {
		t.Errorf("existing paper was modified (-orig +got):\n%s", diff)
	}
}

func TestAddPaper_EmptyExternalID(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.AddPaper(context.Background(), Paper{Title: "x"}); err == nil {
		t.Error("AddPaper() with empty id should fail")
	}
}

func TestAddPaper_Race(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const n = 8
	ids := make([]int64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := db.AddPaper(ctx, Paper{ExternalID: "RACE", Title: "Same"})
			ids[i], errs[i] = p.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("AddPaper() #%d error = %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("AddPaper() #%d id = %d, want %d", i, ids[i], ids[0])
		}
	}
}

func TestAddResearcher_FillsOnlyNullFields(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, err := db.AddResearcher(ctx, Researcher{ExternalID: "A1", Name: "Alice Smith"})
	if err != nil {
		t.Fatalf("AddResearcher() error = %v", err)
	}
	if first.HIndex != nil || first.Institution != nil {
		t.Fatalf("AddResearcher() = %+v, want null optional fields", first)
	}

	filled, err := db.AddResearcher(ctx, Researcher{ExternalID: "A1", Name: "Someone Else", HIndex: Ptr(12), Institution: Ptr("MIT")})
	if err != nil {
		t.Fatalf("AddResearcher() error = %v", err)
	}
	want := Researcher{ID: first.ID, ExternalID: "A1", Name: "Alice Smith", HIndex: Ptr(12), Institution: Ptr("MIT")}
	if diff := cmp.Diff(want, filled); diff != "" {
		t.Errorf("AddResearcher() mismatch (-want +got):\n%s", diff)
	}

	again, err := db.AddResearcher(ctx, Researcher{ExternalID: "A1", Name: "Alice Smith", HIndex: Ptr(40), Institution: Ptr("Yale")})
	if err != nil {
		t.Fatalf("AddResearcher() error = %v", err)
	}
	if diff := cmp.Diff(want, again); diff != "" {
		t.Errorf("set fields were overwritten (-want +got):\n%s", diff)
	}
}

func TestGetResearcher_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetResearcher(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetResearcher() error = %v, want ErrNotFound", err)
	}

	ok, err := db.HasResearcher(context.Background(), "missing")
	if err != nil || ok {
		t.Errorf("HasResearcher() = %v, %v, want false, nil", ok, err)
	}
}

func TestAddAuthorship_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r, _ := db.AddResearcher(ctx, Researcher{ExternalID: "A1", Name: "Alice"})
	p, _ := db.AddPaper(ctx, Paper{ExternalID: "P1", Title: "T"})

	first, err := db.AddAuthorship(ctx, Authorship{ResearcherID: r.ID, PaperID: p.ID, Order: 2})
	if err != nil {
		t.Fatalf("AddAuthorship() error = %v", err)
	}
	second, err := db.AddAuthorship(ctx, Authorship{ResearcherID: r.ID, PaperID: p.ID, Order: 5})
	if err != nil {
		t.Fatalf("AddAuthorship() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("duplicate authorship changed row (-first +second):\n%s", diff)
	}
	if second.Order != 2 {
		t.Errorf("Order = %d, want 2", second.Order)
	}

	papers, err := db.PapersByResearcher(ctx, r.ID)
	if err != nil || len(papers) != 1 {
		t.Errorf("PapersByResearcher() = %v, %v", papers, err)
	}
}

func TestAddAuthorship_ForeignKey(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.AddAuthorship(context.Background(), Authorship{ResearcherID: 99, PaperID: 99})
	if err == nil {
		t.Error("AddAuthorship() with unknown ids should fail")
	}
}

func TestAddCitation_Uniqueness(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a, err := db.AddCitation(ctx, Citation{CitingPaperID: "X", CitedPaperID: "Y", Context: "as shown in [1]", Intent: Ptr("background")})
	if err != nil {
		t.Fatalf("AddCitation() error = %v", err)
	}
	b, err := db.AddCitation(ctx, Citation{CitingPaperID: "X", CitedPaperID: "Y", Context: "as shown in [1]"})
	if err != nil {
		t.Fatalf("AddCitation() error = %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("identical triple stored twice: ids %d and %d", a.ID, b.ID)
	}
	if b.Intent == nil || *b.Intent != "background" {
		t.Errorf("Intent = %v, want the stored background", b.Intent)
	}

	c, err := db.AddCitation(ctx, Citation{CitingPaperID: "X", CitedPaperID: "Y", Context: "unlike [1], we"})
	if err != nil {
		t.Fatalf("AddCitation() error = %v", err)
	}
	if c.ID == a.ID {
		t.Error("different context collapsed into one row")
	}

	got, err := db.CitationsForPaper(ctx, "Y")
	if err != nil {
		t.Fatalf("CitationsForPaper() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("CitationsForPaper() = %d rows, want 2", len(got))
	}
	refs, _ := db.ReferencesOfPaper(ctx, "X")
	if len(refs) != 2 {
		t.Errorf("ReferencesOfPaper() = %d rows, want 2", len(refs))
	}
}

func TestMarkCitationsFetched_Monotonic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.AddPaper(ctx, Paper{ExternalID: "P1", Title: "T"}); err != nil {
		t.Fatal(err)
	}

	changed, err := db.MarkCitationsFetched(ctx, "P1")
	if err != nil || !changed {
		t.Fatalf("MarkCitationsFetched() = %v, %v, want true, nil", changed, err)
	}
	changed, err = db.MarkCitationsFetched(ctx, "P1")
	if err != nil || changed {
		t.Errorf("second MarkCitationsFetched() = %v, %v, want false, nil", changed, err)
	}

	// Re-adding the paper must not reset the checkpoint.
	p, err := db.AddPaper(ctx, Paper{ExternalID: "P1", Title: "T"})
	if err != nil {
		t.Fatal(err)
	}
	if !p.CitationsFetched {
		t.Error("CitationsFetched reset to false by AddPaper")
	}
	if p.ReferencesFetched {
		t.Error("ReferencesFetched set by MarkCitationsFetched")
	}

	if _, err := db.MarkReferencesFetched(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkReferencesFetched(missing) error = %v, want ErrNotFound", err)
	}
}

func TestPapersPending(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r, _ := db.AddResearcher(ctx, Researcher{ExternalID: "A1", Name: "Alice"})
	other, _ := db.AddResearcher(ctx, Researcher{ExternalID: "A2", Name: "Bob"})
	for i, id := range []string{"P1", "P2", "P3"} {
		p, _ := db.AddPaper(ctx, Paper{ExternalID: id, Title: id})
		db.AddAuthorship(ctx, Authorship{ResearcherID: r.ID, PaperID: p.ID, Order: i})
	}
	bobs, _ := db.AddPaper(ctx, Paper{ExternalID: "B1", Title: "Bob's"})
	db.AddAuthorship(ctx, Authorship{ResearcherID: other.ID, PaperID: bobs.ID})

	db.MarkCitationsFetched(ctx, "P2")
	db.MarkReferencesFetched(ctx, "P1")
	db.MarkReferencesFetched(ctx, "P3")

	pending, err := db.PapersPendingCitations(ctx, r.ID)
	if err != nil {
		t.Fatalf("PapersPendingCitations() error = %v", err)
	}
	if diff := cmp.Diff([]string{"P1", "P3"}, externalIDs(pending)); diff != "" {
		t.Errorf("PapersPendingCitations() (-want +got):\n%s", diff)
	}

	pending, err = db.PapersPendingReferences(ctx, r.ID)
	if err != nil {
		t.Fatalf("PapersPendingReferences() error = %v", err)
	}
	if diff := cmp.Diff([]string{"P2"}, externalIDs(pending)); diff != "" {
		t.Errorf("PapersPendingReferences() (-want +got):\n%s", diff)
	}
}

func TestInTx_SavepointRecoversFromDuplicate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.InTx(ctx, func(tx *Tx) error {
		a, err := tx.AddPaper(ctx, Paper{ExternalID: "P1", Title: "T"})
		if err != nil {
			return err
		}
		b, err := tx.AddPaper(ctx, Paper{ExternalID: "P1", Title: "T"})
		if err != nil {
			return err
		}
		if a.ID != b.ID {
			t.Errorf("ids differ inside tx: %d vs %d", a.ID, b.ID)
		}
		_, err = tx.AddCitation(ctx, Citation{CitingPaperID: "P0", CitedPaperID: "P1", Context: ""})
		return err
	})
	if err != nil {
		t.Fatalf("InTx() error = %v", err)
	}

	stats, _ := db.Stats(ctx)
	if stats.Papers != 1 || stats.Citations != 1 {
		t.Errorf("Stats() = %+v, want 1 paper and 1 citation", stats)
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.AddPaper(ctx, Paper{ExternalID: "P1", Title: "T"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}
	if _, err := db.GetPaper(ctx, "P1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPaper() after rollback error = %v, want ErrNotFound", err)
	}
}

func TestListCitations_RangeAndLabels(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var ids []int64
	for _, text := range []string{"one", "two", "three", "four"} {
		c, err := db.AddCitation(ctx, Citation{CitingPaperID: "X", CitedPaperID: "Y", Context: text})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, c.ID)
	}

	got, err := db.ListCitations(ctx, ids[1], ids[3])
	if err != nil {
		t.Fatalf("ListCitations() error = %v", err)
	}
	if len(got) != 2 || got[0].Context != "two" || got[1].Context != "three" {
		t.Errorf("ListCitations() = %+v", got)
	}

	all, _ := db.ListCitations(ctx, 0, 0)
	if len(all) != 4 {
		t.Errorf("ListCitations(0, 0) = %d rows, want 4", len(all))
	}

	if err := db.SetSentiment(ctx, ids[0], "positive"); err != nil {
		t.Fatalf("SetSentiment() error = %v", err)
	}
	if err := db.SetPurpose(ctx, ids[0], "use"); err != nil {
		t.Fatalf("SetPurpose() error = %v", err)
	}
	c, _ := db.GetCitation(ctx, ids[0])
	if c.Sentiment == nil || *c.Sentiment != "positive" || c.LLMPurpose == nil || *c.LLMPurpose != "use" {
		t.Errorf("labels not stored: %+v", c)
	}
	if err := db.SetSentiment(ctx, 9999, "positive"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetSentiment(missing) error = %v, want ErrNotFound", err)
	}

	stats, _ := db.Stats(ctx)
	if stats.WithSentiment != 1 || stats.WithPurpose != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func externalIDs(papers []Paper) []string {
	var ids []string
	for _, p := range papers {
		ids = append(ids, p.ExternalID)
	}
	return ids
}
