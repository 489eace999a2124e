package storage

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// seedGraph stores one researcher with one paper, its authorship, and one
// labelled citation of that paper.
func seedGraph(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()

	r, err := db.AddResearcher(ctx, Researcher{ExternalID: "a1", Name: "Alice", HIndex: Ptr(12)})
	if err != nil {
		t.Fatal(err)
	}
	p, err := db.AddPaper(ctx, Paper{ExternalID: "p1", Title: "Trees", Year: Ptr(2020)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddPaper(ctx, Paper{ExternalID: "c1", Title: "Forests"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddAuthorship(ctx, Authorship{ResearcherID: r.ID, PaperID: p.ID, Order: 0}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.MarkCitationsFetched(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	c, err := db.AddCitation(ctx, Citation{CitingPaperID: "c1", CitedPaperID: "p1", Context: "As in [1].", Intent: Ptr("methodology")})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetPurpose(ctx, c.ID, "use"); err != nil {
		t.Fatal(err)
	}
}

func TestExportImportJSONL(t *testing.T) {
	ctx := context.Background()
	src := setupTestDB(t)
	seedGraph(t, src)

	var buf bytes.Buffer
	counts, err := src.ExportJSONL(ctx, &buf)
	if err != nil {
		t.Fatalf("ExportJSONL() error = %v", err)
	}
	want := DumpCounts{Researchers: 1, Papers: 2, Authorships: 1, Citations: 1}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("export counts (-want +got):\n%s", diff)
	}
	if got := strings.Count(buf.String(), "\n"); got != 5 {
		t.Errorf("dump has %d lines, want 5", got)
	}

	dst := setupTestDB(t)
	dump := buf.String()
	for i := 0; i < 2; i++ {
		if _, err := dst.ImportJSONL(ctx, strings.NewReader(dump)); err != nil {
			t.Fatalf("ImportJSONL() pass %d error = %v", i+1, err)
		}
	}

	srcStats, _ := src.Stats(ctx)
	dstStats, err := dst.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(srcStats, dstStats); diff != "" {
		t.Errorf("stats after loading twice (-src +dst):\n%s", diff)
	}

	p, err := dst.GetPaper(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !p.CitationsFetched || p.ReferencesFetched {
		t.Errorf("flags = %v/%v, want true/false", p.CitationsFetched, p.ReferencesFetched)
	}
	cites, err := dst.CitationsForPaper(ctx, "p1")
	if err != nil || len(cites) != 1 {
		t.Fatalf("CitationsForPaper() = %v, %v", cites, err)
	}
	if cites[0].LLMPurpose == nil || *cites[0].LLMPurpose != "use" {
		t.Errorf("purpose = %v, want use", cites[0].LLMPurpose)
	}
}

func TestImportJSONL_KeepsExistingLabels(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	c, err := db.AddCitation(ctx, Citation{CitingPaperID: "c1", CitedPaperID: "p1", Context: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetPurpose(ctx, c.ID, "basis"); err != nil {
		t.Fatal(err)
	}

	dump := `{"type":"citation","citation":{"citing_paper_id":"c1","cited_paper_id":"p1","context":"x","llm_purpose":"use","sentiment":"positive"}}`
	if _, err := db.ImportJSONL(ctx, strings.NewReader(dump)); err != nil {
		t.Fatalf("ImportJSONL() error = %v", err)
	}

	got, err := db.GetCitation(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if *got.LLMPurpose != "basis" {
		t.Errorf("purpose = %q, want existing basis kept", *got.LLMPurpose)
	}
	if got.Sentiment == nil || *got.Sentiment != "positive" {
		t.Errorf("sentiment = %v, want positive filled in", got.Sentiment)
	}
}

func TestImportJSONL_Errors(t *testing.T) {
	tests := []struct {
		name string
		dump string
		want string
	}{
		{"bad json", "{nope", "parsing line 2"},
		{"unknown type", `{"type":"grant"}`, "unknown or empty record"},
		{"dangling authorship", `{"type":"authorship","authorship":{"researcher":"a9","paper":"p9","author_order":0}}`, "line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			// The leading blank line is skipped but still counted.
			_, err := db.ImportJSONL(context.Background(), strings.NewReader("\n"+tt.dump))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ImportJSONL() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestImportJSONL_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	dump := `{"type":"researcher","researcher":{"external_id":"a1","name":"Alice"}}
{"type":"grant"}`

	if _, err := db.ImportJSONL(ctx, strings.NewReader(dump)); err == nil {
		t.Fatal("expected error")
	}
	if ok, _ := db.HasResearcher(ctx, "a1"); ok {
		t.Error("researcher from a failed import was committed")
	}
}
