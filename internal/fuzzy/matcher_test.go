package fuzzy

import (
	"errors"
	"testing"
)

func TestScore_Terms(t *testing.T) {
	c := Candidate{
		ID:               "A1",
		DisplayName:      "Alice Smith",
		Institution:      "MIT",
		AlternativeNames: []string{"Alice Smith", "Smith, Alice"},
	}

	tests := []struct {
		name string
		q    Profile
		want float64
	}{
		{"name only", Profile{Name: "Alice Smith"}, 100},
		{"name and institution", Profile{Name: "Alice Smith", Institution: "MIT"}, 200},
		{"institution mismatch", Profile{Name: "Alice Smith", Institution: "Yale"}, 100},
		// alias adds display + both alternative-name averages
		{"name and alias", Profile{Name: "Alice Smith", Alias: "Smith Alice"}, 400},
		{"everything", Profile{Name: "Alice Smith", Alias: "Smith Alice", Institution: "MIT"}, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.q, c); got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_NoAlternativeNames(t *testing.T) {
	c := Candidate{ID: "A1", DisplayName: "Alice Smith"}
	q := Profile{Name: "Alice Smith", Alias: "Alice Smith"}

	if got := Score(q, c); got != 200 {
		t.Errorf("Score() = %v, want 200", got)
	}
}

func TestScore_AlternativesIgnoredWithoutAlias(t *testing.T) {
	with := Candidate{ID: "A1", DisplayName: "Alice Smith", AlternativeNames: []string{"Alice Smith"}}
	without := Candidate{ID: "A2", DisplayName: "Alice Smith"}
	q := Profile{Name: "Alice Smith"}

	if Score(q, with) != Score(q, without) {
		t.Errorf("alternative names changed the score without an alias: %v vs %v", Score(q, with), Score(q, without))
	}
}

func TestBest_InstitutionBreaksNameTie(t *testing.T) {
	q := Profile{Name: "A. Smith", Institution: "MIT"}
	candidates := []Candidate{
		{ID: "adam", DisplayName: "Adam Smith", Institution: "Yale", Works: 3, Citations: 10},
		{ID: "alice", DisplayName: "Alice Smith", Institution: "MIT", Works: 50, Citations: 500},
	}

	got, err := BestQualifying(q, candidates)
	if err != nil {
		t.Fatalf("BestQualifying() error = %v", err)
	}
	if got.Candidate.ID != "alice" {
		t.Errorf("BestQualifying() = %s, want alice", got.Candidate.ID)
	}

	alice := Score(q, candidates[1])
	adam := Score(q, candidates[0])
	if alice <= adam {
		t.Errorf("Score(alice) = %v, want > Score(adam) = %v", alice, adam)
	}
}

func TestBest_FirstSeenWinsTie(t *testing.T) {
	q := Profile{Name: "Alice Smith"}
	candidates := []Candidate{
		{ID: "first", DisplayName: "Alice Smith"},
		{ID: "second", DisplayName: "Alice Smith"},
		{ID: "third", DisplayName: "Bob Jones"},
	}

	got, err := Best(q, candidates)
	if err != nil {
		t.Fatalf("Best() error = %v", err)
	}
	if got.Candidate.ID != "first" {
		t.Errorf("Best() = %s, want first", got.Candidate.ID)
	}
	if got.Score != 100 {
		t.Errorf("Best().Score = %v, want 100", got.Score)
	}
}

func TestBestBy_StrictlyHighestWins(t *testing.T) {
	scores := map[string]float64{"a": 1, "b": 3, "c": 3, "d": 2}
	candidates := []Candidate{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}

	got, err := BestBy(candidates, func(c Candidate) float64 { return scores[c.ID] })
	if err != nil {
		t.Fatalf("BestBy() error = %v", err)
	}
	if got.Candidate.ID != "b" || got.Score != 3 {
		t.Errorf("BestBy() = %s/%v, want b/3", got.Candidate.ID, got.Score)
	}
}

func TestBest_Empty(t *testing.T) {
	_, err := Best(Profile{Name: "x"}, nil)
	if !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Best(nil) error = %v, want ErrNoCandidates", err)
	}
}

func TestBestQualifying_Errors(t *testing.T) {
	q := Profile{Name: "Alice Smith"}

	if _, err := BestQualifying(q, nil); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("BestQualifying(nil) error = %v, want ErrNoCandidates", err)
	}

	stubs := []Candidate{
		{ID: "no-works", DisplayName: "Alice Smith", Citations: 10},
		{ID: "no-cites", DisplayName: "Alice Smith", Works: 4},
	}
	if _, err := BestQualifying(q, stubs); !errors.Is(err, ErrNoQualifyingCandidates) {
		t.Errorf("BestQualifying(stubs) error = %v, want ErrNoQualifyingCandidates", err)
	}
}

func TestBestQualifying_SkipsStubsEvenWhenTheyScoreHigher(t *testing.T) {
	q := Profile{Name: "Alice Smith"}
	candidates := []Candidate{
		{ID: "stub", DisplayName: "Alice Smith"},
		{ID: "real", DisplayName: "Alicia Smithson", Works: 10, Citations: 20},
	}

	got, err := BestQualifying(q, candidates)
	if err != nil {
		t.Fatalf("BestQualifying() error = %v", err)
	}
	if got.Candidate.ID != "real" {
		t.Errorf("BestQualifying() = %s, want real", got.Candidate.ID)
	}
}

func TestRank_StableDescending(t *testing.T) {
	q := Profile{Name: "Alice Smith"}
	candidates := []Candidate{
		{ID: "other", DisplayName: "Zed Quux"},
		{ID: "first", DisplayName: "Alice Smith"},
		{ID: "second", DisplayName: "Smith Alice"},
	}

	ranked := Rank(q, candidates)
	if len(ranked) != 3 {
		t.Fatalf("Rank() returned %d, want 3", len(ranked))
	}
	want := []string{"first", "second", "other"}
	for i, id := range want {
		if ranked[i].Candidate.ID != id {
			t.Errorf("ranked[%d] = %s, want %s", i, ranked[i].Candidate.ID, id)
		}
	}
	if ranked[0].Score < ranked[2].Score {
		t.Errorf("Rank() not descending: %v", ranked)
	}
}
