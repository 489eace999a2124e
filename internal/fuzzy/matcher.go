package fuzzy

import (
	"errors"
	"sort"
)

var (
	// ErrNoCandidates indicates there was nothing to score.
	ErrNoCandidates = errors.New("no candidates")

	// ErrNoQualifyingCandidates indicates every candidate was dropped by the
	// works/citations quality floor.
	ErrNoQualifyingCandidates = errors.New("no candidate has recorded works and citations")
)

// Profile is the identity being searched for.
type Profile struct {
	Name        string `json:"name"`
	Alias       string `json:"alias,omitempty"`
	Institution string `json:"institution,omitempty"`
}

// Candidate is one identity record returned by a bibliographic source.
type Candidate struct {
	ID               string   `json:"id"`
	DisplayName      string   `json:"display_name"`
	Institution      string   `json:"institution,omitempty"`
	AlternativeNames []string `json:"alternative_names,omitempty"`
	Works            int      `json:"works"`
	Citations        int      `json:"citations"`
}

// Qualifies reports whether the candidate passes the quality floor. Many
// author records are stubs with no works or no citations.
func (c Candidate) Qualifies() bool {
	return c.Works > 0 && c.Citations > 0
}

// Scored pairs a candidate with its score.
type Scored struct {
	Candidate Candidate `json:"candidate"`
	Score     float64   `json:"score"`
}

// Score computes the identity score of c against q.
//
// It sums the token-sort partial ratio of name vs display name, alias vs
// display name, institution vs institution, and the mean ratio of name
// and of alias against the candidate's alternative names. Absent inputs
// contribute 0. The alternative-name terms only apply when an alias is
// given.
func Score(q Profile, c Candidate) float64 {
	score := float64(TokenSortPartialRatio(q.Name, c.DisplayName))

	if q.Alias != "" {
		score += float64(TokenSortPartialRatio(q.Alias, c.DisplayName))
	}

	if q.Institution != "" && c.Institution != "" {
		score += float64(TokenSortPartialRatio(q.Institution, c.Institution))
	}

	if q.Alias != "" && len(c.AlternativeNames) > 0 {
		score += meanRatio(q.Name, c.AlternativeNames)
		score += meanRatio(q.Alias, c.AlternativeNames)
	}

	return score
}

func meanRatio(s string, names []string) float64 {
	total := 0
	for _, n := range names {
		total += TokenSortPartialRatio(s, n)
	}
	return float64(total) / float64(len(names))
}

// Rank scores every candidate and returns them best first. Equal scores
// keep their input order.
func Rank(q Profile, candidates []Candidate) []Scored {
	return RankBy(candidates, func(c Candidate) float64 { return Score(q, c) })
}

// RankBy is Rank with a caller-supplied score.
func RankBy(candidates []Candidate, score func(Candidate) float64) []Scored {
	ranked := make([]Scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = Scored{Candidate: c, Score: score(c)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Best returns the highest-scoring candidate. On a tie the candidate seen
// first wins.
func Best(q Profile, candidates []Candidate) (Scored, error) {
	return BestBy(candidates, func(c Candidate) float64 { return Score(q, c) })
}

// BestBy returns the candidate maximizing score, first-seen on ties.
func BestBy(candidates []Candidate, score func(Candidate) float64) (Scored, error) {
	if len(candidates) == 0 {
		return Scored{}, ErrNoCandidates
	}

	best := Scored{Candidate: candidates[0], Score: score(candidates[0])}
	for _, c := range candidates[1:] {
		if s := score(c); s > best.Score {
			best = Scored{Candidate: c, Score: s}
		}
	}
	return best, nil
}

// Qualifying returns the candidates that pass the quality floor, in order.
func Qualifying(candidates []Candidate) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if c.Qualifies() {
			out = append(out, c)
		}
	}
	return out
}

// BestQualifying applies the quality floor and then picks the best
// remaining candidate.
func BestQualifying(q Profile, candidates []Candidate) (Scored, error) {
	if len(candidates) == 0 {
		return Scored{}, ErrNoCandidates
	}
	qualified := Qualifying(candidates)
	if len(qualified) == 0 {
		return Scored{}, ErrNoQualifyingCandidates
	}
	return Best(q, qualified)
}
