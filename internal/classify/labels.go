// Package classify labels citation contexts with a language model and
// measures how well it does against hand annotations.
package classify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matsen/citeq/internal/fuzzy"
)

// Kind selects which label set and which citation column a pass uses.
type Kind string

const (
	KindSentiment Kind = "sentiment"
	KindPurpose   Kind = "purpose"
)

// Label is one class. Match is the word the model's answer is compared to.
type Label struct {
	Name  string
	Match string
}

// LabelSet is an ordered enumeration of labels plus the prompt that asks
// for one of them. Annotation files refer to labels by index.
type LabelSet struct {
	Kind   Kind
	Labels []Label
	Prompt string
}

// Sentiment labels a citation by the citing author's stance.
var Sentiment = LabelSet{
	Kind: KindSentiment,
	Labels: []Label{
		{Name: "positive", Match: "positive"},
		{Name: "negative", Match: "negative"},
		{Name: "neutral", Match: "neutral"},
		{Name: "bad_context", Match: "bad"},
	},
	Prompt: `Classify the sentiment of the in-text citation below into one of these categories.

Positive: the citing sentence praises, builds on, or is supported by the cited work.
Negative: the citing sentence points out a weakness of the cited work or evaluates it negatively.
Neutral: the citing sentence describes the cited work without judging it.
Bad context: the text is not enough to judge, or contains no citation.

First write 'THINKING:' and reason step by step. Then write 'ANSWER:' and give your answer in a single word.

Citation: `,
}

// Purpose labels a citation by why the cited work is referenced.
var Purpose = LabelSet{
	Kind: KindPurpose,
	Labels: []Label{
		{Name: "criticizing", Match: "criticizing"},
		{Name: "comparison", Match: "comparison"},
		{Name: "use", Match: "use"},
		{Name: "substantiating", Match: "substantiating"},
		{Name: "basis", Match: "basis"},
		{Name: "neutral", Match: "neutral"},
	},
	Prompt: `Classify the purpose of the in-text citation below into one of these categories.

Criticizing: evaluates strengths or weaknesses of the cited work.
Comparison: compares or contrasts the cited work with the author's own.
Use: the citing paper uses a method, idea or tool of the cited work.
Substantiating: the citing work's results support the cited work, or vice versa.
Basis: the cited work is the starting point that the author extends.
Neutral: a neutral description, or none of the above.

First write 'THINKING:' and reason step by step. Then write 'ANSWER:' and give your answer in a single word.

Citation: `,
}

// LabelsFor returns the label set for kind.
func LabelsFor(kind Kind) (LabelSet, error) {
	switch kind {
	case KindSentiment:
		return Sentiment, nil
	case KindPurpose:
		return Purpose, nil
	}
	return LabelSet{}, fmt.Errorf("unknown label kind %q (want %s or %s)", kind, KindSentiment, KindPurpose)
}

// Names returns the label names in order.
func (s LabelSet) Names() []string {
	names := make([]string, len(s.Labels))
	for i, l := range s.Labels {
		names[i] = l.Name
	}
	return names
}

// Index returns the position of the named label, or -1.
func (s LabelSet) Index(name string) int {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, l := range s.Labels {
		if l.Name == name {
			return i
		}
	}
	return -1
}

// Nearest maps a free-text answer to the label whose match word has the
// highest partial ratio against it. The first label wins ties.
func (s LabelSet) Nearest(answer string) string {
	answer = strings.ToLower(strings.TrimSpace(answer))
	best, bestScore := 0, -1
	for i, l := range s.Labels {
		if score := fuzzy.PartialRatio(answer, l.Match); score > bestScore {
			best, bestScore = i, score
		}
	}
	return s.Labels[best].Name
}

// Resolve accepts a label name or a label index and returns the name.
func (s LabelSet) Resolve(v string) (string, error) {
	v = strings.TrimSpace(v)
	if i, err := strconv.Atoi(v); err == nil {
		if i < 0 || i >= len(s.Labels) {
			return "", fmt.Errorf("label index %d out of range [0,%d)", i, len(s.Labels))
		}
		return s.Labels[i].Name, nil
	}
	if i := s.Index(v); i >= 0 {
		return s.Labels[i].Name, nil
	}
	return "", fmt.Errorf("unknown %s label %q", s.Kind, v)
}
