package pdftext

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrNoBibliography indicates no references heading was found.
var ErrNoBibliography = errors.New("no bibliography found")

// maxGapLines is how many consecutive lines without an entry marker end
// the bibliography.
const maxGapLines = 3

var (
	// entryMarker opens a bibliography entry: [12]
	entryMarker = regexp.MustCompile(`\[(\d+)\]`)

	// citeMarker is an in-text citation: [3], [3, 7], [3-5]
	citeMarker = regexp.MustCompile(`\[\d+(?:\s*[,\-–]\s*\d+)*\]`)

	spaces = regexp.MustCompile(`\s+`)
)

// Reference is a numbered bibliography entry and the body sentences that
// cite it, in reading order.
type Reference struct {
	Number   int      `json:"number"`
	Text     string   `json:"text"`
	Contexts []string `json:"contexts"`
}

// Document is the result of parsing one paper.
type Document struct {
	Title      string      `json:"title,omitempty"`
	DOI        string      `json:"doi,omitempty"`
	References []Reference `json:"references"`
	// Unmatched counts cited numbers with no bibliography entry.
	Unmatched int `json:"unmatched,omitempty"`
}

// Parse splits text at the bibliography heading, reads the numbered
// entries after it and attaches every body sentence containing a
// bracketed citation to the entries it names.
func Parse(text string) (*Document, error) {
	lines := strings.Split(text, "\n")
	bib := findBibliography(lines)
	if bib < 0 {
		return nil, ErrNoBibliography
	}

	refs := parseEntries(lines[bib+1:])
	byNumber := make(map[int]int, len(refs))
	for i, r := range refs {
		byNumber[r.Number] = i
	}

	doc := &Document{References: refs}
	for _, sentence := range splitSentences(strings.Join(lines[:bib], " ")) {
		for _, marker := range citeMarker.FindAllString(sentence, -1) {
			for _, n := range expandMarker(marker) {
				i, ok := byNumber[n]
				if !ok {
					doc.Unmatched++
					continue
				}
				doc.References[i].addContext(sentence)
			}
		}
	}
	return doc, nil
}

func (r *Reference) addContext(sentence string) {
	for _, c := range r.Contexts {
		if c == sentence {
			return
		}
	}
	r.Contexts = append(r.Contexts, sentence)
}

// findBibliography returns the index of the references heading. A line
// that is only the heading wins over a line merely containing it.
func findBibliography(lines []string) int {
	for i, line := range lines {
		switch strings.ToUpper(strings.Trim(strings.TrimSpace(line), ".:")) {
		case "REFERENCES", "BIBLIOGRAPHY":
			return i
		}
	}
	for i, line := range lines {
		if strings.Contains(line, "REFERENCES") {
			return i
		}
	}
	return -1
}

// parseEntries reads numbered entries. Text before the first marker on a
// line continues the previous entry. A repeated number or a long run of
// lines without markers ends the list.
func parseEntries(lines []string) []Reference {
	var (
		refs  []Reference
		seen  = map[int]bool{}
		texts []*strings.Builder
		gap   int
	)

	appendLast := func(s string) {
		if len(texts) > 0 {
			texts[len(texts)-1].WriteString(" " + s)
		}
	}

entries:
	for _, line := range lines {
		locs := entryMarker.FindAllStringSubmatchIndex(line, -1)
		if len(locs) == 0 {
			if strings.TrimSpace(line) == "" {
				continue
			}
			gap++
			if gap > maxGapLines {
				break
			}
			appendLast(line)
			continue
		}
		gap = 0

		if locs[0][0] > 0 {
			appendLast(line[:locs[0][0]])
		}
		for j, loc := range locs {
			n, _ := strconv.Atoi(line[loc[2]:loc[3]])
			if seen[n] {
				break entries
			}
			seen[n] = true

			end := len(line)
			if j+1 < len(locs) {
				end = locs[j+1][0]
			}
			b := &strings.Builder{}
			b.WriteString(line[loc[1]:end])
			texts = append(texts, b)
			refs = append(refs, Reference{Number: n})
		}
	}

	for i := range refs {
		refs[i].Text = collapse(texts[i].String())
	}
	return refs
}

// expandMarker returns the numbers named by a citation marker.
func expandMarker(marker string) []int {
	var out []int
	for _, part := range strings.Split(strings.Trim(marker, "[]"), ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(strings.ReplaceAll(part, "–", "-"), "-")
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			continue
		}
		if !isRange {
			out = append(out, a)
			continue
		}
		b, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || b < a || b-a > 50 {
			out = append(out, a)
			continue
		}
		for n := a; n <= b; n++ {
			out = append(out, n)
		}
	}
	return out
}

// splitSentences breaks text at ., ! or ? followed by whitespace and an
// upper-case letter, digit or opening bracket. Common abbreviations do not
// end a sentence.
func splitSentences(text string) []string {
	text = collapse(text)
	runes := []rune(text)

	var (
		out   []string
		start int
	)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
		default:
			continue
		}
		if i+2 >= len(runes) || runes[i+1] != ' ' {
			continue
		}
		next := runes[i+2]
		if !unicode.IsUpper(next) && !unicode.IsDigit(next) && next != '[' && next != '(' {
			continue
		}
		if runes[i] == '.' && isAbbreviation(runes[start:i]) {
			continue
		}
		out = append(out, strings.TrimSpace(string(runes[start:i+1])))
		start = i + 2
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

var abbreviations = map[string]bool{
	"al": true, "e.g": true, "i.e": true, "cf": true, "fig": true,
	"eq": true, "sec": true, "vs": true, "ref": true, "refs": true,
	"et": true, "no": true, "vol": true,
}

// isAbbreviation reports whether the word before a period is a known
// abbreviation or a single letter (an initial).
func isAbbreviation(before []rune) bool {
	i := len(before)
	for i > 0 && !unicode.IsSpace(before[i-1]) && before[i-1] != '(' {
		i--
	}
	word := strings.ToLower(string(before[i:]))
	if len([]rune(word)) == 1 && unicode.IsLetter([]rune(word)[0]) {
		return true
	}
	return abbreviations[word]
}

func collapse(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}
