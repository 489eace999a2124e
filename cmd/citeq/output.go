package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/matsen/citeq/internal/fuzzy"
	"github.com/matsen/citeq/internal/resolve"
)

// TitleMaxLen truncates titles in human output.
const TitleMaxLen = 70

// stdout is swapped out by tests.
var stdout io.Writer = os.Stdout

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Fprintf(stdout, format, args...)
}

// output writes v as JSON, or calls human when --human is set.
func output(v any, human func()) error {
	if humanOutput {
		human()
		return nil
	}
	return outputJSON(v)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error      string         `json:"error"`
	Step       string         `json:"step,omitempty"`
	Candidates []fuzzy.Scored `json:"candidates,omitempty"`
}

// reportError prints err the way the output mode asks for. Resolution
// failures carry their ranked candidates so the operator can pick one.
func reportError(w io.Writer, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var rf *resolve.ResolutionFailedError
	if errors.As(err, &rf) {
		resp.Step = string(rf.Step)
		resp.Candidates = rf.Candidates
	}

	if !humanOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(resp)
		return
	}

	fmt.Fprintf(w, "error: %s\n", resp.Error)
	if len(resp.Candidates) > 0 {
		fmt.Fprintln(w, "\ncandidates:")
		printCandidates(w, resp.Candidates)
	}
}

func printCandidates(w io.Writer, cs []fuzzy.Scored) {
	for i, c := range cs {
		inst := c.Candidate.Institution
		if inst == "" {
			inst = "-"
		}
		fmt.Fprintf(w, "  %2d. %-30s %-12s %8.2f  works=%d citations=%d  %s\n",
			i+1, c.Candidate.DisplayName, c.Candidate.ID, c.Score,
			c.Candidate.Works, c.Candidate.Citations, inst)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func strOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
