package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/citeq/internal/fuzzy"
	"github.com/matsen/citeq/internal/resolve"
)

// profileFlags are the query flags shared by resolve, crawl and watch.
type profileFlags struct {
	alias       []string
	institution []string
	authorID    string
}

func (p *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&p.alias, "alias", nil, "Alternative name, quoted if several words (e.g. \"F A\"); repeatable")
	cmd.Flags().StringArrayVar(&p.institution, "institution", nil, "Institution name, quoted if several words; repeatable")
	cmd.Flags().StringVar(&p.authorID, "author-id", "", "Semantic Scholar author id; skips name resolution")
}

// profile builds the query from positional name words and the flags.
func (p *profileFlags) profile(args []string) fuzzy.Profile {
	return fuzzy.Profile{
		Name:        strings.Join(args, " "),
		Alias:       strings.Join(p.alias, " "),
		Institution: strings.Join(p.institution, " "),
	}
}

// resolveResearcher runs identity resolution, or a direct lookup when an
// author id was given.
func resolveResearcher(ctx context.Context, e *env, p *profileFlags, args []string) (*resolve.Result, error) {
	r := resolve.New(e.openAlexClient(), e.s2Client(), e.log)
	if p.authorID != "" {
		return r.ResolveByID(ctx, p.authorID)
	}
	return r.Resolve(ctx, p.profile(args))
}

var resolveFlags profileFlags

var resolveCmd = &cobra.Command{
	Use:   "resolve NAME...",
	Short: "Resolve a researcher without crawling",
	Long: `Resolve a researcher name to one Semantic Scholar author.

OpenAlex supplies a reference profile; Semantic Scholar candidates are
scored against it. The ranked candidates of both sources are printed.

Examples:
  citeq resolve Frederick Matsen --alias "F A" --institution "Fred Hutch"
  citeq resolve --author-id 1749627 --human`,
	Args: func(cmd *cobra.Command, args []string) error {
		if resolveFlags.authorID == "" && len(args) == 0 {
			return withCode(ExitError, errNameRequired)
		}
		return nil
	},
	RunE: runResolve,
}

func init() {
	resolveFlags.register(resolveCmd)
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	res, err := resolveResearcher(cmd.Context(), e, &resolveFlags, args)
	if err != nil {
		return err
	}
	return output(res, func() { printResolution(res) })
}

func printResolution(res *resolve.Result) {
	r := res.Researcher
	outputHuman("Resolved: %s (%s)\n", r.Name, r.ExternalID)
	outputHuman("  institution: %s\n", strOr(r.Institution, "-"))
	if r.HIndex != nil {
		outputHuman("  h-index:     %d\n", *r.HIndex)
	}
	if res.SourceA.Candidate.ID != "" {
		outputHuman("  OpenAlex:    %s (%s)\n", res.SourceA.Candidate.DisplayName, res.SourceA.Candidate.ID)
	}
	if len(res.CandidatesA) > 0 {
		outputHuman("\nOpenAlex candidates:\n")
		printCandidates(stdout, res.CandidatesA)
	}
	if len(res.CandidatesB) > 0 {
		outputHuman("\nSemantic Scholar candidates:\n")
		printCandidates(stdout, res.CandidatesB)
	}
}
