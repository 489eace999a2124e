package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matsen/citeq/internal/storage"
)

var papersContexts bool

var papersCmd = &cobra.Command{
	Use:   "papers AUTHOR_ID",
	Short: "List a stored researcher's papers with their citation edges",
	Long: `List the papers stored for a researcher (by Semantic Scholar author id),
with how many stored contexts cite each paper and how many contexts the
paper cites others in. With --contexts the contexts themselves are included.

Examples:
  citeq papers 1749627 --human
  citeq papers 1749627 --contexts`,
	Args: cobra.ExactArgs(1),
	RunE: runPapers,
}

func init() {
	papersCmd.Flags().BoolVar(&papersContexts, "contexts", false, "Include the citing and cited contexts")
	rootCmd.AddCommand(papersCmd)
}

// PaperEdges is one paper with its stored citation edges.
type PaperEdges struct {
	storage.Paper
	CitedBy    int                `json:"cited_by"`
	Cites      int                `json:"cites"`
	Citations  []storage.Citation `json:"citations,omitempty"`
	References []storage.Citation `json:"references,omitempty"`
}

// PapersResult is the JSON output of the papers command.
type PapersResult struct {
	Researcher storage.Researcher `json:"researcher"`
	Papers     []PaperEdges       `json:"papers"`
}

func runPapers(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	db, err := e.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	researcher, err := db.GetResearcher(ctx, args[0])
	if err != nil {
		return err
	}
	papers, err := db.PapersByResearcher(ctx, researcher.ID)
	if err != nil {
		return err
	}

	result := PapersResult{Researcher: researcher, Papers: make([]PaperEdges, 0, len(papers))}
	for _, p := range papers {
		citing, err := db.CitationsForPaper(ctx, p.ExternalID)
		if err != nil {
			return err
		}
		refs, err := db.ReferencesOfPaper(ctx, p.ExternalID)
		if err != nil {
			return err
		}
		pe := PaperEdges{Paper: p, CitedBy: len(citing), Cites: len(refs)}
		if papersContexts {
			pe.Citations, pe.References = citing, refs
		}
		result.Papers = append(result.Papers, pe)
	}

	return output(result, func() {
		outputHuman("%s (%s): %d papers\n\n", researcher.Name, researcher.ExternalID, len(result.Papers))
		for _, p := range result.Papers {
			year := "    "
			if p.Year != nil {
				year = strconv.Itoa(*p.Year)
			}
			outputHuman("  %s  %-12s cited-by %-4d cites %-4d %s\n", year, p.ExternalID, p.CitedBy, p.Cites, truncate(p.Title, TitleMaxLen))
			for _, c := range p.Citations {
				outputHuman("      <- %s: %s\n", c.CitingPaperID, c.Context)
			}
			for _, c := range p.References {
				outputHuman("      -> %s: %s\n", c.CitedPaperID, c.Context)
			}
		}
	})
}
