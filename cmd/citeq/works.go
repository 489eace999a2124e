package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/citeq/internal/httpx"
	"github.com/matsen/citeq/internal/openalex"
)

var (
	worksCiting bool
	worksLimit  int
)

var worksCmd = &cobra.Command{
	Use:   "works ID",
	Short: "List OpenAlex works of an author, or works citing a work",
	Long: `List the works of an OpenAlex author (A...), or with --citing the works
that cite an OpenAlex work (W...).

Examples:
  citeq works A5023888391 --limit 20 --human
  citeq works W2741809807 --citing`,
	Args: cobra.ExactArgs(1),
	RunE: runWorks,
}

func init() {
	worksCmd.Flags().BoolVar(&worksCiting, "citing", false, "List works citing the given work")
	worksCmd.Flags().IntVarP(&worksLimit, "limit", "n", 50, "Maximum results (0 for all)")
	rootCmd.AddCommand(worksCmd)
}

// WorksResult is the JSON output of the works command.
type WorksResult struct {
	ID     string          `json:"id"`
	Citing bool            `json:"citing"`
	Works  []openalex.Work `json:"works"`
	Total  int             `json:"total"`
}

func runWorks(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	client := e.openAlexClient()
	id := openalex.ShortID(args[0])
	var pager *httpx.Pager[openalex.Work]
	if worksCiting {
		pager = client.CitingWorks(id, httpx.CursorStart())
	} else {
		pager = client.Works(id, httpx.CursorStart())
	}

	ctx := cmd.Context()
	works := make([]openalex.Work, 0)
	for pager.Next(ctx) {
		works = append(works, pager.Page().Items...)
		if worksLimit > 0 && len(works) >= worksLimit {
			works = works[:worksLimit]
			break
		}
	}
	if err := pager.Err(); err != nil {
		return err
	}

	result := WorksResult{ID: id, Citing: worksCiting, Works: works, Total: len(works)}
	return output(result, func() {
		for _, w := range works {
			title := w.Title
			if title == "" {
				title = w.DisplayName
			}
			outputHuman("%-12s %4d %6d  %s\n", w.ShortID(), w.PublicationYear, w.CitedByCount, truncate(title, TitleMaxLen))
		}
		outputHuman("\nTotal: %d works\n", len(works))
	})
}
