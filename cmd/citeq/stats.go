package main

import (
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts and crawl progress",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	s, err := db.Stats(cmd.Context())
	if err != nil {
		return err
	}
	return output(s, func() {
		outputHuman("Database: %s\n\n", e.cfg.DBPath)
		outputHuman("  researchers:         %d\n", s.Researchers)
		outputHuman("  papers:              %d\n", s.Papers)
		outputHuman("  authorships:         %d\n", s.Authorships)
		outputHuman("  citations:           %d\n", s.Citations)
		outputHuman("  pending citations:   %d papers\n", s.PendingCitations)
		outputHuman("  pending references:  %d papers\n", s.PendingReferences)
		outputHuman("  with sentiment:      %d\n", s.WithSentiment)
		outputHuman("  with purpose:        %d\n", s.WithPurpose)
	})
}
