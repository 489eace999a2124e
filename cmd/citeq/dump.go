package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [FILE.jsonl]",
	Short: "Dump the citation graph as JSONL",
	Long: `Write every researcher, paper, authorship and citation as one JSON record
per line. Without a file the dump goes to stdout and no summary is printed.

The dump keeps crawl progress and labels, so 'citeq import' can rebuild or
merge a store from it.

Examples:
  citeq export graph.jsonl
  citeq export | gzip > graph.jsonl.gz`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import FILE.jsonl",
	Short: "Load a JSONL graph dump",
	Long: `Load a dump written by 'citeq export'. Rows already in the store are kept;
fetched flags and labels are only ever added. The whole file is loaded in
one transaction.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
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

	if len(args) == 0 {
		_, err := db.ExportJSONL(cmd.Context(), stdout)
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("creating dump: %w", err)
	}
	counts, err := db.ExportJSONL(cmd.Context(), f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing dump: %w", cerr)
	}
	if err != nil {
		return err
	}
	return output(counts, func() {
		outputHuman("Exported %d researchers, %d papers, %d authorships, %d citations to %s\n",
			counts.Researchers, counts.Papers, counts.Authorships, counts.Citations, args[0])
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening dump: %w", err)
	}
	defer f.Close()

	db, err := e.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := db.ImportJSONL(cmd.Context(), bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("importing %s: %w", args[0], err)
	}
	return output(counts, func() {
		outputHuman("Read %d researchers, %d papers, %d authorships, %d citations\n",
			counts.Researchers, counts.Papers, counts.Authorships, counts.Citations)
	})
}
