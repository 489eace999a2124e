package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/citeq/internal/pdftext"
)

var contextsCmd = &cobra.Command{
	Use:   "contexts FILE.pdf",
	Short: "Extract numbered citation contexts from a PDF",
	Long: `Find the bibliography of a PDF and list, for every numbered entry, the
sentences that cite it with a [n] marker. Lists ([1, 3]) and ranges ([2-5])
are expanded.

Relative paths are resolved against pdf_root when it is configured.

Examples:
  citeq contexts paper.pdf
  citeq contexts Smith2024.pdf --human`,
	Args: cobra.ExactArgs(1),
	RunE: runContexts,
}

func init() {
	rootCmd.AddCommand(contextsCmd)
}

func runContexts(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	path, err := pdftext.ResolvePath(e.cfg.PDFRoot, args[0])
	if err != nil {
		return err
	}
	doc, err := pdftext.ExtractFile(path)
	if err != nil {
		return err
	}
	return output(doc, func() { printDocument(doc) })
}

func printDocument(doc *pdftext.Document) {
	if doc.Title != "" {
		outputHuman("%s\n", doc.Title)
	}
	if doc.DOI != "" {
		outputHuman("doi:%s\n", doc.DOI)
	}
	outputHuman("\n")
	for _, r := range doc.References {
		outputHuman("[%d] %s\n", r.Number, truncate(r.Text, TitleMaxLen))
		for _, c := range r.Contexts {
			outputHuman("    > %s\n", c)
		}
	}
	if doc.Unmatched > 0 {
		outputHuman("\n%d markers point past the bibliography\n", doc.Unmatched)
	}
}
