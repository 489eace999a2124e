package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/citeq/internal/classify"
)

var (
	classifyStart   int64
	classifyEnd     int64
	classifyKind    string
	classifyWorkers int
	classifyModel   string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Label stored citation contexts with an LLM",
	Long: `Classify the citing sentence of each stored citation with start <= id < end.

Sentiment labels: positive, negative, neutral, bad_context.
Purpose labels: criticizing, comparison, use, substantiating, basis, neutral.

Citations that already carry a label of the requested kind are skipped, so
an interrupted pass can be re-run over the same range. The model name
"random" assigns uniformly random labels as a baseline.

Examples:
  citeq classify --start 1 --end 1000
  citeq classify --kind purpose --model mistral --workers 8`,
	Args: cobra.NoArgs,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().Int64Var(&classifyStart, "start", 0, "First citation id")
	classifyCmd.Flags().Int64Var(&classifyEnd, "end", 0, "Stop before this id; 0 means no limit")
	classifyCmd.Flags().StringVar(&classifyKind, "kind", string(classify.KindSentiment), "Label kind: sentiment or purpose")
	classifyCmd.Flags().IntVar(&classifyWorkers, "workers", 0, "Concurrent requests (default classify_workers)")
	classifyCmd.Flags().StringVar(&classifyModel, "model", "", "Ollama model, or \"random\" (default ollama_model)")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	workers := classifyWorkers
	if workers <= 0 {
		workers = e.cfg.ClassifyWorkers
	}
	return classifyRange(cmd.Context(), e, classifyKind, classifyModel, workers, classifyStart, classifyEnd)
}

// ClassifyResult is the JSON output of a classification pass.
type ClassifyResult struct {
	Kind  classify.Kind `json:"kind"`
	Model string        `json:"model"`
	Start int64         `json:"start"`
	End   int64         `json:"end"`
	classify.RunReport
}

// classifyRange runs one classification pass and prints its report.
func classifyRange(ctx context.Context, e *env, kindName, model string, workers int, start, end int64) error {
	kind := classify.Kind(kindName)
	labels, err := classify.LabelsFor(kind)
	if err != nil {
		return err
	}
	if model == "" {
		model = e.cfg.OllamaModel
	}

	clf, err := e.classifier(ctx, labels, model)
	if err != nil {
		return err
	}

	db, err := e.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	runner := classify.NewRunner(db, clf, kind,
		classify.WithWorkers(workers),
		classify.WithRunnerLogger(e.log.With(zap.String("model", model))))
	report, err := runner.Run(ctx, start, end)
	if err != nil {
		return err
	}

	result := ClassifyResult{Kind: kind, Model: model, Start: start, End: end, RunReport: *report}
	return output(result, func() {
		outputHuman("Classified %d citations (%s, %s)\n", report.Classified, kind, model)
		outputHuman("  skipped:   %d\n", report.Skipped)
		outputHuman("  no answer: %d\n", report.NoAnswer)
	})
}

var (
	evaluateModel string
	evaluateKind  string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate ANNOTATIONS.csv",
	Short: "Score the classifier against hand annotations",
	Long: `Classify every hand-annotated citation and report per-label precision
and recall plus overall accuracy.

The annotation file has "citation_id,label_index" rows; an optional header
row is skipped. Indexes follow the label order shown by 'citeq classify --help'.

Examples:
  citeq evaluate annotations.csv --model llama2 --human
  citeq evaluate annotations.csv --model random`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateModel, "model", "", "Ollama model, or \"random\" (default ollama_model)")
	evaluateCmd.Flags().StringVar(&evaluateKind, "kind", string(classify.KindPurpose), "Label kind: sentiment or purpose")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	labels, err := classify.LabelsFor(classify.Kind(evaluateKind))
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening annotations: %w", err)
	}
	defer f.Close()
	anns, err := classify.ReadAnnotations(f, labels)
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	ctx := cmd.Context()
	clf, err := e.classifier(ctx, labels, evaluateModel)
	if err != nil {
		return err
	}
	db, err := e.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	eval, err := classify.Evaluate(ctx, db, clf, labels, anns)
	if err != nil {
		return err
	}
	return output(eval, func() { printEvaluation(eval) })
}

func printEvaluation(eval *classify.Evaluation) {
	outputHuman("%-16s %9s %9s %8s\n", "label", "precision", "recall", "support")
	for _, c := range eval.Classes {
		outputHuman("%-16s %9.3f %9.3f %8d\n", c.Label, c.Precision, c.Recall, c.Support)
	}
	outputHuman("\naccuracy %.3f over %d citations\n", eval.Accuracy, eval.Total)
}

var importKind string

var importLabelsCmd = &cobra.Command{
	Use:   "import-labels FILE.csv",
	Short: "Store labels produced offline",
	Long: `Write "citation_id,label" rows into the store. A label may be a label
name or its index. Ids not in the store are reported, not fatal.

Examples:
  citeq import-labels purposes.csv
  citeq import-labels sentiments.csv --kind sentiment`,
	Args: cobra.ExactArgs(1),
	RunE: runImportLabels,
}

func init() {
	importLabelsCmd.Flags().StringVar(&importKind, "kind", string(classify.KindPurpose), "Label kind: sentiment or purpose")
	rootCmd.AddCommand(importLabelsCmd)
}

func runImportLabels(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	kind := classify.Kind(importKind)
	labels, err := classify.LabelsFor(kind)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening labels: %w", err)
	}
	defer f.Close()
	rows, err := classify.ReadLabels(f, labels)
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	db, err := e.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := classify.ImportLabels(cmd.Context(), db, kind, rows)
	if err != nil {
		return err
	}
	return output(report, func() {
		outputHuman("Imported %d %s labels\n", report.Imported, kind)
		if len(report.Missing) > 0 {
			outputHuman("  %d citation ids not in the store: %v\n", len(report.Missing), report.Missing)
		}
	})
}
