package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/citeq/internal/crawl"
	"github.com/matsen/citeq/internal/resolve"
)

var errNameRequired = errors.New("a researcher name or --author-id is required")

var (
	crawlFlags       profileFlags
	crawlClassify    bool
	crawlStart       int64
	crawlEnd         int64
	crawlKind        string
	crawlMetricsAddr string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl NAME...",
	Short: "Resolve a researcher and crawl their citation graph",
	Long: `Resolve a researcher, then store their papers, co-authors, and every
citation and reference edge with its citing sentence.

Each paper's citations and references are marked fetched once stored, so
re-running the same crawl only fetches what is missing. Papers whose edges
could not be fetched are listed in the report and retried next run.

With --classify, no crawling happens: citations with start <= id < end
are classified instead (see 'citeq classify').

Examples:
  citeq crawl Frederick Matsen --institution "Fred Hutch"
  citeq crawl --author-id 1749627 --metrics-addr :9090
  citeq crawl --classify --start 1 --end 500`,
	Args: func(cmd *cobra.Command, args []string) error {
		if !crawlClassify && crawlFlags.authorID == "" && len(args) == 0 {
			return withCode(ExitError, errNameRequired)
		}
		return nil
	},
	RunE: runCrawl,
}

func init() {
	crawlFlags.register(crawlCmd)
	crawlCmd.Flags().BoolVar(&crawlClassify, "classify", false, "Classify stored citations instead of crawling")
	crawlCmd.Flags().Int64Var(&crawlStart, "start", 0, "First citation id to classify (with --classify)")
	crawlCmd.Flags().Int64Var(&crawlEnd, "end", 0, "Classify ids below this; 0 means no limit (with --classify)")
	crawlCmd.Flags().StringVar(&crawlKind, "kind", "sentiment", "Label kind with --classify: sentiment or purpose")
	crawlCmd.Flags().StringVar(&crawlMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the crawl")
	rootCmd.AddCommand(crawlCmd)
}

// CrawlResult is the JSON output of the crawl command.
type CrawlResult struct {
	Resolution *resolve.Result `json:"resolution"`
	Report     *crawl.Report   `json:"report"`
}

func runCrawl(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	if crawlClassify {
		return classifyRange(ctx, e, crawlKind, "", e.cfg.ClassifyWorkers, crawlStart, crawlEnd)
	}

	db, err := e.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	metrics, stopMetrics := serveMetrics(e, crawlMetricsAddr)
	defer stopMetrics()

	res, err := resolveResearcher(ctx, e, &crawlFlags, args)
	if err != nil {
		return err
	}
	e.log.Info("resolved researcher",
		zap.String("id", res.Researcher.ExternalID),
		zap.String("name", res.Researcher.Name))

	c := crawl.New(e.s2Client(), db, crawl.WithLogger(e.log), crawl.WithMetrics(metrics))
	report, err := c.Run(ctx, res.Researcher)
	if err != nil {
		e.log.Error("crawl stopped",
			zap.Int("papers", report.Papers),
			zap.Int("citations", report.Citations),
			zap.Int("references", report.References),
			zap.Error(err))
		return err
	}

	result := CrawlResult{Resolution: res, Report: report}
	return output(result, func() { printReport(report) })
}

func printReport(r *crawl.Report) {
	outputHuman("Crawled %s (%s)\n", r.Researcher.Name, r.Researcher.ExternalID)
	outputHuman("  papers:     %d\n", r.Papers)
	outputHuman("  citations:  %d\n", r.Citations)
	outputHuman("  references: %d\n", r.References)
	if n := len(r.SkippedCitations) + len(r.SkippedReferences); n > 0 {
		outputHuman("  skipped:    %d papers (re-run to retry)\n", n)
		for _, id := range r.SkippedCitations {
			outputHuman("    citations of %s\n", id)
		}
		for _, id := range r.SkippedReferences {
			outputHuman("    references of %s\n", id)
		}
	}
}

// serveMetrics registers the crawl metrics and, when addr is set, serves
// them over HTTP. The returned func shuts the server down.
func serveMetrics(e *env, addr string) (*crawl.Metrics, func()) {
	if addr == "" {
		return nil, func() {}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := crawl.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		e.log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics server", zap.Error(err))
		}
	}()

	return metrics, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			e.log.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}
