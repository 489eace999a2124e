// Package main provides the citeq CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/citeq/internal/classify"
	"github.com/matsen/citeq/internal/config"
	"github.com/matsen/citeq/internal/httpx"
	"github.com/matsen/citeq/internal/logging"
	"github.com/matsen/citeq/internal/openalex"
	"github.com/matsen/citeq/internal/s2"
	"github.com/matsen/citeq/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	configPath  string
	dbPath      string
	verbose     bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// SilenceErrors is set, so cobra's own errors surface here too.
		reportError(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "citeq",
	Short: "Citation graph crawler and classifier",
	Long: `citeq resolves a researcher across OpenAlex and Semantic Scholar, crawls
their papers with every citation and reference edge into SQLite, and
classifies the sentiment or purpose of each citation context with a local
LLM.

Crawls are re-entrant: an interrupted run picks up where it stopped.
All commands output JSON by default; pass --human for text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/citeq/config.yml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides db_path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.Version = Version
}

// env is what every command starts from.
type env struct {
	cfg *config.Config
	log *zap.Logger
}

// setup loads configuration and builds the logger. Flags beat the file and
// the environment.
func setup() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, withCode(ExitConfigError, fmt.Errorf("loading config: %w", err))
	}
	if dbPath != "" {
		cfg.DBPath = config.ExpandPath(dbPath)
	}
	log, err := logging.New(cfg.LogMode, verbose)
	if err != nil {
		return nil, withCode(ExitConfigError, fmt.Errorf("building logger: %w", err))
	}
	return &env{cfg: cfg, log: log}, nil
}

func (e *env) close() {
	_ = e.log.Sync()
}

// openDB opens the graph store.
func (e *env) openDB() (*storage.DB, error) {
	db, err := storage.OpenDB(e.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// httpClient builds one resilient client. Each upstream gets its own so
// their rate limits are independent.
func (e *env) httpClient(source string) *httpx.Client {
	return httpx.NewClient(
		httpx.WithMaxAttempts(e.cfg.MaxAttempts),
		httpx.WithBackoff(e.cfg.BaseDelay, e.cfg.MaxDelay),
		httpx.WithRateLimit(e.cfg.RequestsPerSecond),
		httpx.WithUserAgent("citeq/"+Version),
		httpx.WithLogger(e.log.With(zap.String("source", source))),
	)
}

func (e *env) s2Client() *s2.Client {
	if e.cfg.S2APIKey != "" {
		e.log.Debug("using Semantic Scholar API key", logging.Redact("key", e.cfg.S2APIKey))
	}
	return s2.NewClient(
		s2.WithBaseURL(e.cfg.S2URL),
		s2.WithAPIKey(e.cfg.S2APIKey),
		s2.WithPageSize(e.cfg.PageSize),
		s2.WithBatchSize(e.cfg.BatchSize),
		s2.WithHTTPClient(e.httpClient("s2")),
	)
}

func (e *env) openAlexClient() *openalex.Client {
	return openalex.NewClient(
		openalex.WithBaseURL(e.cfg.OpenAlexURL),
		openalex.WithEmail(e.cfg.OpenAlexEmail),
		openalex.WithPageSize(e.cfg.PageSize),
		openalex.WithHTTPClient(e.httpClient("openalex")),
	)
}

// classifier builds the classifier for model. The "random" model is the
// uniform baseline; anything else must be pulled in Ollama.
func (e *env) classifier(ctx context.Context, labels classify.LabelSet, model string) (classify.Classifier, error) {
	if model == "" {
		model = e.cfg.OllamaModel
	}
	if model == classify.RandomModel {
		return classify.NewRandomClassifier(labels, uint64(time.Now().UnixNano())), nil
	}

	clf := classify.NewOllamaClassifier(labels,
		classify.WithBaseURL(e.cfg.OllamaURL),
		classify.WithModel(model),
		classify.WithHTTPClient(httpx.NewClient(
			httpx.WithMaxAttempts(e.cfg.MaxAttempts),
			httpx.WithBackoff(e.cfg.BaseDelay, e.cfg.MaxDelay),
			httpx.WithRateLimit(0),
			httpx.WithLogger(e.log.With(zap.String("source", "ollama"))),
		)),
		classify.WithLogger(e.log),
	)
	ok, err := clf.HasModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("ollama is not reachable at %s (start it with 'ollama serve'): %w", e.cfg.OllamaURL, err)
	}
	if !ok {
		return nil, withCode(ExitConfigError, fmt.Errorf("model %q not found; run 'ollama pull %s'", model, model))
	}
	return clf, nil
}
