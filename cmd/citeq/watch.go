package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/citeq/internal/crawl"
)

var (
	watchFlags       profileFlags
	watchSchedule    string
	watchNow         bool
	watchMetricsAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch NAME...",
	Short: "Re-crawl a researcher on a schedule",
	Long: `Resolve a researcher once, then re-run the crawl on a cron schedule until
interrupted. Each run only fetches papers and edges that are still missing,
so new papers and new citations accumulate over time. A run that is still
going when the next one is due is skipped.

The schedule uses the five-field cron format or descriptors such as
@daily and "@every 6h".

Examples:
  citeq watch Frederick Matsen --schedule "0 3 * * *"
  citeq watch --author-id 1749627 --schedule @daily --now`,
	Args: func(cmd *cobra.Command, args []string) error {
		if watchFlags.authorID == "" && len(args) == 0 {
			return withCode(ExitError, errNameRequired)
		}
		return nil
	},
	RunE: runWatch,
}

func init() {
	watchFlags.register(watchCmd)
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "@daily", "Cron schedule")
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "Also crawl once immediately")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	schedule, err := cron.ParseStandard(watchSchedule)
	if err != nil {
		return withCode(ExitConfigError, fmt.Errorf("invalid schedule %q: %w", watchSchedule, err))
	}

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
	res, err := resolveResearcher(ctx, e, &watchFlags, args)
	if err != nil {
		return err
	}
	researcher := res.Researcher
	log := e.log.With(zap.String("researcher", researcher.ExternalID))

	metrics, stopMetrics := serveMetrics(e, watchMetricsAddr)
	defer stopMetrics()
	crawler := crawl.New(e.s2Client(), db, crawl.WithLogger(e.log), crawl.WithMetrics(metrics))

	job := func() {
		report, err := crawler.Run(ctx, researcher)
		if err != nil {
			log.Error("scheduled crawl failed", zap.Error(err))
			return
		}
		log.Info("scheduled crawl done",
			zap.Int("papers", report.Papers),
			zap.Int("citations", report.Citations),
			zap.Int("references", report.References))
	}

	log.Info("watching", zap.String("schedule", watchSchedule), zap.Time("next", schedule.Next(time.Now())))
	runScheduled(ctx, log, schedule, cron.FuncJob(job), watchNow)
	return nil
}

// runScheduled runs job on schedule, and once right away when now is set,
// until ctx is done. It returns only after every started run has finished.
func runScheduled(ctx context.Context, log *zap.Logger, schedule cron.Schedule, job cron.Job, now bool) {
	c, wrapped := newScheduler(log, job)
	c.Schedule(schedule, wrapped)

	var wg sync.WaitGroup
	if now {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wrapped.Run()
		}()
	}
	c.Start()

	<-ctx.Done()
	log.Info("stopping; waiting for a running crawl")
	<-c.Stop().Done()
	wg.Wait()
}

// newScheduler returns a cron that logs through zap, and job wrapped so
// that panics are recovered and runs never overlap.
func newScheduler(log *zap.Logger, job cron.Job) (*cron.Cron, cron.Job) {
	cl := cronLogger{log.Sugar()}
	wrapped := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(job)
	return cron.New(cron.WithLogger(cl)), wrapped
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = cronLogger{}
