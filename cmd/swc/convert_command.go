package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"swc/internal/history"
	"swc/internal/job"
	"swc/internal/logging"
	"swc/internal/notifications"
	"swc/internal/pipeline"
	"swc/internal/playlist"
	"swc/internal/preflight"
	"swc/internal/procrun"
	"swc/internal/results"
	"swc/internal/scheduler"
	"swc/internal/services"
	"swc/internal/textutil"
	"swc/internal/transcode"
	"swc/internal/workspace"
)

type convertOptions struct {
	format         string
	quality        string
	concurrency    int
	expandPlaylist bool
	jsonOutput     bool
	overwrite      bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert <source>...",
		Short: "Download each source and convert it to the target format",
		Long: `Download each source and convert it to the target format.

A source is a media URL or a plain search query; queries are handed to the
downloader with the configured search prefix. Each source becomes its own job.
The exit status is 0 when every job succeeded, 1 when any job failed and 2
when jobs were cancelled.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, ctx, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Target format (default from jobs.default_format)")
	cmd.Flags().StringVarP(&opts.quality, "quality", "q", "", "Quality preset (best, high, medium, low, voice, stereo48k)")
	cmd.Flags().IntVarP(&opts.concurrency, "jobs", "j", 0, "Maximum concurrent jobs (default from jobs.max_concurrency)")
	cmd.Flags().BoolVar(&opts.expandPlaylist, "expand-playlist", false, "Submit every entry of a playlist URL as its own job")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print one JSON object per outcome")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace existing artifacts instead of adding a numeric suffix")
	return cmd
}

func runConvert(cmd *cobra.Command, ctx *commandContext, opts convertOptions, sources []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	format := strings.TrimSpace(opts.format)
	if format == "" {
		format = cfg.Jobs.DefaultFormat
	}
	if err := transcode.Validate(format, opts.quality); err != nil {
		return services.Wrap(services.ErrValidation, "convert", "", err.Error(), nil)
	}
	if opts.concurrency < 0 {
		return services.Wrap(services.ErrValidation, "convert", "", "--jobs must be positive", nil)
	}
	if opts.concurrency > 0 {
		cfg.Jobs.MaxConcurrency = opts.concurrency
	}
	if opts.overwrite {
		cfg.Jobs.OverwriteExisting = true
	}
	if err := cfg.ResolveTools(); err != nil {
		return fmt.Errorf("resolve tools: %w (run `swc doctor`)", err)
	}
	checks := preflight.RunAll(cfg)
	for _, r := range checks {
		if r.Advisory && !r.Passed {
			logging.WarnWithContext(logger, "preflight warning", "preflight_warning",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldImpact, "jobs may fail while writing output"),
			)
		}
	}
	if failed := preflight.Failed(checks); len(failed) > 0 {
		for _, r := range failed {
			fmt.Fprintf(cmd.ErrOrStderr(), "preflight %s: %s\n", r.Name, r.Detail)
		}
		return fmt.Errorf("preflight failed (%d checks)", len(failed))
	}

	signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workspaces := workspace.NewManager(cfg.Paths.WorkspaceDir, logger)
	if sweep := workspaces.SweepOrphans(signalCtx); len(sweep.Removed) > 0 {
		logger.Info("removed orphaned workspaces",
			logging.Int("count", len(sweep.Removed)),
			logging.String(logging.FieldEventType, "workspace_orphans_removed"),
		)
	}

	requests, err := buildRequests(signalCtx, logger, sources, format, opts)
	if err != nil {
		return err
	}

	sinkOpts := []results.Option{results.WithLogger(logger)}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "outcomes of this run are not recorded"),
				logging.String(logging.FieldErrorHint, "delete or clear the history database"),
			)
		} else {
			defer store.Close()
			sinkOpts = append(sinkOpts, results.WithObserver(store))
		}
	}
	if notifier := notifications.NewService(cfg); notifications.Enabled(notifier) {
		sinkOpts = append(sinkOpts, results.WithObserver(notifications.NewObserver(cfg, notifier)))
	}
	sink := results.New(context.WithoutCancel(signalCtx), sinkOpts...)

	runner := procrun.New(
		procrun.WithDiagnosticLines(cfg.Jobs.DiagnosticLines),
		procrun.WithKillGrace(cfg.KillGrace()),
		procrun.WithLogger(logger),
	)
	pipe := pipeline.New(cfg, runner, logger, pipeline.WithWorkspaces(workspaces))
	batchCtx := services.WithBatchID(signalCtx, job.NewID())
	logging.WithContext(batchCtx, logger).Info("batch started",
		logging.Int("jobs", len(requests)),
		logging.Int("max_concurrency", cfg.Jobs.MaxConcurrency),
		logging.Bool("expand_playlist", opts.expandPlaylist),
		logging.String(logging.FieldEventType, "batch_started"),
	)
	sched := scheduler.New(batchCtx, cfg.Jobs.MaxConcurrency, pipe, sink, logger)

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printOutcomes(cmd.OutOrStdout(), sink, opts.jsonOutput)
	}()

	submitAll(sched, sink, requests, logger)
	sched.Close()

	go func() {
		<-signalCtx.Done()
		if n := sched.CancelAll(); n > 0 {
			logger.Info("interrupt received, cancelling jobs", logging.Int("jobs", n))
		}
	}()

	_ = sched.Wait(context.Background())
	sink.Close()
	<-printed

	if !opts.jsonOutput {
		renderConvertSummary(cmd.OutOrStdout(), sink)
	}
	if code := sink.ExitCode(); code != 0 {
		return &exitCodeError{code: code}
	}
	return nil
}

type submitter interface {
	Submit(req job.Request) error
}

// submitAll hands every request to sched. A request the scheduler refuses
// still reaches the sink as a Failed outcome so the exit status covers it.
func submitAll(sched submitter, sink scheduler.Sink, requests []job.Request, logger *slog.Logger) int {
	rejected := 0
	for _, req := range requests {
		err := sched.Submit(req)
		if err == nil {
			continue
		}
		rejected++
		logging.ErrorWithContext(logger, "submit failed", "job_submit_failed",
			logging.String(logging.FieldJobID, req.ID),
			logging.Error(err),
		)
		now := time.Now()
		outcome := job.Failed(req, "", &job.Error{
			Kind:    job.KindRejected,
			Message: "not scheduled: " + err.Error(),
			Err:     err,
		})
		outcome.StartedAt, outcome.FinishedAt = now, now
		sink.Deliver(outcome)
	}
	return rejected
}

func buildRequests(ctx context.Context, logger *slog.Logger, sources []string, format string, opts convertOptions) ([]job.Request, error) {
	locators := make([]string, 0, len(sources))
	if opts.expandPlaylist {
		expander := playlist.New(logger)
		for _, source := range sources {
			expanded, err := expander.Expand(ctx, source)
			if err != nil {
				return nil, err
			}
			locators = append(locators, expanded...)
		}
	} else {
		locators = append(locators, sources...)
	}

	requests := make([]job.Request, 0, len(locators))
	for _, locator := range locators {
		req, err := job.NewRequest(locator, format, opts.quality)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", locator, err)
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func printOutcomes(out io.Writer, sink *results.Sink, jsonOutput bool) {
	printer := newStatusPrinter(out)
	for {
		outcome, err := sink.Next(context.Background())
		if err != nil {
			return
		}
		if jsonOutput {
			_ = writeJSONLine(out, newOutcomeJSON(outcome))
			continue
		}
		printer.outcome(outcome)
	}
}

func renderConvertSummary(out io.Writer, sink *results.Sink) {
	outcomes := sink.Outcomes()
	if len(outcomes) == 0 {
		return
	}
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		detail := o.Artifact
		if o.State != job.StateSucceeded && o.Err != nil {
			detail = fmt.Sprintf("%s: %s", textutil.Label(string(o.Err.Kind)), o.Err.Message)
		}
		rows = append(rows, []string{
			o.Request.Source,
			string(o.State),
			string(o.Stage),
			formatElapsed(o.Elapsed()),
			detail,
		})
	}
	columns := []tableColumn{
		{Header: "Source", MaxWidth: 40},
		{Header: "State"},
		{Header: "Stage"},
		{Header: "Elapsed", Align: text.AlignRight},
		{Header: "Result", MaxWidth: 60},
	}
	summary := sink.Summary()
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(columns, rows,
		fmt.Sprintf("%d jobs", summary.Total), "", "", formatElapsed(summary.Elapsed), ""))
	fmt.Fprintf(out, "%d succeeded, %d failed, %d cancelled\n", summary.Succeeded, summary.Failed, summary.Cancelled)
}
