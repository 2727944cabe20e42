package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"swc/internal/config"
	"swc/internal/download"
	"swc/internal/job"
	"swc/internal/logging"
	"swc/internal/procrun"
	"swc/internal/services"
	"swc/internal/transcode"
	"swc/internal/workspace"
)

const defaultRetryBackoff = time.Second

// Downloader acquires media into a workspace.
type Downloader interface {
	Download(ctx context.Context, req job.Request, ws *workspace.Workspace) (job.StageResult, error)
}

// Transcoder converts the downloaded media inside the same workspace.
type Transcoder interface {
	Transcode(ctx context.Context, req job.Request, input job.StageResult, ws *workspace.Workspace) (job.StageResult, error)
}

// Workspaces hands out job-scoped directories.
type Workspaces interface {
	Acquire(jobID string) (*workspace.Workspace, error)
}

// StateObserver is told about every state change of every job.
type StateObserver func(req job.Request, from, to job.State)

// Pipeline sequences the download and transcode stages for single jobs. One
// Pipeline value serves any number of concurrent Run calls.
type Pipeline struct {
	downloader Downloader
	transcoder Transcoder
	workspaces Workspaces
	policy     RetryPolicy
	backoff    time.Duration
	outputDir  string
	overwrite  bool
	observer   StateObserver
	logger     *slog.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithDownloader replaces the download stage.
func WithDownloader(d Downloader) Option {
	return func(p *Pipeline) { p.downloader = d }
}

// WithTranscoder replaces the transcode stage.
func WithTranscoder(t Transcoder) Option {
	return func(p *Pipeline) { p.transcoder = t }
}

// WithWorkspaces replaces the workspace manager.
func WithWorkspaces(w Workspaces) Option {
	return func(p *Pipeline) { p.workspaces = w }
}

// WithRetryPolicy replaces the policy derived from configuration.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithRetryBackoff sets the pause between attempts of the same stage.
func WithRetryBackoff(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.backoff = d
		}
	}
}

// WithStateObserver registers a callback for job state changes.
func WithStateObserver(observer StateObserver) Option {
	return func(p *Pipeline) { p.observer = observer }
}

// New wires the default stages around runner using cfg.
func New(cfg *config.Config, runner procrun.Runner, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{
		downloader: download.New(cfg, runner, logger),
		transcoder: transcode.New(cfg, runner, logger),
		workspaces: workspace.NewManager(cfg.Paths.WorkspaceDir, logger),
		policy:     PolicyFromConfig(cfg),
		backoff:    defaultRetryBackoff,
		outputDir:  cfg.Paths.OutputDir,
		overwrite:  cfg.Jobs.OverwriteExisting,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run carries the per-job bookkeeping for one Run call.
type run struct {
	req      job.Request
	tracker  *job.Tracker
	outcome  job.Outcome
	logger   *slog.Logger
	attempts map[job.StageName]int
}

// Run executes req to a terminal state and returns its single outcome.
func (p *Pipeline) Run(ctx context.Context, req job.Request) job.Outcome {
	ctx = services.WithJobID(ctx, req.ID)
	r := &run{
		req:      req,
		logger:   logging.WithContext(ctx, p.logger),
		attempts: make(map[job.StageName]int),
	}
	r.outcome = job.Outcome{Request: req, StartedAt: time.Now()}
	r.tracker = job.NewTracker(func(from, to job.State) {
		r.logger.Debug("job state changed",
			logging.String("from", string(from)),
			logging.String("to", string(to)),
			logging.String(logging.FieldEventType, "job_state"),
		)
		if p.observer != nil {
			p.observer(req, from, to)
		}
	})

	if ctx.Err() != nil {
		return p.finish(r, job.Cancelled(req, ""))
	}

	r.advance(job.StateDownloading)
	ws, err := p.workspaces.Acquire(req.ID)
	if err != nil {
		return p.finish(r, job.Failed(req, job.StageDownload, &job.Error{
			Kind:    job.KindLaunchFailed,
			Stage:   job.StageDownload,
			Message: "acquire workspace: " + err.Error(),
			Err:     services.Wrap(services.ErrConfiguration, "pipeline", "acquire workspace", "", err),
		}))
	}
	defer func() {
		if err := ws.Release(); err != nil {
			r.logger.Warn("workspace not fully released",
				logging.Error(err),
				logging.String(logging.FieldEventType, "workspace_release_failed"),
				logging.String(logging.FieldErrorHint, "run swc clean"),
				logging.String(logging.FieldImpact, "scratch files remain on disk"),
			)
		}
	}()

	downloaded, err := p.runStage(ctx, r, job.StageDownload, func(ctx context.Context) (job.StageResult, error) {
		return p.downloader.Download(ctx, req, ws)
	})
	if err != nil {
		return p.finish(r, p.failure(req, job.StageDownload, err))
	}
	if len(downloaded.Files) == 0 {
		return p.finish(r, job.Failed(req, job.StageDownload, &job.Error{
			Kind:    job.KindDownloadIncomplete,
			Stage:   job.StageDownload,
			Message: "download stage reported no files",
		}))
	}
	if ctx.Err() != nil {
		return p.finish(r, job.Cancelled(req, job.StageDownload))
	}

	r.advance(job.StateTranscoding)
	converted, err := p.runStage(ctx, r, job.StageTranscode, func(ctx context.Context) (job.StageResult, error) {
		return p.transcoder.Transcode(ctx, req, downloaded, ws)
	})
	if err != nil {
		return p.finish(r, p.failure(req, job.StageTranscode, err))
	}
	if ctx.Err() != nil {
		return p.finish(r, job.Cancelled(req, job.StageTranscode))
	}

	artifact, err := p.deliver(req, converted.PrimaryFile(), downloaded.Metadata)
	if err != nil {
		return p.finish(r, job.Failed(req, job.StageTranscode, &job.Error{
			Kind:    job.KindDeliveryFailed,
			Stage:   job.StageTranscode,
			Message: err.Error(),
			Err:     services.Wrap(services.ErrExternalTool, "pipeline", "deliver artifact", p.outputDir, err),
		}))
	}
	return p.finish(r, job.Succeeded(req, artifact))
}

// runStage invokes fn until it succeeds, fails terminally, or the retry
// budget is spent. Each attempt sees identical inputs.
func (p *Pipeline) runStage(ctx context.Context, r *run, stage job.StageName, fn func(context.Context) (job.StageResult, error)) (job.StageResult, error) {
	for attempt := 1; ; attempt++ {
		r.attempts[stage] = attempt
		stageCtx := services.WithAttempt(services.WithStage(ctx, string(stage)), attempt)
		logger := logging.WithContext(stageCtx, p.logger)
		logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

		result, err := fn(stageCtx)
		result.Stage = stage
		r.outcome.Results = append(r.outcome.Results, result)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return result, cancellationError(stage, err, ctx.Err())
		}
		if attempt > p.policy.Limit || !p.policy.Retryable(stage, err) {
			return result, err
		}

		logging.WarnWithContext(logger, "stage failed; retrying", "stage_retry",
			logging.Error(err),
			logging.Int("next_attempt", attempt+1),
			logging.String(logging.FieldErrorHint, "transient failure, the same command runs again"),
			logging.String(logging.FieldImpact, "job takes longer"),
		)
		if p.backoff > 0 {
			timer := time.NewTimer(p.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, cancellationError(stage, err, ctx.Err())
			case <-timer.C:
			}
		}
	}
}

// failure converts a stage error into a terminal outcome.
func (p *Pipeline) failure(req job.Request, stage job.StageName, err error) job.Outcome {
	jobErr, ok := job.AsError(err)
	if !ok {
		jobErr = &job.Error{Kind: job.KindProcessFailed, Stage: stage, Message: err.Error(), Err: err}
	}
	if jobErr.Stage == "" {
		jobErr.Stage = stage
	}
	if jobErr.Kind == job.KindCancelled {
		outcome := job.Cancelled(req, stage)
		outcome.Err = jobErr
		return outcome
	}
	return job.Failed(req, stage, jobErr)
}

// finish stamps bookkeeping onto the outcome and moves the tracker into the
// matching terminal state.
func (p *Pipeline) finish(r *run, outcome job.Outcome) job.Outcome {
	outcome.StartedAt = r.outcome.StartedAt
	outcome.FinishedAt = time.Now()
	outcome.Results = r.outcome.Results
	outcome.Attempts = r.attempts
	r.advance(outcome.State)

	attrs := []logging.Attr{
		logging.String("state", string(outcome.State)),
		logging.Duration("elapsed", outcome.Elapsed()),
		logging.String(logging.FieldEventType, "job_outcome"),
	}
	switch outcome.State {
	case job.StateSucceeded:
		r.logger.Info("job succeeded", logging.Args(append(attrs, logging.String("artifact", outcome.Artifact))...)...)
	case job.StateCancelled:
		r.logger.Info("job cancelled", logging.Args(append(attrs, logging.String(logging.FieldStage, string(outcome.Stage)))...)...)
	default:
		attrs = append(attrs,
			logging.String(logging.FieldStage, string(outcome.Stage)),
			logging.String("kind", string(outcome.ErrorKind())),
			logging.Error(outcome.Err),
			logging.String(logging.FieldErrorHint, hintFor(outcome.ErrorKind())),
		)
		if diag := outcome.Err.DiagnosticText(); diag != "" {
			attrs = append(attrs, logging.String("diagnostic", diag))
		}
		logging.ErrorWithContext(r.logger, "job failed", "job_failed", attrs...)
	}
	return outcome
}

func (r *run) advance(to job.State) {
	if r.tracker.State() == to {
		return
	}
	if err := r.tracker.Transition(to); err != nil {
		r.logger.Error("job state machine violated", logging.Error(err))
	}
}

func cancellationError(stage job.StageName, cause, ctxErr error) error {
	if job.KindOf(cause) == job.KindCancelled {
		return cause
	}
	return &job.Error{
		Kind:    job.KindCancelled,
		Stage:   stage,
		Message: "job cancelled",
		Err:     errors.Join(ctxErr, cause),
	}
}

func hintFor(kind job.Kind) string {
	switch kind {
	case job.KindLaunchFailed:
		return "check tool paths with swc doctor"
	case job.KindTimeout:
		return "raise jobs.download_timeout or jobs.transcode_timeout"
	case job.KindDownloadIncomplete:
		return "the downloader reported success without a file; check the source"
	case job.KindDeliveryFailed:
		return "check paths.output_dir permissions and free space"
	default:
		return "see diagnostic output"
	}
}
