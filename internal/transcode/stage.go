package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"swc/internal/config"
	"swc/internal/job"
	"swc/internal/logging"
	"swc/internal/procrun"
	"swc/internal/workspace"
)

const outputSubdir = "transcoded"

// Stage invokes the transcoder for one job.
type Stage struct {
	runner    procrun.Runner
	binary    string
	extraArgs []string
	timeout   time.Duration
	logger    *slog.Logger
}

// New constructs a transcode stage from configuration. cfg.Tools.Transcoder
// must already be an explicit executable path.
func New(cfg *config.Config, runner procrun.Runner, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{
		runner:    runner,
		binary:    cfg.Tools.Transcoder,
		extraArgs: append([]string(nil), cfg.Tools.TranscoderArgs...),
		timeout:   cfg.TranscodeTimeout(),
		logger:    logging.NewComponentLogger(logger, "transcode"),
	}
}

// ShouldPassThrough reports whether the downloaded file already satisfies the
// request. Only an exact container match with no quality preset qualifies.
func ShouldPassThrough(req job.Request, input job.StageResult) bool {
	if strings.TrimSpace(req.Quality) != "" {
		return false
	}
	source := sourceContainer(input)
	return source != "" && source == strings.ToLower(req.Format)
}

// OutputPath returns where the transcoder writes for input and format.
func OutputPath(ws *workspace.Workspace, input, format string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(ws.Dir(), outputSubdir, stem+"."+format)
}

// Args builds the transcoder argument list.
func (s *Stage) Args(input, output, format, quality string) []string {
	profile, _ := Lookup(format)
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", input}
	if profile.AudioOnly {
		args = append(args, "-vn")
	}
	args = append(args, profile.Codec...)
	args = append(args, profile.QualityArgs(quality)...)
	args = append(args, s.extraArgs...)
	return append(args, "-progress", "pipe:1", "-nostats", output)
}

// Transcode converts the downloaded file to req.Format inside ws.
func (s *Stage) Transcode(ctx context.Context, req job.Request, input job.StageResult, ws *workspace.Workspace) (job.StageResult, error) {
	logger := logging.WithContext(ctx, s.logger)
	source := input.PrimaryFile()
	if source == "" {
		return job.StageResult{Stage: job.StageTranscode}, &job.Error{
			Kind:    job.KindProcessFailed,
			Stage:   job.StageTranscode,
			Binary:  s.binary,
			Message: "no input file from download stage",
		}
	}

	if ShouldPassThrough(req, input) {
		logger.Info("transcode skipped; source already in target format",
			logging.String("format", req.Format),
			logging.String(logging.FieldEventType, "transcode_skipped"),
		)
		return job.StageResult{
			Stage:    job.StageTranscode,
			Files:    []string{source},
			Metadata: input.Metadata,
			Skipped:  true,
		}, nil
	}

	if _, known := Lookup(req.Format); !known {
		logger.Warn("no profile for target format; transcoder will infer codecs",
			logging.String("format", req.Format),
			logging.String(logging.FieldEventType, "transcode_profile_missing"),
			logging.String(logging.FieldErrorHint, "use one of "+strings.Join(Formats(), ", ")),
			logging.String(logging.FieldImpact, "output codec chosen by the transcoder"),
		)
	}

	output := OutputPath(ws, source, req.Format)
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return job.StageResult{Stage: job.StageTranscode}, &job.Error{
			Kind:    job.KindLaunchFailed,
			Stage:   job.StageTranscode,
			Binary:  s.binary,
			Message: fmt.Sprintf("prepare output directory: %v", err),
			Err:     err,
		}
	}

	tracker := &progressTracker{total: input.Metadata.Duration}
	sampler := logging.NewProgressSampler(10)
	cmd := procrun.Command{
		Stage:   job.StageTranscode,
		Binary:  s.binary,
		Args:    s.Args(source, output, req.Format, req.Quality),
		Dir:     ws.Dir(),
		Timeout: s.timeout,
		OnLine: func(stream procrun.Stream, line string) {
			if stream != procrun.Stdout || !tracker.observe(line) {
				return
			}
			if pct := tracker.percent(); sampler.Observe(pct) {
				logger.Info("transcode progress", logging.Float64("percent", pct))
			}
		},
	}

	result, err := s.runner.Run(ctx, cmd)
	result.Stage = job.StageTranscode
	if err != nil {
		return result, err
	}

	info, statErr := os.Stat(output)
	if statErr != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return result, &job.Error{
			Kind:       job.KindProcessFailed,
			Stage:      job.StageTranscode,
			Binary:     s.binary,
			ExitCode:   result.ExitCode,
			Message:    "transcoder exited successfully but wrote no output",
			Diagnostic: result.Diagnostic,
			Err:        statErr,
		}
	}

	result.Files = []string{output}
	result.Metadata = input.Metadata
	result.Metadata.Container = req.Format
	logger.Info("transcode complete",
		logging.String("file", filepath.Base(output)),
		logging.Int64("bytes", info.Size()),
		logging.Duration("elapsed", result.Duration),
		logging.String(logging.FieldEventType, "transcode_complete"),
	)
	return result, nil
}

func sourceContainer(input job.StageResult) string {
	if c := strings.ToLower(strings.TrimSpace(input.Metadata.Container)); c != "" {
		return c
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(input.PrimaryFile()), "."))
}
