package download

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"swc/internal/config"
	"swc/internal/job"
	"swc/internal/logging"
	"swc/internal/procrun"
	"swc/internal/workspace"
)

// extractorPrefix matches downloader pseudo-URLs such as "ytsearch5:query".
var extractorPrefix = regexp.MustCompile(`^[a-z][a-z0-9]*search[0-9]*:`)

// partialSuffixes mark files the downloader leaves behind mid-transfer.
var partialSuffixes = []string{".part", ".ytdl", ".temp", ".tmp", ".lock"}

// Stage invokes the downloader for one job.
type Stage struct {
	runner         procrun.Runner
	binary         string
	formatSelector string
	searchPrefix   string
	extraArgs      []string
	timeout        time.Duration
	newParser      func() OutputParser
	logger         *slog.Logger
}

// Option customizes a Stage.
type Option func(*Stage)

// WithParser replaces the output parser. A fresh parser is requested per run.
func WithParser(factory func() OutputParser) Option {
	return func(s *Stage) {
		if factory != nil {
			s.newParser = factory
		}
	}
}

// WithTimeout overrides the configured per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Stage) {
		s.timeout = d
	}
}

// New constructs a download stage from configuration. cfg.Tools.Downloader
// must already be an explicit executable path.
func New(cfg *config.Config, runner procrun.Runner, logger *slog.Logger, opts ...Option) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Stage{
		runner:         runner,
		binary:         cfg.Tools.Downloader,
		formatSelector: cfg.Tools.FormatSelector,
		searchPrefix:   cfg.Tools.SearchPrefix,
		extraArgs:      append([]string(nil), cfg.Tools.DownloaderArgs...),
		timeout:        cfg.DownloadTimeout(),
		newParser:      func() OutputParser { return YTDLPParser{} },
		logger:         logging.NewComponentLogger(logger, "download"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Locator returns the argument handed to the downloader for source. Plain
// text that is not a URL becomes a search query.
func (s *Stage) Locator(source string) string {
	source = strings.TrimSpace(source)
	if isURL(source) || extractorPrefix.MatchString(source) || s.searchPrefix == "" {
		return source
	}
	return s.searchPrefix + source
}

// Args builds the downloader argument list for a request and output directory.
func (s *Stage) Args(req job.Request, dir string) []string {
	args := []string{
		"--newline",
		"--no-playlist",
		"--no-simulate",
		"-f", s.formatSelector,
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
		"--print", printTemplate,
	}
	args = append(args, s.extraArgs...)
	return append(args, "--", s.Locator(req.Source))
}

// Download runs the downloader into ws and returns the produced files.
func (s *Stage) Download(ctx context.Context, req job.Request, ws *workspace.Workspace) (job.StageResult, error) {
	logger := logging.WithContext(ctx, s.logger)
	// Leftovers from a failed attempt must not be mistaken for this one's output.
	if err := ws.Reset(); err != nil {
		return job.StageResult{Stage: job.StageDownload}, &job.Error{
			Kind:    job.KindLaunchFailed,
			Stage:   job.StageDownload,
			Binary:  s.binary,
			Message: err.Error(),
			Err:     err,
		}
	}
	parser := s.newParser()
	report := &Report{}
	sampler := logging.NewProgressSampler(10)

	cmd := procrun.Command{
		Stage:   job.StageDownload,
		Binary:  s.binary,
		Args:    s.Args(req, ws.Dir()),
		Dir:     ws.Dir(),
		Timeout: s.timeout,
		OnLine: func(stream procrun.Stream, line string) {
			parser.ParseLine(stream, line, report)
			if report.Percent > 0 && sampler.Observe(report.Percent) {
				logger.Info("download progress", logging.Float64("percent", report.Percent))
			}
		},
	}

	result, err := s.runner.Run(ctx, cmd)
	result.Stage = job.StageDownload
	if err != nil {
		if jobErr, ok := job.AsError(err); ok && report.ErrorMessage != "" && jobErr.Kind == job.KindProcessFailed {
			jobErr.Message = report.ErrorMessage
		}
		return result, err
	}

	files := existingFiles(report.Paths(), ws)
	if len(files) == 0 {
		files = scanWorkspace(ws.Dir())
	}
	if len(files) == 0 {
		return result, &job.Error{
			Kind:       job.KindDownloadIncomplete,
			Stage:      job.StageDownload,
			Binary:     s.binary,
			ExitCode:   result.ExitCode,
			Message:    "downloader exited successfully but produced no files",
			Diagnostic: result.Diagnostic,
		}
	}

	result.Files = files
	result.Metadata = job.Metadata{
		Title:     report.Title,
		Container: report.Container,
		Duration:  report.Duration,
	}
	primary := files[0]
	if result.Metadata.Container == "" {
		result.Metadata.Container = strings.ToLower(strings.TrimPrefix(filepath.Ext(primary), "."))
	}
	if result.Metadata.Title == "" {
		result.Metadata.Title = strings.TrimSuffix(filepath.Base(primary), filepath.Ext(primary))
	}
	logger.Info("download complete",
		logging.String("file", filepath.Base(primary)),
		logging.String("container", result.Metadata.Container),
		logging.Duration("elapsed", result.Duration),
		logging.String(logging.FieldEventType, "download_complete"),
	)
	return result, nil
}

func isURL(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// existingFiles keeps reported paths that exist as regular files inside ws.
func existingFiles(paths []string, ws *workspace.Workspace) []string {
	var out []string
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = ws.Path(p)
		}
		p = filepath.Clean(p)
		if !ws.Contains(p) || isPartial(p) {
			continue
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if !contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// scanWorkspace lists finished media files when the output gave no usable paths.
func scanWorkspace(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") || isPartial(name) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files
}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
