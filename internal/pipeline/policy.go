package pipeline

import (
	"strings"

	"swc/internal/config"
	"swc/internal/job"
)

// RetryPolicy decides which stage failures are worth another attempt.
type RetryPolicy struct {
	// Limit is the number of extra attempts per stage.
	Limit int
	// TransientExitCodes are downloader exit statuses treated as transient.
	TransientExitCodes map[int]struct{}
	// TransientHints are lower-case phrases that mark downloader errors as
	// network related regardless of exit status.
	TransientHints []string
}

// PolicyFromConfig builds the retry policy from the jobs section.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	codes := make(map[int]struct{}, len(cfg.Jobs.TransientExitCodes))
	for _, code := range cfg.Jobs.TransientExitCodes {
		codes[code] = struct{}{}
	}
	return RetryPolicy{
		Limit:              cfg.Jobs.RetryLimit,
		TransientExitCodes: codes,
		TransientHints:     append([]string(nil), cfg.Jobs.TransientHints...),
	}
}

// Retryable reports whether err from stage is transient. LaunchFailed,
// DownloadIncomplete, and Cancelled point at defects or intent rather than
// flaky conditions and are never retried.
func (p RetryPolicy) Retryable(stage job.StageName, err error) bool {
	jobErr, ok := job.AsError(err)
	if !ok {
		return false
	}
	switch jobErr.Kind {
	case job.KindTimeout:
		return true
	case job.KindProcessFailed:
		if stage != job.StageDownload || jobErr.Signal != "" {
			return false
		}
		if _, ok := p.TransientExitCodes[jobErr.ExitCode]; ok {
			return true
		}
		return p.matchesHint(jobErr)
	default:
		return false
	}
}

func (p RetryPolicy) matchesHint(jobErr *job.Error) bool {
	if len(p.TransientHints) == 0 {
		return false
	}
	text := strings.ToLower(jobErr.Message + "\n" + jobErr.DiagnosticText())
	for _, hint := range p.TransientHints {
		if hint != "" && strings.Contains(text, hint) {
			return true
		}
	}
	return false
}
