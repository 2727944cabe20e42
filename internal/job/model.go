package job

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StageName identifies one external-process step within a job.
type StageName string

const (
	StageDownload  StageName = "download"
	StageTranscode StageName = "transcode"
)

// Request is one end-to-end request to acquire and convert one media item.
type Request struct {
	ID      string
	Source  string
	Format  string
	Quality string
}

// NewID returns a time-ordered identifier suitable for job requests.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewRequest builds a validated request with a fresh identifier.
func NewRequest(source, format, quality string) (Request, error) {
	req := Request{
		ID:      NewID(),
		Source:  source,
		Format:  format,
		Quality: quality,
	}
	return req.Normalized()
}

// Normalized trims and lower-cases the request fields and validates them.
func (r Request) Normalized() (Request, error) {
	r.ID = strings.TrimSpace(r.ID)
	r.Source = strings.TrimSpace(r.Source)
	r.Format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(r.Format), "."))
	r.Quality = strings.ToLower(strings.TrimSpace(r.Quality))
	if r.ID == "" {
		return Request{}, errors.New("job id is required")
	}
	if r.Source == "" {
		return Request{}, errors.New("source locator is required")
	}
	if r.Format == "" {
		return Request{}, errors.New("target format is required")
	}
	if strings.ContainsAny(r.Format, `/\ `) {
		return Request{}, fmt.Errorf("invalid target format %q", r.Format)
	}
	return r, nil
}

// Metadata is what the downloader reported about the acquired media.
type Metadata struct {
	Title     string
	Container string
	Duration  time.Duration
}

// StageResult records one stage attempt.
type StageResult struct {
	Stage      StageName
	ExitCode   int
	Files      []string
	Diagnostic []string
	Duration   time.Duration
	Metadata   Metadata
	// Skipped is set when the stage decided not to invoke its tool.
	Skipped bool
}

// PrimaryFile returns the first produced file, or "" when none exist.
func (r StageResult) PrimaryFile() string {
	if len(r.Files) == 0 {
		return ""
	}
	return r.Files[0]
}

// DiagnosticText joins captured diagnostic lines.
func (r StageResult) DiagnosticText() string {
	return strings.Join(r.Diagnostic, "\n")
}

// Outcome is the terminal state of a Request.
type Outcome struct {
	Request  Request
	State    State
	Artifact string
	// Stage and Err are set for failed and cancelled outcomes.
	Stage      StageName
	Err        *Error
	Attempts   map[StageName]int
	Results    []StageResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded builds a success outcome.
func Succeeded(req Request, artifact string) Outcome {
	return Outcome{Request: req, State: StateSucceeded, Artifact: artifact}
}

// Failed builds a failure outcome for the given stage.
func Failed(req Request, stage StageName, err *Error) Outcome {
	return Outcome{Request: req, State: StateFailed, Stage: stage, Err: err}
}

// Cancelled builds a cancellation outcome. Stage is empty when the job never started.
func Cancelled(req Request, stage StageName) Outcome {
	return Outcome{
		Request: req,
		State:   StateCancelled,
		Stage:   stage,
		Err:     &Error{Kind: KindCancelled, Stage: stage, Message: "job cancelled"},
	}
}

// Elapsed returns the wall time between start and finish.
func (o Outcome) Elapsed() time.Duration {
	if o.StartedAt.IsZero() || o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// ErrorKind returns the failure kind, or "" for successful outcomes.
func (o Outcome) ErrorKind() Kind {
	if o.Err == nil {
		return ""
	}
	return o.Err.Kind
}

// Summary renders a single human-readable line for the outcome.
func (o Outcome) Summary() string {
	switch o.State {
	case StateSucceeded:
		return o.Artifact
	case StateFailed, StateCancelled:
		if o.Err != nil {
			return o.Err.Error()
		}
		return string(o.State)
	default:
		return string(o.State)
	}
}
