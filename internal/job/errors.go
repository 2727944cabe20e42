package job

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a stage failure.
type Kind string

const (
	KindLaunchFailed       Kind = "launch_failed"
	KindTimeout            Kind = "timeout"
	KindProcessFailed      Kind = "process_failed"
	KindDownloadIncomplete Kind = "download_incomplete"
	KindCancelled          Kind = "cancelled"
	// KindDeliveryFailed means the artifact could not be moved to its destination.
	KindDeliveryFailed Kind = "delivery_failed"
	// KindRejected means the scheduler refused the request, so it never ran.
	KindRejected Kind = "rejected"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrLaunchFailed       = errors.New("launch failed")
	ErrTimeout            = errors.New("timeout")
	ErrProcessFailed      = errors.New("process failed")
	ErrDownloadIncomplete = errors.New("download incomplete")
	ErrCancelled          = errors.New("cancelled")
	ErrDeliveryFailed     = errors.New("delivery failed")
	ErrRejected           = errors.New("rejected")
)

var kindSentinels = map[Kind]error{
	KindLaunchFailed:       ErrLaunchFailed,
	KindTimeout:            ErrTimeout,
	KindProcessFailed:      ErrProcessFailed,
	KindDownloadIncomplete: ErrDownloadIncomplete,
	KindCancelled:          ErrCancelled,
	KindDeliveryFailed:     ErrDeliveryFailed,
	KindRejected:           ErrRejected,
}

// Error is a stage failure with enough context to surface verbatim.
type Error struct {
	Kind       Kind
	Stage      StageName
	Binary     string
	ExitCode   int
	Signal     string
	Message    string
	Diagnostic []string
	Err        error
}

// Error formats the failure for logs and CLI output.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Stage != "" {
		b.WriteString(string(e.Stage))
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	switch {
	case e.Signal != "":
		fmt.Fprintf(&b, " (signal=%s)", e.Signal)
	case e.Kind == KindProcessFailed:
		fmt.Fprintf(&b, " (exit=%d)", e.ExitCode)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// DiagnosticText joins the captured diagnostic tail.
func (e *Error) DiagnosticText() string {
	if e == nil {
		return ""
	}
	return strings.Join(e.Diagnostic, "\n")
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var jobErr *Error
	if errors.As(err, &jobErr) {
		return jobErr, true
	}
	return nil, false
}

// KindOf returns the failure kind carried by err, or "" when none.
func KindOf(err error) Kind {
	if jobErr, ok := AsError(err); ok {
		return jobErr.Kind
	}
	return ""
}
