package services

import (
	"errors"
	"strings"
)

// Markers classify non-stage failures. Stage failures carry a job.Error
// instead.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

type markedError struct {
	marker error
	detail string
	cause  error
}

func (e *markedError) Error() string {
	msg := e.marker.Error() + ": " + e.detail
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *markedError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.marker}
	}
	return []error{e.marker, e.cause}
}

// Wrap tags err with marker and a "component: operation: message" detail.
// errors.Is matches both the marker and err. A nil marker means
// ErrTransient.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	var parts []string
	for _, p := range []string{component, operation, message} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	detail := strings.Join(parts, ": ")
	if detail == "" {
		detail = "service failure"
	}
	return &markedError{marker: marker, detail: detail, cause: err}
}

// IsUserFixable reports whether err points at configuration or input the
// user has to correct rather than a runtime condition.
func IsUserFixable(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConfiguration) || errors.Is(err, ErrNotFound)
}
