// Package notifications pushes job events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to check whether notifications are enabled. Observer
// adapts a Service to the result sink: it publishes failed jobs as they are
// delivered and a single summary when the batch closes, each gated by its
// config toggle.
package notifications
