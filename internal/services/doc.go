// Package services defines shared utilities consumed by the pipeline stages
// and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, attempt numbers, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that tag non-stage
//     failures (configuration, validation, delivery) consistently.
//
// Stage failures use the job.Error taxonomy instead; these markers cover the
// plumbing around the stages.
package services
