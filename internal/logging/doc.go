// Package logging assembles the slog loggers used across swc.
//
// Console output goes to stderr, either as compact human lines or as JSON,
// while a JSON copy of every record is appended to swc.log in the log
// directory. WithContext stamps job, stage, attempt and batch identifiers
// carried on a context, and WarnWithContext fills in the event type, hint
// and impact fields every warning is expected to carry.
package logging
