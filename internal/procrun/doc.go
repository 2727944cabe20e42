// Package procrun launches external tools and reports how they ended.
//
// ExecRunner starts the executable in its own process group, streams stdout
// and stderr line by line to an optional callback, keeps a bounded tail of
// diagnostic output, and enforces the per-command timeout. When the timeout
// elapses or the caller cancels, the whole group receives SIGTERM and, after
// the configured grace period, SIGKILL. Once the tool itself has exited, any
// helper still in its group is killed, so Run never returns while the
// process or anything it spawned is alive.
//
// Failures are reported as *job.Error values with kinds LaunchFailed,
// Timeout, ProcessFailed, or Cancelled so callers can classify them without
// string matching.
package procrun
