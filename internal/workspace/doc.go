// Package workspace manages job-scoped scratch directories.
//
// Each job acquires a fresh directory under the configured workspace root
// together with an advisory file lock (gofrs/flock) that marks the directory
// as owned by a live process. Release removes the directory and the lock on
// every exit path. SweepOrphans removes directories whose lock can be taken,
// which covers workspaces left behind when a previous process died before it
// could release them.
package workspace
