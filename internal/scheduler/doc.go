// Package scheduler admits job requests into a bounded number of concurrently
// running pipelines.
//
// Requests beyond the limit wait in arrival order. The running count, the
// wait list, and the per-job cancel functions are guarded by a single mutex,
// which is the only state shared across job lifecycles. Cancelling a queued
// request removes it without starting a pipeline and delivers a Cancelled
// outcome; cancelling a running request cancels the context the pipeline
// runs under, which in turn signals the active subprocess.
package scheduler
