// Package pipeline runs one job from request to terminal outcome.
//
// Pipeline.Run walks the job state machine
//
//	pending -> downloading -> transcoding -> succeeded
//
// with failed reachable from either stage and cancelled from every
// non-terminal state. It acquires the job workspace on entering downloading,
// releases it on every exit path, retries stages whose failure the
// RetryPolicy classifies as transient, and moves the finished artifact to the
// output directory before the workspace is released. Run always returns
// exactly one terminal job.Outcome.
package pipeline
