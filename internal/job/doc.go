// Package job defines the data model shared by every layer of the swc
// pipeline: job requests, per-stage results, terminal outcomes, the job
// state machine, and the stage error taxonomy.
//
// Values in this package are plain data. Requests are immutable once
// accepted, StageResults belong to the pipeline that produced them, and an
// Outcome is created exactly once per request.
package job
