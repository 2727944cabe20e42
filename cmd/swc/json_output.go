package main

import (
	"encoding/json"
	"io"
	"time"

	"swc/internal/job"
)

// outcomeJSON is the machine-readable view of one outcome.
type outcomeJSON struct {
	JobID     string         `json:"job_id"`
	Source    string         `json:"source"`
	Format    string         `json:"format"`
	Quality   string         `json:"quality,omitempty"`
	State     string         `json:"state"`
	Artifact  string         `json:"artifact,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Error     string         `json:"error,omitempty"`
	ExitCode  int            `json:"exit_code,omitempty"`
	Signal    string         `json:"signal,omitempty"`
	Attempts  map[string]int `json:"attempts,omitempty"`
	ElapsedMS int64          `json:"elapsed_ms"`
}

func newOutcomeJSON(o job.Outcome) outcomeJSON {
	out := outcomeJSON{
		JobID:     o.Request.ID,
		Source:    o.Request.Source,
		Format:    o.Request.Format,
		Quality:   o.Request.Quality,
		State:     string(o.State),
		Artifact:  o.Artifact,
		Stage:     string(o.Stage),
		ElapsedMS: o.Elapsed().Milliseconds(),
	}
	if o.Err != nil {
		out.ErrorKind = string(o.Err.Kind)
		out.Error = o.Err.Message
		out.ExitCode = o.Err.ExitCode
		out.Signal = o.Err.Signal
	}
	if len(o.Attempts) > 0 {
		out.Attempts = make(map[string]int, len(o.Attempts))
		for stage, n := range o.Attempts {
			out.Attempts[string(stage)] = n
		}
	}
	return out
}

// writeJSONLine encodes v as a single JSON line.
func writeJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
