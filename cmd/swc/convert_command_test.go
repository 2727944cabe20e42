package main

import (
	"context"
	"errors"
	"testing"

	"swc/internal/job"
	"swc/internal/logging"
	"swc/internal/results"
	"swc/internal/scheduler"
)

func TestSubmitAllReportsRejectedRequests(t *testing.T) {
	sink := results.New(context.Background())
	t.Cleanup(sink.Close)
	sched := scheduler.New(context.Background(), 1, nil, sink, logging.NewNop())
	sched.Close()

	requests := []job.Request{
		{ID: "a", Source: "src-a", Format: "mp3"},
		{ID: "b", Source: "src-b", Format: "mp3"},
	}
	if n := submitAll(sched, sink, requests, logging.NewNop()); n != len(requests) {
		t.Fatalf("expected %d rejections, got %d", len(requests), n)
	}

	for _, req := range requests {
		outcome, ok := sink.Outcome(req.ID)
		if !ok {
			t.Fatalf("no outcome for rejected request %s", req.ID)
		}
		if outcome.State != job.StateFailed || outcome.ErrorKind() != job.KindRejected {
			t.Fatalf("unexpected outcome %+v", outcome)
		}
		if !errors.Is(outcome.Err, scheduler.ErrClosed) {
			t.Fatalf("expected scheduler error in chain, got %v", outcome.Err)
		}
	}
	if code := sink.ExitCode(); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}
