package scheduler_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"swc/internal/job"
	"swc/internal/logging"
	"swc/internal/pipeline"
	"swc/internal/procrun"
	"swc/internal/scheduler"
	"swc/internal/services"
	"swc/internal/testsupport"
)

// scriptedTools stands in for both external tools. Every call blocks for
// delay (or until gate closes) and then produces the files the real tool
// would have written.
type scriptedTools struct {
	delay time.Duration
	gate  chan struct{}

	active, peak atomic.Int32
	mu           sync.Mutex
	calls        map[string]int
}

func (s *scriptedTools) Run(ctx context.Context, cmd procrun.Command) (job.StageResult, error) {
	id, _ := services.JobIDFromContext(ctx)
	s.mu.Lock()
	s.calls[id]++
	s.mu.Unlock()

	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	var elapsed <-chan time.Time
	if s.gate == nil {
		elapsed = time.After(s.delay)
	}
	select {
	case <-s.gate:
	case <-elapsed:
	case <-ctx.Done():
		return job.StageResult{Stage: cmd.Stage}, &job.Error{Kind: job.KindCancelled, Stage: cmd.Stage, Err: ctx.Err()}
	}

	switch cmd.Stage {
	case job.StageDownload:
		path := filepath.Join(cmd.Dir, id+".webm")
		if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
			return job.StageResult{Stage: cmd.Stage}, err
		}
		cmd.OnLine(procrun.Stdout, fmt.Sprintf("swc:file\t%s\twebm\t2\t%s", path, id))
	case job.StageTranscode:
		if err := os.WriteFile(cmd.Args[len(cmd.Args)-1], []byte("media"), 0o644); err != nil {
			return job.StageResult{Stage: cmd.Stage}, err
		}
	}
	return job.StageResult{Stage: cmd.Stage}, nil
}

func (s *scriptedTools) callsFor(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

func newToolPipeline(t *testing.T, tools *scriptedTools) *pipeline.Pipeline {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return pipeline.New(cfg, tools, logging.NewNop(), pipeline.WithRetryBackoff(0))
}

func TestSchedulerBoundsConcurrentToolRuns(t *testing.T) {
	const limit = 2
	const total = 12
	tools := &scriptedTools{delay: 5 * time.Millisecond, calls: make(map[string]int)}
	sink := &collectSink{}
	s := scheduler.New(context.Background(), limit, newToolPipeline(t, tools), sink, logging.NewNop())

	for i := range total {
		if err := s.Submit(request(fmt.Sprintf("job-%02d", i))); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if got := tools.peak.Load(); got > limit || got < 1 {
		t.Fatalf("observed %d concurrent tool runs, limit %d", got, limit)
	}
	byID := sink.byID()
	if len(byID) != total {
		t.Fatalf("expected %d outcomes, got %d", total, len(byID))
	}
	for id, outs := range byID {
		if len(outs) != 1 || outs[0].State != job.StateSucceeded {
			t.Fatalf("job %s: %+v", id, outs)
		}
		if n := tools.callsFor(id); n != 2 {
			t.Fatalf("job %s ran %d tool invocations, want download and transcode", id, n)
		}
	}
}

func TestSchedulerCancelledQueuedJobNeverRunsTools(t *testing.T) {
	tools := &scriptedTools{gate: make(chan struct{}), calls: make(map[string]int)}
	sink := &collectSink{}
	s := scheduler.New(context.Background(), 1, newToolPipeline(t, tools), sink, logging.NewNop())

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Submit(request(id)); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	waitFor(t, func() bool { return tools.callsFor("a") == 1 })
	if !s.Cancel("b") {
		t.Fatal("expected queued job to be cancellable")
	}
	close(tools.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if n := tools.callsFor("b"); n != 0 {
		t.Fatalf("cancelled job invoked the tools %d times", n)
	}
	byID := sink.byID()
	if outs := byID["b"]; len(outs) != 1 || outs[0].State != job.StateCancelled {
		t.Fatalf("unexpected outcome for b: %+v", outs)
	}
	for _, id := range []string{"a", "c"} {
		if outs := byID[id]; len(outs) != 1 || outs[0].State != job.StateSucceeded {
			t.Fatalf("unexpected outcome for %s: %+v", id, outs)
		}
	}
}
