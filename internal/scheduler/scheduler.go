package scheduler

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"swc/internal/job"
	"swc/internal/logging"
	"swc/internal/services"
)

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("scheduler closed")
	// ErrDuplicateJob is returned when a request id was already submitted.
	ErrDuplicateJob = errors.New("duplicate job id")
)

// Pipeline runs a single job to its terminal outcome.
type Pipeline interface {
	Run(ctx context.Context, req job.Request) job.Outcome
}

// Sink receives terminal outcomes. Deliver must not block.
type Sink interface {
	Deliver(outcome job.Outcome)
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Limit       int
	Submitted   int
	Queued      int
	Running     int
	Completed   int
	PeakRunning int
}

// Scheduler bounds concurrent pipelines and admits waiting jobs FIFO.
type Scheduler struct {
	pipeline Pipeline
	sink     Sink
	limit    int
	baseCtx  context.Context
	logger   *slog.Logger

	mu        sync.Mutex
	queue     *list.List
	queued    map[string]*list.Element
	running   map[string]context.CancelFunc
	seen      map[string]struct{}
	closed    bool
	submitted int
	completed int
	peak      int

	wg sync.WaitGroup
}

// New constructs a scheduler. Cancelling ctx cancels every running job and
// every job admitted afterwards.
func New(ctx context.Context, limit int, pipeline Pipeline, sink Sink, logger *slog.Logger) *Scheduler {
	if limit < 1 {
		limit = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		pipeline: pipeline,
		sink:     sink,
		limit:    limit,
		baseCtx:  ctx,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		queue:    list.New(),
		queued:   make(map[string]*list.Element),
		running:  make(map[string]context.CancelFunc),
		seen:     make(map[string]struct{}),
	}
}

// Submit enqueues req and starts it immediately if a slot is free.
func (s *Scheduler) Submit(req job.Request) error {
	if req.ID == "" {
		return services.Wrap(services.ErrValidation, "scheduler", "submit", "job id is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, dup := s.seen[req.ID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, req.ID)
	}
	s.seen[req.ID] = struct{}{}
	s.submitted++
	s.wg.Add(1)
	s.queued[req.ID] = s.queue.PushBack(req)

	s.logger.Debug("job queued",
		logging.String(logging.FieldJobID, req.ID),
		logging.String("source", req.Source),
		logging.Int("queue_depth", s.queue.Len()),
		logging.String(logging.FieldEventType, "job_queued"),
	)
	s.dispatchLocked()
	return nil
}

// dispatchLocked starts queued jobs while slots are free. Callers hold s.mu.
func (s *Scheduler) dispatchLocked() {
	for len(s.running) < s.limit && s.queue.Len() > 0 {
		front := s.queue.Front()
		req := s.queue.Remove(front).(job.Request)
		delete(s.queued, req.ID)

		ctx, cancel := context.WithCancel(s.baseCtx)
		s.running[req.ID] = cancel
		if len(s.running) > s.peak {
			s.peak = len(s.running)
		}
		s.logger.Debug("job admitted",
			logging.String(logging.FieldJobID, req.ID),
			logging.Int("running", len(s.running)),
			logging.String(logging.FieldEventType, "job_admitted"),
		)
		go s.execute(ctx, cancel, req)
	}
}

func (s *Scheduler) execute(ctx context.Context, cancel context.CancelFunc, req job.Request) {
	defer s.wg.Done()
	outcome := s.pipeline.Run(ctx, req)
	cancel()

	s.sink.Deliver(outcome)

	s.mu.Lock()
	delete(s.running, req.ID)
	s.completed++
	s.dispatchLocked()
	s.mu.Unlock()
}

// Cancel stops the job with id. A queued job is removed without ever being
// started and reported as Cancelled; a running job has its context
// cancelled. It returns false for unknown or finished jobs.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	if elem, ok := s.queued[id]; ok {
		req := s.queue.Remove(elem).(job.Request)
		delete(s.queued, id)
		s.completed++
		s.mu.Unlock()

		s.deliverUnstarted(req)
		s.logger.Info("queued job cancelled",
			logging.String(logging.FieldJobID, id),
			logging.String(logging.FieldEventType, "job_cancelled"),
		)
		return true
	}
	cancel, running := s.running[id]
	s.mu.Unlock()
	if !running {
		return false
	}
	cancel()
	s.logger.Info("running job cancellation requested",
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldEventType, "job_cancel_requested"),
	)
	return true
}

// CancelAll cancels every queued and running job and stops accepting new ones.
// The wait list is drained before running jobs are signalled so that no
// queued job is admitted into a freed slot.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	s.closed = true
	drained := make([]job.Request, 0, s.queue.Len())
	for e := s.queue.Front(); e != nil; e = s.queue.Front() {
		req := s.queue.Remove(e).(job.Request)
		delete(s.queued, req.ID)
		drained = append(drained, req)
	}
	s.completed += len(drained)
	cancels := make([]context.CancelFunc, 0, len(s.running))
	for _, cancel := range s.running {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	for _, req := range drained {
		s.deliverUnstarted(req)
	}
	for _, cancel := range cancels {
		cancel()
	}
	if total := len(drained) + len(cancels); total > 0 {
		s.logger.Info("all jobs cancelled",
			logging.Int("queued", len(drained)),
			logging.Int("running", len(cancels)),
			logging.String(logging.FieldEventType, "jobs_cancelled"),
		)
	}
	return len(drained) + len(cancels)
}

// deliverUnstarted reports a job removed from the wait list as Cancelled
// with no stage.
func (s *Scheduler) deliverUnstarted(req job.Request) {
	now := time.Now()
	outcome := job.Cancelled(req, "")
	outcome.StartedAt = now
	outcome.FinishedAt = now
	s.sink.Deliver(outcome)
	s.wg.Done()
}

// Close stops accepting submissions. Already accepted jobs still run.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Wait blocks until every accepted job has delivered its outcome or ctx ends.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Limit:       s.limit,
		Submitted:   s.submitted,
		Queued:      s.queue.Len(),
		Running:     len(s.running),
		Completed:   s.completed,
		PeakRunning: s.peak,
	}
}
