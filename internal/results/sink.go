package results

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"swc/internal/job"
	"swc/internal/logging"
)

// Observer receives every outcome after it is buffered.
type Observer interface {
	Observe(ctx context.Context, outcome job.Outcome) error
}

// BatchObserver is notified once when the sink is closed.
type BatchObserver interface {
	BatchComplete(ctx context.Context, summary Summary) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, outcome job.Outcome) error

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, outcome job.Outcome) error {
	return f(ctx, outcome)
}

// Summary aggregates outcome counts.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Cancelled int
	Elapsed   time.Duration
}

// Option configures a Sink.
type Option func(*Sink)

// WithObserver registers an observer. Observers are called in registration order.
func WithObserver(observer Observer) Option {
	return func(s *Sink) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

// WithLogger sets the sink logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "results")
		}
	}
}

// Sink buffers outcomes without blocking the producer.
type Sink struct {
	ctx       context.Context
	logger    *slog.Logger
	observers []Observer
	started   time.Time

	mu       sync.Mutex
	outcomes []job.Outcome
	index    map[string]int
	cursor   int
	pending  []job.Outcome
	changed  chan struct{}
	closed   bool
	finished chan struct{}

	closeOnce sync.Once
}

// New creates a sink. ctx bounds observer calls.
func New(ctx context.Context, opts ...Option) *Sink {
	s := &Sink{
		ctx:      ctx,
		logger:   logging.NewNop(),
		started:  time.Now(),
		index:    make(map[string]int),
		changed:  make(chan struct{}),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	go s.dispatch()
	return s
}

// Deliver buffers outcome. A second outcome for an already delivered job id
// is dropped and logged.
func (s *Sink) Deliver(outcome job.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := outcome.Request.ID
	if _, dup := s.index[id]; dup {
		s.logger.Warn("duplicate outcome dropped",
			logging.String(logging.FieldJobID, id),
			logging.String("state", string(outcome.State)),
			logging.Alert("duplicate_outcome"),
		)
		return
	}
	if s.closed {
		s.logger.Warn("outcome delivered after close",
			logging.String(logging.FieldJobID, id),
			logging.Alert("late_outcome"),
		)
	}
	s.index[id] = len(s.outcomes)
	s.outcomes = append(s.outcomes, outcome)
	if !s.closed {
		s.pending = append(s.pending, outcome)
	}
	s.broadcastLocked()
}

func (s *Sink) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Next returns the next unread outcome in delivery order. It blocks until one
// is available, returns io.EOF once the sink is closed and drained, or the
// context error.
func (s *Sink) Next(ctx context.Context) (job.Outcome, error) {
	for {
		s.mu.Lock()
		if s.cursor < len(s.outcomes) {
			outcome := s.outcomes[s.cursor]
			s.cursor++
			s.mu.Unlock()
			return outcome, nil
		}
		if s.closed {
			s.mu.Unlock()
			return job.Outcome{}, io.EOF
		}
		wait := s.changed
		s.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return job.Outcome{}, ctx.Err()
		}
	}
}

// Outcome looks up the outcome for a job id.
func (s *Sink) Outcome(id string) (job.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[id]
	if !ok {
		return job.Outcome{}, false
	}
	return s.outcomes[idx], true
}

// Outcomes returns a snapshot of every outcome in delivery order.
func (s *Sink) Outcomes() []job.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]job.Outcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

// Summary counts outcomes by terminal state.
func (s *Sink) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := Summary{Total: len(s.outcomes), Elapsed: time.Since(s.started)}
	for _, o := range s.outcomes {
		switch o.State {
		case job.StateSucceeded:
			summary.Succeeded++
		case job.StateCancelled:
			summary.Cancelled++
		default:
			summary.Failed++
		}
	}
	return summary
}

// ExitCode is 0 when every delivered job succeeded, 2 when any job was
// cancelled and none failed, and 1 when any job failed.
func (s *Sink) ExitCode() int {
	summary := s.Summary()
	switch {
	case summary.Failed > 0:
		return 1
	case summary.Cancelled > 0:
		return 2
	default:
		return 0
	}
}

// Close stops accepting observer work, waits for buffered outcomes to reach
// every observer, then notifies batch observers. Next returns io.EOF after
// the remaining outcomes are read.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.broadcastLocked()
		s.mu.Unlock()
		<-s.finished

		summary := s.Summary()
		for _, observer := range s.observers {
			batch, ok := observer.(BatchObserver)
			if !ok {
				continue
			}
			if err := batch.BatchComplete(s.ctx, summary); err != nil {
				logging.WarnWithContext(s.logger, "batch observer failed", "batch_observer_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "batch summary not recorded"),
				)
			}
		}
	})
}

func (s *Sink) dispatch() {
	defer close(s.finished)
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.closed {
			wait := s.changed
			s.mu.Unlock()
			<-wait
			s.mu.Lock()
		}
		batch := s.pending
		s.pending = nil
		closed := s.closed
		s.mu.Unlock()

		for _, outcome := range batch {
			s.notify(outcome)
		}
		if closed && len(batch) == 0 {
			return
		}
	}
}

func (s *Sink) notify(outcome job.Outcome) {
	for _, observer := range s.observers {
		if err := observer.Observe(s.ctx, outcome); err != nil {
			logging.WarnWithContext(s.logger, "outcome observer failed", "observer_failed",
				logging.String(logging.FieldJobID, outcome.Request.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "outcome not recorded by observer"),
			)
		}
	}
}
