package notifications

import (
	"context"

	"swc/internal/config"
	"swc/internal/job"
	"swc/internal/results"
)

// Observer forwards sink events to a Service.
type Observer struct {
	svc            Service
	jobFailed      bool
	batchCompleted bool
}

// NewObserver wraps svc with the toggles from cfg.
func NewObserver(cfg *config.Config, svc Service) *Observer {
	return &Observer{
		svc:            svc,
		jobFailed:      cfg.Notifications.JobFailed,
		batchCompleted: cfg.Notifications.BatchCompleted,
	}
}

// Observe publishes failed outcomes. Successes and cancellations are
// reported only through the batch summary.
func (o *Observer) Observe(ctx context.Context, outcome job.Outcome) error {
	if !o.jobFailed || outcome.State != job.StateFailed {
		return nil
	}
	return o.svc.NotifyJobFailed(ctx, outcome)
}

// BatchComplete publishes the batch summary when at least one job ran.
func (o *Observer) BatchComplete(ctx context.Context, summary results.Summary) error {
	if !o.batchCompleted || summary.Total == 0 {
		return nil
	}
	return o.svc.NotifyBatchCompleted(ctx, summary.Succeeded, summary.Failed, summary.Cancelled, summary.Elapsed)
}
