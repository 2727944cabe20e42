package services

import "context"

type ctxKey int

const (
	jobIDKey ctxKey = iota
	stageKey
	attemptKey
	batchIDKey
)

func withValue[T comparable](ctx context.Context, key ctxKey, value T) context.Context {
	var zero T
	if value == zero {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueFrom[T comparable](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok && v != zero
}

// WithJobID stamps the job identifier on ctx. Empty IDs leave ctx unchanged.
func WithJobID(ctx context.Context, id string) context.Context {
	return withValue(ctx, jobIDKey, id)
}

func JobIDFromContext(ctx context.Context) (string, bool) {
	return valueFrom[string](ctx, jobIDKey)
}

// WithStage stamps the pipeline stage name (download, transcode) on ctx.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return valueFrom[string](ctx, stageKey)
}

// WithAttempt stamps the 1-based stage attempt on ctx. Non-positive values
// leave ctx unchanged.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	if attempt <= 0 {
		return ctx
	}
	return withValue(ctx, attemptKey, attempt)
}

func AttemptFromContext(ctx context.Context) (int, bool) {
	return valueFrom[int](ctx, attemptKey)
}

// WithBatchID stamps the identifier shared by every job submitted in one
// invocation, so log lines from concurrent jobs can be correlated.
func WithBatchID(ctx context.Context, id string) context.Context {
	return withValue(ctx, batchIDKey, id)
}

func BatchIDFromContext(ctx context.Context) (string, bool) {
	return valueFrom[string](ctx, batchIDKey)
}
