package history

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"swc/internal/job"
)

const entryColumns = "id, job_id, source, format, quality, state, stage, error_kind, error_message, artifact, title, download_attempts, transcode_attempts, started_at, finished_at, recorded_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry       Entry
		quality     sql.NullString
		state       string
		stage       sql.NullString
		kind        sql.NullString
		message     sql.NullString
		artifact    sql.NullString
		title       sql.NullString
		startedRaw  sql.NullString
		finishedRaw sql.NullString
		recordedRaw string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.JobID,
		&entry.Source,
		&entry.Format,
		&quality,
		&state,
		&stage,
		&kind,
		&message,
		&artifact,
		&title,
		&entry.DownloadAttempts,
		&entry.TranscodeAttempts,
		&startedRaw,
		&finishedRaw,
		&recordedRaw,
	); err != nil {
		return Entry{}, err
	}
	entry.Quality = quality.String
	entry.State = job.State(state)
	entry.Stage = job.StageName(stage.String)
	entry.ErrorKind = job.Kind(kind.String)
	entry.ErrorMessage = message.String
	entry.Artifact = artifact.String
	entry.Title = title.String
	if t, err := parseTimeString(startedRaw.String); err == nil {
		entry.StartedAt = t
	}
	if t, err := parseTimeString(finishedRaw.String); err == nil {
		entry.FinishedAt = t
	}
	if t, err := parseTimeString(recordedRaw); err == nil {
		entry.RecordedAt = t
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}
