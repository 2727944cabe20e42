package notifications

import (
	"strings"
	"testing"
	"time"

	"swc/internal/job"
)

func TestBatchMessageRoundsDuration(t *testing.T) {
	m := batchMessage(3, 0, 0, 61*time.Second+400*time.Millisecond)
	if m.Body != "✅ 3 converted in 1m1s" {
		t.Fatalf("unexpected body %q", m.Body)
	}
	if strings.Contains(m.Title, "errors") {
		t.Fatalf("clean batch should not mention errors: %q", m.Title)
	}

	m = batchMessage(1, 1, 1, -time.Second)
	if m.Body != "1 converted, 1 failed, 1 cancelled in 0s" {
		t.Fatalf("unexpected body %q", m.Body)
	}
}

func TestJobFailedMessagePrefersTitle(t *testing.T) {
	req := job.Request{ID: "j1", Source: "https://example.com/watch?v=abc", Format: "mp3"}
	outcome := job.Failed(req, job.StageDownload, &job.Error{Kind: job.KindTimeout, Stage: job.StageDownload, Message: "timed out after 30m0s"})
	outcome.Results = []job.StageResult{{Metadata: job.Metadata{Title: "Some Song"}}}

	m := jobFailedMessage(outcome)
	if !strings.HasPrefix(m.Body, "❌ Failed: Some Song (download)\n") {
		t.Fatalf("unexpected body %q", m.Body)
	}
	if got := strings.Join(m.Tags, ","); got != "swc,job,failed,timeout" {
		t.Fatalf("unexpected tags %q", got)
	}
	if h := m.headers(); h.Get("Priority") != "high" || h.Get("Title") != "swc - Job Failed" {
		t.Fatalf("unexpected headers %v", h)
	}
}
