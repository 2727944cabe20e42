package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"swc/internal/config"
	"swc/internal/job"
	"swc/internal/textutil"
)

const userAgent = "swc/0.1.0"

// Service defines the notification surface used by the CLI.
type Service interface {
	NotifyJobFailed(ctx context.Context, outcome job.Outcome) error
	NotifyBatchCompleted(ctx context.Context, succeeded, failed, cancelled int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc actually sends messages.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

// message is one ntfy publication. Body is sent as plain text; the other
// fields travel as ntfy headers.
type message struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

func (m message) headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	if m.Title != "" {
		h.Set("Title", m.Title)
	}
	if len(m.Tags) > 0 {
		h.Set("Tags", strings.Join(m.Tags, ","))
	}
	if m.Priority != "" {
		h.Set("Priority", m.Priority)
	}
	return h
}

func jobFailedMessage(outcome job.Outcome) message {
	body := "❌ Failed: " + jobLabel(outcome)
	if outcome.Stage != "" {
		body += fmt.Sprintf(" (%s)", outcome.Stage)
	}
	if outcome.Err != nil {
		body += "\n" + strings.TrimSpace(outcome.Err.Message)
	}
	tags := []string{"swc", "job", "failed"}
	if kind := outcome.ErrorKind(); kind != "" {
		tags = append(tags, textutil.SanitizeToken(string(kind)))
	}
	return message{Title: "swc - Job Failed", Body: body, Tags: tags, Priority: "high"}
}

func batchMessage(succeeded, failed, cancelled int, elapsed time.Duration) message {
	took := max(elapsed.Round(time.Second), 0).String()
	if failed == 0 && cancelled == 0 {
		return message{
			Title: "swc - Batch Complete",
			Body:  fmt.Sprintf("✅ %d converted in %s", succeeded, took),
			Tags:  []string{"swc", "batch", "completed"},
		}
	}
	return message{
		Title: "swc - Batch Complete (with errors)",
		Body:  fmt.Sprintf("%d converted, %d failed, %d cancelled in %s", succeeded, failed, cancelled, took),
		Tags:  []string{"swc", "batch", "completed"},
	}
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, outcome job.Outcome) error {
	return n.publish(ctx, jobFailedMessage(outcome))
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, succeeded, failed, cancelled int, elapsed time.Duration) error {
	return n.publish(ctx, batchMessage(succeeded, failed, cancelled, elapsed))
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.publish(ctx, message{
		Title:    "swc - Test",
		Body:     "🧪 Notification system test",
		Tags:     []string{"swc", "test"},
		Priority: "low",
	})
}

func (n *ntfyService) publish(ctx context.Context, m message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(m.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header = m.headers()

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish to ntfy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// jobLabel prefers the downloaded title over the raw locator.
func jobLabel(outcome job.Outcome) string {
	for _, result := range outcome.Results {
		if title := strings.TrimSpace(result.Metadata.Title); title != "" {
			return title
		}
	}
	return strings.TrimSpace(outcome.Request.Source)
}

type noopService struct{}

func (noopService) NotifyJobFailed(context.Context, job.Outcome) error { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, int, time.Duration) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
