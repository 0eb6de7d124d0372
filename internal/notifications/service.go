package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelgen/internal/config"
)

const userAgent = "reelgen/0.1.0"

// RunSummary describes a finished run.
type RunSummary struct {
	RunID       string
	Theme       string
	Status      string
	Succeeded   int
	Failed      int
	FinalOutput string
	Duration    time.Duration
}

// Service is the notification surface used by the CLI.
type Service interface {
	NotifyRunCompleted(ctx context.Context, summary RunSummary) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
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

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

// DisplayTheme renders a theme in title case for messages.
func DisplayTheme(theme string) string {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return "Untitled Reel"
	}
	return cases.Title(language.Und).String(theme)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, summary RunSummary) error {
	duration := summary.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	theme := DisplayTheme(summary.Theme)
	data := payload{tags: []string{"reelgen", "run", summary.Status}}
	switch summary.Status {
	case "complete":
		data.title = "Reelgen - Reel Complete"
		data.message = fmt.Sprintf("Reel ready: %s\n%d beats in %s", theme, summary.Succeeded, duration)
		data.priority = "high"
	case "partial":
		data.title = "Reelgen - Reel Complete (with gaps)"
		data.message = fmt.Sprintf("Reel ready: %s\n%d beats rendered, %d failed in %s", theme, summary.Succeeded, summary.Failed, duration)
	default:
		data.title = "Reelgen - Reel Failed"
		data.message = fmt.Sprintf("No clips rendered for %s (%d beats failed)", theme, summary.Failed)
		data.priority = "high"
	}
	if output := strings.TrimSpace(summary.FinalOutput); output != "" && summary.Succeeded > 0 {
		data.message = fmt.Sprintf("%s\nFile: %s", data.message, output)
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Reelgen - Error",
		message:  builder.String(),
		tags:     []string{"reelgen", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Reelgen - Test",
		message:  "Notification system test",
		tags:     []string{"reelgen", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, RunSummary) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error     { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
