package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"captioner/internal/config"
	langpkg "captioner/internal/language"
)

const userAgent = "captioner/0.1.0"

// Completion describes a finished render.
type Completion struct {
	ID         string
	SourceName string
	TargetLang string
	Cues       int
	Translated int
	Fallback   int
	VideoURL   string
	Elapsed    time.Duration
}

// Service is the notification surface the workflow depends on.
type Service interface {
	RenderCompleted(ctx context.Context, done Completion) error
	RenderFailed(ctx context.Context, id, stage string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy notifier, or a no-op one when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := cfg.NotificationTimeout()
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

func (n *ntfyService) RenderCompleted(ctx context.Context, done Completion) error {
	name := strings.TrimSpace(done.SourceName)
	if name == "" {
		name = done.ID
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Captioned %s in %s", name, langpkg.DisplayName(done.TargetLang))
	fmt.Fprintf(&b, "\n%d cues, %d translated", done.Cues, done.Translated)
	if done.Fallback > 0 {
		fmt.Fprintf(&b, ", %d kept original", done.Fallback)
	}
	if done.Elapsed > 0 {
		fmt.Fprintf(&b, " (%s)", done.Elapsed.Round(time.Second))
	}
	if url := strings.TrimSpace(done.VideoURL); url != "" {
		b.WriteString("\n")
		b.WriteString(url)
	}
	return n.send(ctx, payload{
		title:   "Captioner - Render Complete",
		message: b.String(),
		tags:    []string{"captioner", "render", "completed"},
	})
}

func (n *ntfyService) RenderFailed(ctx context.Context, id, stage string, err error) error {
	var b strings.Builder
	b.WriteString("❌ Render ")
	b.WriteString(strings.TrimSpace(id))
	if stage = strings.TrimSpace(stage); stage != "" {
		b.WriteString(" failed during ")
		b.WriteString(stage)
	} else {
		b.WriteString(" failed")
	}
	b.WriteString(": ")
	if err != nil {
		b.WriteString(strings.TrimSpace(err.Error()))
	} else {
		b.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Captioner - Error",
		message:  b.String(),
		tags:     []string{"captioner", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Captioner - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"captioner", "test"},
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

func (noopService) RenderCompleted(context.Context, Completion) error         { return nil }
func (noopService) RenderFailed(context.Context, string, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
