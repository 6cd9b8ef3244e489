package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"winnow/internal/config"
)

const userAgent = "Winnow/0.1.0"

// Service defines the notification surface exposed to lifecycle components.
type Service interface {
	NotifyItemTrashed(ctx context.Context, label string) error
	NotifyItemPurged(ctx context.Context, label string) error
	NotifyItemRescued(ctx context.Context, label string) error
	NotifyError(ctx context.Context, err error, context string) error
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

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: strings.TrimRight(cfg.Notifications.NtfyServer, "/") + "/" + topic,
		client:   client,
		trashed:  cfg.Notifications.Trashed,
		purged:   cfg.Notifications.Purged,
		rescued:  cfg.Notifications.Rescued,
		errors:   cfg.Notifications.Errors,
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
	trashed  bool
	purged   bool
	rescued  bool
	errors   bool
}

func (n *ntfyService) NotifyItemTrashed(ctx context.Context, label string) error {
	if !n.trashed {
		return nil
	}
	label = strings.TrimSpace(label)
	data := payload{
		title:   "Winnow - Trashed",
		message: fmt.Sprintf("🗑️ Everyone voted, moved to trash: %s", label),
		tags:    []string{"winnow", "trash"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyItemPurged(ctx context.Context, label string) error {
	if !n.purged {
		return nil
	}
	label = strings.TrimSpace(label)
	data := payload{
		title:   "Winnow - Purged",
		message: fmt.Sprintf("🔥 Grace period over, deleted for good: %s", label),
		tags:    []string{"winnow", "purge"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyItemRescued(ctx context.Context, label string) error {
	if !n.rescued {
		return nil
	}
	label = strings.TrimSpace(label)
	data := payload{
		title:   "Winnow - Rescued",
		message: fmt.Sprintf("♻️ Pulled back out of the trash: %s", label),
		tags:    []string{"winnow", "rescue"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Winnow - Error",
		message:  builder.String(),
		tags:     []string{"winnow", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Winnow - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"winnow", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifyItemTrashed(context.Context, string) error { return nil }
func (noopService) NotifyItemPurged(context.Context, string) error  { return nil }
func (noopService) NotifyItemRescued(context.Context, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
