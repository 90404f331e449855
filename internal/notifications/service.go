package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"dropwatch/internal/config"
	"dropwatch/internal/files"
)

const userAgent = "dropwatch/0.1.0"

// Service defines the notification surface used by the run loop.
type Service interface {
	NotifyNewFile(ctx context.Context, rec files.Record) error
	NotifyColdScanComplete(ctx context.Context, target string, existing, incremental int) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notify.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.Notify.RequestTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perMinute := cfg.Notify.MaxPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

func (n *ntfyService) NotifyNewFile(ctx context.Context, rec files.Record) error {
	if !n.limiter.Allow() {
		n.suppressed.Add(1)
		return nil
	}
	message := fmt.Sprintf("📥 New file: %s (%s)", rec.FileName, humanize.IBytes(uint64(max(rec.Size, 0))))
	if skipped := n.suppressed.Swap(0); skipped > 0 {
		message = fmt.Sprintf("%s\n+%d more since the last notification", message, skipped)
	}
	return n.send(ctx, payload{
		title:   "dropwatch - New File",
		message: message,
		tags:    []string{"dropwatch", "file", "new"},
	})
}

func (n *ntfyService) NotifyColdScanComplete(ctx context.Context, target string, existing, incremental int) error {
	return n.send(ctx, payload{
		title:   "dropwatch - Tracking Started",
		message: fmt.Sprintf("Watching %s: %d existing, %d new since last run", strings.TrimSpace(target), existing, incremental),
		tags:    []string{"dropwatch", "scan", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "dropwatch - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"dropwatch", "test"},
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

func (noopService) NotifyNewFile(context.Context, files.Record) error { return nil }
func (noopService) NotifyColdScanComplete(context.Context, string, int, int) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
