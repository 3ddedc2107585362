package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/config"
	"github.com/ppiankov/hookroute/internal/logging"
)

const (
	defaultTimeout = 5 * time.Second
	maxRetries     = 3
)

// Notifier fans events out to matching webhooks. A nil *Notifier is valid
// and drops everything.
type Notifier struct {
	hooks   []config.Webhook
	client  *http.Client
	backoff time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// New returns a Notifier, or nil when no webhooks are configured.
func New(hooks []config.Webhook, timeout time.Duration, logger *zap.Logger) *Notifier {
	if len(hooks) == 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Notifier{
		hooks:   hooks,
		client:  &http.Client{Timeout: timeout},
		backoff: time.Second,
		logger:  logging.OrNop(logger).Named("notify"),
	}
}

// Notify sends ev to every webhook subscribed to ev.Type. It does not block
// the caller; use Wait before the process exits.
func (n *Notifier) Notify(ev Event) {
	if n == nil {
		return
	}
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	for _, h := range n.hooks {
		if !matches(h.Events, ev.Type) {
			continue
		}
		n.wg.Add(1)
		go func(h config.Webhook) {
			defer n.wg.Done()
			if err := n.Send(context.Background(), h, ev); err != nil {
				n.logger.Warn("webhook failed", zap.String("url", h.URL), zap.String("event", ev.Type), zap.Error(err))
			}
		}(h)
	}
}

// Initialized sends the one-time initialized event when firstRun is true.
// The caller decides first-run state; see fsutil.CreateMarker.
func (n *Notifier) Initialized(firstRun bool, root string) {
	if !firstRun {
		return
	}
	n.Notify(Event{Type: EventInitialized, Reason: "hookroute initialized in " + root})
}

// Wait blocks until in-flight sends finish or timeout elapses, and reports
// whether they all finished.
func (n *Notifier) Wait(timeout time.Duration) bool {
	if n == nil {
		return true
	}
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func matches(events []string, typ string) bool {
	for _, e := range events {
		if e == typ || e == "*" {
			return true
		}
	}
	return false
}

// Send posts ev to one webhook, retrying on 5xx and transport errors.
func (n *Notifier) Send(ctx context.Context, h config.Webhook, ev Event) error {
	body, err := FormatPayload(h.Format, ev)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * n.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range h.Headers {
			req.Header.Set(k, v)
		}

		resp, err := n.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode)
		}
		lastErr = fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook failed after %d attempts: %w", maxRetries, lastErr)
}
