// Package notify delivers health transition notifications to configured
// webhooks with retries and a cooldown to avoid spamming.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/searchbox/searchbox/internal/logging"
)

// DefaultCooldown is the minimum gap between notifications to the same service.
var DefaultCooldown = 100 * time.Millisecond

// Retry settings (tunable in tests)
var (
	maxRetries  = 3
	baseBackoff = 100 * time.Millisecond
)

// sleepHook is used in tests to avoid sleeping for real
var sleepHook = time.Sleep

// Service is the interface all notifiers must implement
type Service interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// MultiNotifier fans a notification out to all configured services.
type MultiNotifier struct {
	services []Service
	lastSent map[string]time.Time
	cooldown time.Duration
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// NewMultiNotifier returns an empty notifier set.
func NewMultiNotifier() *MultiNotifier {
	return &MultiNotifier{services: make([]Service, 0), lastSent: make(map[string]time.Time), cooldown: DefaultCooldown}
}

// Add registers a service. Nil services are ignored.
func (m *MultiNotifier) Add(s Service) {
	if s != nil {
		m.services = append(m.services, s)
	}
}

// Len returns the number of registered services.
func (m *MultiNotifier) Len() int {
	return len(m.services)
}

// SetCooldown allows tests or callers to adjust the cooldown
func (m *MultiNotifier) SetCooldown(d time.Duration) {
	m.cooldown = d
}

// Wait blocks until pending sends complete or the context is cancelled.
func (m *MultiNotifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send delivers to all services asynchronously with per-service retries.
func (m *MultiNotifier) Send(ctx context.Context, title, message string) {
	now := time.Now()
	for _, s := range m.services {
		name := s.Name()
		m.wg.Add(1)
		go func(svc Service, svcName string) {
			defer m.wg.Done()
			if m.shouldSkipDueToCooldown(svcName, now) {
				logging.Get().Warn().Str("service", svcName).Msg("skipping notification due to cooldown")
				return
			}
			if err := m.sendWithRetries(ctx, svc, title, message, svcName); err != nil {
				logging.Get().Error().Err(err).Str("service", svcName).Msg("all notification retries failed")
			}
		}(s, name)
	}
}

func (m *MultiNotifier) shouldSkipDueToCooldown(name string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.lastSent[name]; ok {
		if now.Sub(last) < m.cooldown {
			return true
		}
	}
	return false
}

func (m *MultiNotifier) sendWithRetries(ctx context.Context, s Service, title, message, name string) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := s.Send(ctx, title, message); err != nil {
			lastErr = err
			logging.Get().Warn().Err(err).Str("service", name).Int("attempt", attempt).Msg("notification attempt failed")
			if attempt < maxRetries {
				d := baseBackoff * time.Duration(1<<uint(attempt-1))
				slept := make(chan struct{})
				go func() {
					sleepHook(d)
					close(slept)
				}()
				select {
				case <-slept:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}
		m.mu.Lock()
		m.lastSent[name] = time.Now()
		m.mu.Unlock()
		logging.Get().Debug().Str("service", name).Msg("notification sent")
		return nil
	}
	return lastErr
}

// postJSON is a shared helper used by providers
func postJSON(ctx context.Context, url string, data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}
	return nil
}

// --- Slack ---

type Slack struct {
	WebhookURL string
}

func (s *Slack) Name() string { return "Slack" }
func (s *Slack) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{"text": fmt.Sprintf("*%s*\n%s", title, message)}
	return postJSON(ctx, s.WebhookURL, payload)
}

// --- Generic Webhook ---

type Generic struct{ WebhookURL string }

func (g *Generic) Name() string { return "GenericWebhook" }
func (g *Generic) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{"title": title, "message": message, "agent": "searchbox"}
	return postJSON(ctx, g.WebhookURL, payload)
}
