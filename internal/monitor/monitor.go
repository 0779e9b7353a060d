// Package monitor watches the search engine dependency in the background
// and drives the readiness state reported by /healthz.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/searchbox/searchbox/internal/config"
	"github.com/searchbox/searchbox/internal/elastic"
	"github.com/searchbox/searchbox/internal/logging"
	"github.com/searchbox/searchbox/internal/metrics"
	"github.com/searchbox/searchbox/internal/notify"
)

// Status is a point-in-time view of the dependency health, served by /healthz.
type Status struct {
	Ready               bool      `json:"ready"`
	LastCheck           time.Time `json:"last_check"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Monitor is the background loop that pings the cluster on an interval.
type Monitor struct {
	cfg      *config.Config
	pinger   elastic.Pinger
	notifier *notify.MultiNotifier
	quit     chan struct{}
	wg       sync.WaitGroup
	Now      func() time.Time // injectable clock for testing
	cancel   func()

	mu           sync.Mutex
	ready        bool
	lastCheck    time.Time
	lastErr      error
	consecFails  int
	notifiedDown bool
	stopOnce     sync.Once
}

// New creates a monitor with an injected pinger.
func New(cfg *config.Config, p elastic.Pinger) *Monitor {
	m := &Monitor{cfg: cfg, pinger: p, quit: make(chan struct{}), Now: time.Now}
	m.initNotifiers()

	for _, w := range cfg.Validate() {
		logging.Get().Warn().Str("warning", w).Msg("config validation")
	}
	return m
}

// initNotifiers wires the configured webhook notifiers
func (m *Monitor) initNotifiers() {
	m.notifier = notify.NewMultiNotifier()
	cfg := m.cfg
	entries := []struct {
		enabled bool
		add     func()
	}{
		{cfg.WebhookURL != "", func() { m.notifier.Add(&notify.Generic{WebhookURL: cfg.WebhookURL}) }},
		{cfg.SlackWebhook != "", func() { m.notifier.Add(&notify.Slack{WebhookURL: cfg.SlackWebhook}) }},
	}
	for _, e := range entries {
		if e.enabled {
			e.add()
		}
	}
}

// Notifier exposes the notifier set for tests.
func (m *Monitor) Notifier() *notify.MultiNotifier { return m.notifier }

// Start runs the probe loop until Stop is called.
func (m *Monitor) Start() {
	logging.Get().Info().Dur("interval", m.cfg.MonitorInterval).Msg("starting health monitor")
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	// Immediate pass so /healthz reflects reality right away
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.once(ctx)
	}()

	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.wg.Add(1)
			m.once(ctx)
			m.wg.Done()
		case <-m.quit:
			logging.Get().Info().Msg("stopping health monitor")
			return
		}
	}
}

// once runs a single probe pass
func (m *Monitor) once(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.WaitTimeout)
	err := m.pinger.Ping(probeCtx)
	cancel()

	now := m.Now()
	if err != nil {
		m.recordFailure(ctx, now, err)
		return
	}
	m.recordSuccess(ctx, now)
}

func (m *Monitor) recordSuccess(ctx context.Context, now time.Time) {
	m.mu.Lock()
	wasDown := m.notifiedDown
	m.ready = true
	m.lastCheck = now
	m.lastErr = nil
	m.consecFails = 0
	m.notifiedDown = false
	m.mu.Unlock()

	metrics.SetReady(true)
	metrics.SetLastPing(now)
	if wasDown {
		logging.Get().Info().Msg("search engine recovered")
		m.notifier.Send(ctx, "Search engine recovered", "Elasticsearch is reachable again")
	}
}

func (m *Monitor) recordFailure(ctx context.Context, now time.Time, err error) {
	m.mu.Lock()
	m.ready = false
	m.lastCheck = now
	m.lastErr = err
	m.consecFails++
	fails := m.consecFails
	shouldNotify := !m.notifiedDown && fails >= m.cfg.MonitorThreshold
	if shouldNotify {
		m.notifiedDown = true
	}
	m.mu.Unlock()

	metrics.SetReady(false)
	metrics.IncPingFailure()
	logging.Get().Warn().Err(err).Int("consecutive_failures", fails).Msg("search engine probe failed")
	if shouldNotify {
		m.notifier.Send(ctx, "Search engine unreachable",
			fmt.Sprintf("%d consecutive probe failures, last error: %v", fails, err))
	}
}

// Ready reports whether the last probe succeeded.
func (m *Monitor) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Status returns a snapshot for /healthz.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{
		Ready:               m.ready,
		LastCheck:           m.lastCheck,
		ConsecutiveFailures: m.consecFails,
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

// RunOnce runs a single probe pass (public wrapper for tests / CLI)
func (m *Monitor) RunOnce() {
	m.once(context.Background())
}

// Stop signals the monitor to stop and waits for the active pass to finish.
func (m *Monitor) Stop(ctx context.Context) {
	if m.cancel != nil {
		m.cancel()
	}
	m.stopOnce.Do(func() { close(m.quit) })

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Get().Warn().Msg("shutdown timeout exceeded while stopping monitor")
	}

	// best-effort: let pending notifications drain
	if m.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.notifier.Wait(notifyCtx); err != nil {
			logging.Get().Warn().Err(err).Msg("timed out waiting for notifiers to finish")
		}
	}
}
