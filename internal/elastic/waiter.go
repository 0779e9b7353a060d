package elastic

import (
	"context"
	"fmt"
	"time"

	"github.com/searchbox/searchbox/internal/logging"
	"github.com/searchbox/searchbox/internal/metrics"
)

// Pinger is the minimal probe surface used by the startup gate and the
// background monitor.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WaitOptions controls the startup gate cadence. The defaults mirror the
// orchestrator healthcheck: 5 attempts, 10 seconds apart, 10 seconds per
// attempt.
type WaitOptions struct {
	Attempts int
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultWaitOptions returns the orchestrator healthcheck cadence.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{Attempts: 5, Interval: 10 * time.Second, Timeout: 10 * time.Second}
}

// Wait polls the cluster until a probe succeeds or the attempt budget is
// spent. The caller is expected to treat failure as fatal at startup.
func Wait(ctx context.Context, p Pinger, opts WaitOptions) error {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("wait canceled: %w", ctx.Err())
		}
		attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		err := p.Ping(attemptCtx)
		cancel()
		if err == nil {
			logging.Get().Info().Int("attempt", attempt).Msg("search engine is reachable")
			metrics.SetReady(true)
			metrics.SetLastPing(time.Now())
			return nil
		}
		lastErr = err
		metrics.IncPingFailure()
		logging.Get().Warn().Err(err).Int("attempt", attempt).Int("attempts", opts.Attempts).Msg("search engine not reachable yet")
		if attempt == opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait canceled: %w", ctx.Err())
		case <-time.After(opts.Interval):
		}
	}
	return fmt.Errorf("search engine not reachable after %d attempts: %w", opts.Attempts, lastErr)
}
