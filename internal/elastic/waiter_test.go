package elastic

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakePinger struct {
	calls    int
	failFor  int
	lastErr  error
	sawCtx   bool
	blocking bool
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.calls++
	if ctx != nil {
		f.sawCtx = true
	}
	if f.blocking {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.calls <= f.failFor {
		f.lastErr = fmt.Errorf("attempt %d refused", f.calls)
		return f.lastErr
	}
	return nil
}

func TestWaitSucceedsImmediately(t *testing.T) {
	p := &fakePinger{}
	opts := WaitOptions{Attempts: 5, Interval: time.Millisecond, Timeout: time.Second}
	if err := Wait(context.Background(), p, opts); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("expected 1 ping, got %d", p.calls)
	}
}

func TestWaitRetriesUntilSuccess(t *testing.T) {
	p := &fakePinger{failFor: 3}
	opts := WaitOptions{Attempts: 5, Interval: time.Millisecond, Timeout: time.Second}
	if err := Wait(context.Background(), p, opts); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if p.calls != 4 {
		t.Fatalf("expected 4 pings (3 failures + success), got %d", p.calls)
	}
}

func TestWaitExhaustsAttemptBudget(t *testing.T) {
	p := &fakePinger{failFor: 100}
	opts := WaitOptions{Attempts: 5, Interval: time.Millisecond, Timeout: time.Second}
	err := Wait(context.Background(), p, opts)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if p.calls != 5 {
		t.Fatalf("expected exactly 5 pings, got %d", p.calls)
	}
}

func TestWaitRespectsCancellation(t *testing.T) {
	p := &fakePinger{failFor: 100}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	opts := WaitOptions{Attempts: 100, Interval: 50 * time.Millisecond, Timeout: time.Second}
	if err := Wait(ctx, p, opts); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestWaitAppliesPerAttemptTimeout(t *testing.T) {
	p := &fakePinger{blocking: true}
	opts := WaitOptions{Attempts: 1, Interval: time.Millisecond, Timeout: 20 * time.Millisecond}
	start := time.Now()
	if err := Wait(context.Background(), p, opts); err == nil {
		t.Fatal("expected error when every probe blocks past its timeout")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("per-attempt timeout not applied, took %v", elapsed)
	}
}

func TestDefaultWaitOptions(t *testing.T) {
	opts := DefaultWaitOptions()
	if opts.Attempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", opts.Attempts)
	}
	if opts.Interval != 10*time.Second || opts.Timeout != 10*time.Second {
		t.Fatalf("expected 10s cadence, got %v/%v", opts.Interval, opts.Timeout)
	}
}
