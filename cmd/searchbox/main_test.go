package main

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestGracefulShutdownSignal(t *testing.T) {
	// Verify the signal plumbing used by runServerAndWait behaves as
	// expected without starting the full server.
	sig := make(chan os.Signal, 1)
	done := make(chan bool, 1)

	go func() {
		<-sig
		done <- true
	}()

	sig <- syscall.SIGTERM

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("signal handler did not receive signal")
	}
}

func TestShutdownContextTimeout(t *testing.T) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	select {
	case <-shutdownCtx.Done():
	case <-time.After(200 * time.Millisecond):
		t.Error("context did not timeout as expected")
	}
}
