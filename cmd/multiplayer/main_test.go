package main

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunRejectsUnknownMode(t *testing.T) {
	err := run(context.Background(), []string{"-mode", "spectate"})
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("err = %v, want unknown mode", err)
	}
}

func TestRunHostStopsOnCancel(t *testing.T) {
	t.Setenv("MULTIPLAYER_OTEL_ENDPOINT", "")
	t.Setenv("MULTIPLAYER_HEALTH_ADDR", "127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"-mode", "host", "-listen", "127.0.0.1:0", "-console=false"})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}

func TestRunJoinFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := run(ctx, []string{"-mode", "join", "-addr", "127.0.0.1:1", "-console=false"}); err == nil {
		t.Fatalf("expected join to fail with nothing listening")
	}
}
