package systemd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	states []string
	err    error
}

func (r *recorder) notify(_ bool, state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	r.states = append(r.states, state)
	return true, nil
}

func (r *recorder) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func newTestNotifier() (*Notifier, *recorder) {
	rec := &recorder{}
	n := NewNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.notify = rec.notify
	return n, rec
}

func TestNotifier_Lifecycle(t *testing.T) {
	n, rec := newTestNotifier()
	n.Ready()
	n.Status("showing normal")
	n.Stopping()

	want := []string{"READY=1", "STATUS=showing normal", "STOPPING=1"}
	got := rec.sent()
	if len(got) != len(want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("state[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNotifier_ErrorIsLoggedNotReturned(t *testing.T) {
	n, rec := newTestNotifier()
	rec.err = errors.New("socket gone")
	if n.send("READY=1") {
		t.Error("send() = true on error")
	}
}

func TestNotifier_Watchdog(t *testing.T) {
	n, rec := newTestNotifier()

	var healthy sync.Mutex
	ok := true
	isHealthy := func() bool {
		healthy.Lock()
		defer healthy.Unlock()
		return ok
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.watchdog(ctx, 5*time.Millisecond, isHealthy) }()

	time.Sleep(40 * time.Millisecond)
	healthy.Lock()
	ok = false
	healthy.Unlock()
	pings := len(rec.sent())
	if pings == 0 {
		t.Fatal("no watchdog pings while healthy")
	}

	time.Sleep(40 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Errorf("watchdog() error = %v", err)
	}

	// At most one ping can race the health flip.
	if after := len(rec.sent()); after > pings+1 {
		t.Errorf("pings while unhealthy: %d", after-pings)
	}
	for _, s := range rec.sent() {
		if s != "WATCHDOG=1" {
			t.Errorf("unexpected state %q", s)
		}
	}
}

func TestRunWatchdog_Disabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	t.Setenv("WATCHDOG_PID", "")

	n, _ := newTestNotifier()
	done := make(chan error, 1)
	go func() { done <- n.RunWatchdog(context.Background(), nil) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunWatchdog() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunWatchdog() blocked without WatchdogSec")
	}
}
