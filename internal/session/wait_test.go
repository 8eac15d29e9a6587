package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStabilizationResolvesAfterThreshold(t *testing.T) {
	sup := newTestSupervisor(t)

	id, err := sup.Spawn(context.Background(), SpawnConfig{
		Command: "sh", Args: []string{"-c", "printf done"},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	waitExit(t, sup, id)

	// Buffer stopped growing before the wait starts, so the detector
	// needs exactly threshold polls: no earlier than 5 x interval.
	poll := 20 * time.Millisecond
	start := time.Now()
	err = sup.WaitForStabilization(context.Background(), id, WaitConfig{
		PollInterval:    poll,
		StableThreshold: 5,
		Timeout:         2 * time.Second,
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("WaitForStabilization: %v", err)
	}
	if elapsed < 5*poll {
		t.Errorf("resolved after %v, want at least %v", elapsed, 5*poll)
	}
	if elapsed > 20*poll {
		t.Errorf("resolved after %v, far beyond threshold", elapsed)
	}
}

func TestStabilizationTimesOutWhileOutputFlows(t *testing.T) {
	sup := newTestSupervisor(t)

	id, err := sup.Spawn(context.Background(), SpawnConfig{
		Command: "sh", Args: []string{"-c", "while true; do echo tick; sleep 0.02; done"},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer func() { _ = sup.Kill(context.Background(), id) }()

	timeout := 300 * time.Millisecond
	err = sup.WaitForStabilization(context.Background(), id, WaitConfig{
		PollInterval:    50 * time.Millisecond,
		StableThreshold: 5,
		Timeout:         timeout,
	})
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("err = %v, want *TimeoutError", err)
	}
	if timeoutErr.Limit != timeout {
		t.Errorf("error limit = %v, want %v", timeoutErr.Limit, timeout)
	}
	if !strings.Contains(timeoutErr.Error(), timeout.String()) {
		t.Errorf("error %q does not name the limit", timeoutErr.Error())
	}
}

func TestWaitForPattern(t *testing.T) {
	sup := newTestSupervisor(t)

	id, err := sup.Spawn(context.Background(), SpawnConfig{
		Command: "sh", Args: []string{"-c", "sleep 0.1; echo BUILD OK; sleep 2"},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer func() { _ = sup.Kill(context.Background(), id) }()

	err = sup.WaitForPattern(context.Background(), id, `BUILD\s+OK`, WaitConfig{
		PollInterval: 20 * time.Millisecond,
		Timeout:      3 * time.Second,
	})
	if err != nil {
		t.Fatalf("WaitForPattern: %v", err)
	}
}

func TestWaitForPatternTimeout(t *testing.T) {
	sup := newTestSupervisor(t)

	id, err := sup.Spawn(context.Background(), SpawnConfig{
		Command: "sleep", Args: []string{"60"},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer func() { _ = sup.Kill(context.Background(), id) }()

	err = sup.WaitForPattern(context.Background(), id, "NEVER", WaitConfig{
		PollInterval: 20 * time.Millisecond,
		Timeout:      150 * time.Millisecond,
	})
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("err = %v, want *TimeoutError", err)
	}
}

func TestWaitForPatternInvalidRegexp(t *testing.T) {
	sup := newTestSupervisor(t)

	id, err := sup.Spawn(context.Background(), SpawnConfig{
		Command: "sleep", Args: []string{"60"},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer func() { _ = sup.Kill(context.Background(), id) }()

	if err := sup.WaitForPattern(context.Background(), id, "(", WaitConfig{}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestWaitUnknownSession(t *testing.T) {
	sup := newTestSupervisor(t)
	err := sup.WaitForStabilization(context.Background(), "tui_0_missing", WaitConfig{})
	var notFound *SessionNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("err = %v, want *SessionNotFoundError", err)
	}
}
