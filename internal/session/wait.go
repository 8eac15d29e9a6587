package session

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

const (
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultStableThreshold = 5
	DefaultWaitTimeout     = 5 * time.Second
)

// WaitConfig tunes the polling loops. Zero values take defaults.
type WaitConfig struct {
	PollInterval    time.Duration
	StableThreshold int
	Timeout         time.Duration
}

func (c WaitConfig) withDefaults() WaitConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StableThreshold <= 0 {
		c.StableThreshold = DefaultStableThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultWaitTimeout
	}
	return c
}

// WaitForStabilization resolves once the session's buffered event count
// has stayed unchanged for StableThreshold consecutive polls. Terminal
// programs give no completion signal, so a settled buffer is the proxy
// for "finished rendering". The heuristic is length-based, not
// content-based: identical redraws only count as activity if each one
// lands as a new buffered event.
func (s *Supervisor) WaitForStabilization(ctx context.Context, id string, cfg WaitConfig) error {
	cfg = cfg.withDefaults()

	lastCount, err := s.EventCount(id)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(cfg.Timeout)
	defer deadline.Stop()

	stable := 0
	for {
		select {
		case <-ticker.C:
			count, err := s.EventCount(id)
			if err != nil {
				return err
			}
			if count == lastCount {
				stable++
				if stable >= cfg.StableThreshold {
					return nil
				}
			} else {
				stable = 0
				lastCount = count
			}
		case <-deadline.C:
			return &TimeoutError{Op: "output stabilization", Limit: cfg.Timeout}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitForPattern polls the session's combined decoded text until it
// matches the given regular expression or the timeout elapses.
func (s *Supervisor) WaitForPattern(ctx context.Context, id, pattern string, cfg WaitConfig) error {
	cfg = cfg.withDefaults()

	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	// Check once up front; the pattern may already be on screen.
	text, err := s.CombinedText(id)
	if err != nil {
		return err
	}
	if re.MatchString(text) {
		return nil
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(cfg.Timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ticker.C:
			text, err := s.CombinedText(id)
			if err != nil {
				return err
			}
			if re.MatchString(text) {
				return nil
			}
		case <-deadline.C:
			return &TimeoutError{Op: fmt.Sprintf("wait for pattern %q", pattern), Limit: cfg.Timeout}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
