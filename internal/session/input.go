package session

import (
	"context"
	"time"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/terminal"
)

const (
	DefaultKeyDelay      = 50 * time.Millisecond
	DefaultResponseDelay = 100 * time.Millisecond
)

// InputRequest describes one keystroke sequence to feed a session.
// Symbolic {KeyName} tokens in Keys are expanded through the platform
// key map before transmission.
type InputRequest struct {
	Keys string
	// Timing is the inter-keystroke delay; models a human typing cadence
	// so line-buffered programs are not overwhelmed.
	Timing time.Duration
	// ResponseDelay is applied after the last keystroke, before any
	// post-conditions are evaluated.
	ResponseDelay        time.Duration
	WaitForStabilization bool
	WaitForPattern       string
	Timeout              time.Duration
}

// Input simulates typed keyboard input against supervised sessions.
type Input struct {
	sup  *Supervisor
	keys terminal.KeyMap
}

// NewInput creates an input simulator using the given key map.
func NewInput(sup *Supervisor, keys terminal.KeyMap) *Input {
	return &Input{sup: sup, keys: keys}
}

// Send expands and transmits the request's keys one character at a time,
// applies the response delay, then evaluates any requested
// post-conditions. It fails with *SessionNotFoundError when the session
// is absent or not running.
func (in *Input) Send(ctx context.Context, id string, req InputRequest) error {
	if !in.sup.Running(id) {
		return &SessionNotFoundError{ID: id}
	}

	keyDelay := req.Timing
	if keyDelay <= 0 {
		keyDelay = DefaultKeyDelay
	}
	responseDelay := req.ResponseDelay
	if responseDelay <= 0 {
		responseDelay = DefaultResponseDelay
	}

	expanded := in.keys.Expand(req.Keys)
	for i, r := range expanded {
		if i > 0 {
			if err := sleepCtx(ctx, keyDelay); err != nil {
				return err
			}
		}
		if err := in.sup.WriteInput(id, []byte(string(r))); err != nil {
			return err
		}
	}

	if err := sleepCtx(ctx, responseDelay); err != nil {
		return err
	}

	waitCfg := WaitConfig{Timeout: req.Timeout}
	if req.WaitForStabilization {
		if err := in.sup.WaitForStabilization(ctx, id, waitCfg); err != nil {
			return err
		}
	}
	if req.WaitForPattern != "" {
		if err := in.sup.WaitForPattern(ctx, id, req.WaitForPattern, waitCfg); err != nil {
			return err
		}
	}
	return nil
}

// SendKey transmits one symbolic key's full byte sequence in a single
// write. Menu navigation uses this so multi-byte sequences like arrow
// keys are never torn across the keystroke delay.
func (in *Input) SendKey(ctx context.Context, id, name string) error {
	seq, ok := in.keys[name]
	if !ok {
		seq = name
	}
	return in.sup.WriteInput(id, []byte(seq))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
