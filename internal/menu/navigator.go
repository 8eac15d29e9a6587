// Package menu drives menu-based TUI navigation purely from parsed
// screen content: it scrapes candidate item labels out of decoded
// output, moves the highlight with arrow keys, and commits with Enter.
package menu

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/session"
)

// Context is the navigation state for the active menu session.
type Context struct {
	Level         int      `json:"level"`
	Items         []string `json:"items"`
	SelectedIndex int      `json:"selectedIndex"`
	History       []string `json:"history"`
}

// ItemNotFoundError reports a label that matched no parsed menu item.
// It carries the full set of available labels for diagnosis.
type ItemNotFoundError struct {
	Label     string
	Available []string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("menu item %q not found; available: [%s]",
		e.Label, strings.Join(e.Available, ", "))
}

// Screen reads settled output from a session. TextSince lets the
// navigator parse only the output rendered after its previous
// selection, so parent menu lines never bleed into child menus.
type Screen interface {
	WaitForStabilization(ctx context.Context, id string, cfg session.WaitConfig) error
	EventCount(id string) (int, error)
	TextSince(id string, from int) (string, error)
}

// Keys sends symbolic keys to a session.
type Keys interface {
	SendKey(ctx context.Context, id, name string) error
}

// Config tunes navigation pacing.
type Config struct {
	// StepDelay separates consecutive arrow keystrokes.
	StepDelay time.Duration
	Wait      session.WaitConfig
}

// Navigator walks menu hierarchies one selection at a time. At most one
// navigation context is live per navigator instance.
type Navigator struct {
	screen Screen
	keys   Keys
	cfg    Config
	log    *slog.Logger

	current *Context
	mark    int
}

// New creates a navigator over the given screen reader and key sender.
func New(screen Screen, keys Keys, cfg Config, logger *slog.Logger) *Navigator {
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{screen: screen, keys: keys, cfg: cfg, log: logger.With("component", "menu")}
}

// itemPattern recognizes menu item lines: a decimal-number-dot, "*", "-"
// or "[N]" marker followed by the label.
var itemPattern = regexp.MustCompile(`^\s*(?:\d+\.|\*|-|\[\d+\])\s*(.+?)\s*$`)

// ParseItems extracts candidate item labels from decoded output text.
func ParseItems(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		if m := itemPattern.FindStringSubmatch(line); m != nil {
			items = append(items, m[1])
		}
	}
	return items
}

// Navigate selects each label in path in order, waiting for the menu to
// finish rendering before every step. Starting with no prior context
// initializes a fresh one at level 0.
func (n *Navigator) Navigate(ctx context.Context, id string, path []string) (Context, error) {
	if n.current == nil {
		n.current = &Context{}
	}

	for _, target := range path {
		if err := n.step(ctx, id, target); err != nil {
			return *n.current, err
		}
	}
	return *n.current, nil
}

// Reset discards the active navigation context. The next navigation
// parses the full transcript again.
func (n *Navigator) Reset() {
	n.current = nil
	n.mark = 0
}

func (n *Navigator) step(ctx context.Context, id, target string) error {
	// Menus are assumed to finish rendering before navigation continues.
	if err := n.screen.WaitForStabilization(ctx, id, n.cfg.Wait); err != nil {
		return err
	}

	// Only output produced since the previous selection belongs to the
	// menu currently on screen; the first step starts from the top.
	text, err := n.screen.TextSince(id, n.mark)
	if err != nil {
		return err
	}
	items := ParseItems(text)
	n.current.Items = items

	targetIdx := -1
	lowered := strings.ToLower(target)
	for i, item := range items {
		if strings.Contains(strings.ToLower(item), lowered) {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return &ItemNotFoundError{Label: target, Available: items}
	}

	// Everything buffered up to this point is the menu just parsed;
	// whatever the selection renders next starts the child menu.
	mark, err := n.screen.EventCount(id)
	if err != nil {
		return err
	}

	delta := targetIdx - n.current.SelectedIndex
	key := "ArrowDown"
	if delta < 0 {
		key = "ArrowUp"
		delta = -delta
	}
	n.log.Debug("moving menu highlight",
		"session", id, "target", target, "index", targetIdx, "key", key, "steps", delta)

	for i := 0; i < delta; i++ {
		if err := n.keys.SendKey(ctx, id, key); err != nil {
			return err
		}
		if err := sleepCtx(ctx, n.cfg.StepDelay); err != nil {
			return err
		}
	}
	if err := n.keys.SendKey(ctx, id, "Enter"); err != nil {
		return err
	}

	n.mark = mark
	n.current.Level++
	n.current.SelectedIndex = targetIdx
	n.current.History = append(n.current.History, items[targetIdx])
	return nil
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
