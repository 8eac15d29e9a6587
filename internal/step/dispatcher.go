package step

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/menu"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/session"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/terminal"
)

// Dispatcher executes abstract steps against the terminal automation
// engine. Errors from the components below are never retried here; they
// are converted into failed results with the message preserved.
type Dispatcher struct {
	sup *session.Supervisor
	in  *session.Input
	nav *menu.Navigator
	cfg Config
	log *slog.Logger
}

// Config tunes dispatch-wide defaults. KeyDelay and ResponseDelay pace
// every send_input step; zero values fall back to the input simulator's
// defaults.
type Config struct {
	Wait          session.WaitConfig
	KeyDelay      time.Duration
	ResponseDelay time.Duration
}

// NewDispatcher wires a dispatcher over the given components.
func NewDispatcher(sup *session.Supervisor, in *session.Input, nav *menu.Navigator, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sup: sup, in: in, nav: nav, cfg: cfg, log: logger.With("component", "dispatcher")}
}

// Execute runs one step and reports a uniform result. Every failure
// names the session, the action attempted and the elapsed duration.
func (d *Dispatcher) Execute(ctx context.Context, s Step) Result {
	start := time.Now()
	output, err := d.run(ctx, s)
	elapsed := time.Since(start)

	res := Result{
		Step:     s.Name,
		Action:   s.Action,
		Target:   s.Target,
		Status:   StatusPassed,
		Duration: elapsed,
		Output:   output,
	}
	if s.Action != "spawn" {
		res.SessionID = s.Target
	} else if err == nil {
		res.SessionID = output
	}
	if err != nil {
		res.Status = StatusFailed
		res.Error = fmt.Sprintf("%s on %s failed after %v: %v", s.Action, s.Target, elapsed.Round(time.Millisecond), err)
		d.log.Warn("step failed", "action", s.Action, "target", s.Target, "elapsed", elapsed, "error", err)
	}
	return res
}

func (d *Dispatcher) run(ctx context.Context, s Step) (string, error) {
	wait := d.cfg.Wait
	if t := s.Timeout(); t > 0 {
		wait.Timeout = t
	}

	switch s.Action {
	case "spawn":
		argv := strings.Fields(s.Target)
		if len(argv) == 0 {
			return "", fmt.Errorf("spawn: empty command line")
		}
		return d.sup.Spawn(ctx, session.SpawnConfig{
			Command: argv[0],
			Args:    argv[1:],
			Env:     s.Env,
			UsePTY:  s.UsePTY,
		})

	case "send_input":
		req := session.InputRequest{
			Keys:          s.Value,
			Timing:        d.cfg.KeyDelay,
			ResponseDelay: d.cfg.ResponseDelay,
			Timeout:       wait.Timeout,
		}
		if m, ok := s.Expected.(map[string]any); ok {
			req.WaitForStabilization, _ = m["wait_for_stabilization"].(bool)
			req.WaitForPattern, _ = m["wait_for_pattern"].(string)
		}
		return "", d.in.Send(ctx, s.Target, req)

	case "navigate_menu":
		path := splitPath(s.Value)
		if len(path) == 0 {
			return "", fmt.Errorf("navigate_menu: empty path")
		}
		mc, err := d.nav.Navigate(ctx, s.Target, path)
		if err != nil {
			return "", err
		}
		return strings.Join(mc.History, " > "), nil

	case "validate_output":
		captured, err := d.sup.CombinedText(s.Target)
		if err != nil {
			return "", err
		}
		ok, err := ValidateText(captured, s.Expected)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("output validation failed, expected %v", s.Expected)
		}
		return "", nil

	case "validate_colors":
		expected, err := resolveExpectedSpans(s.Expected)
		if err != nil {
			return "", err
		}
		ev, hasOutput, err := d.sup.LatestEvent(s.Target)
		if err != nil {
			return "", err
		}
		var captured []terminal.ColorSpan
		if hasOutput {
			captured = ev.ColorSpans
		}
		if ok, detail := validateSpans(captured, expected); !ok {
			return "", fmt.Errorf("color validation failed: %s", detail)
		}
		return "", nil

	case "capture_output":
		return d.sup.CombinedText(s.Target)

	case "wait_for_output":
		return "", d.sup.WaitForPattern(ctx, s.Target, s.Value, wait)

	case "resize_terminal":
		var cols, rows int
		if _, err := fmt.Sscanf(s.Value, "%dx%d", &cols, &rows); err != nil {
			return "", fmt.Errorf("resize_terminal: bad geometry %q", s.Value)
		}
		return "", d.sup.Resize(s.Target, terminal.Size{Cols: cols, Rows: rows})

	case "kill_session":
		return "", d.sup.Kill(ctx, s.Target)

	case "wait":
		pause := s.Timeout()
		if s.Value != "" {
			var ms int
			if _, err := fmt.Sscanf(s.Value, "%d", &ms); err != nil {
				return "", fmt.Errorf("wait: bad duration %q", s.Value)
			}
			pause = time.Duration(ms) * time.Millisecond
		}
		if pause <= 0 {
			pause = time.Second
		}
		timer := time.NewTimer(pause)
		defer timer.Stop()
		select {
		case <-timer.C:
			return "", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}

	default:
		return "", fmt.Errorf("unsupported action %q", s.Action)
	}
}

// splitPath turns "Settings > Display > Resolution" into path segments.
func splitPath(value string) []string {
	var path []string
	for _, part := range strings.Split(value, ">") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			path = append(path, trimmed)
		}
	}
	return path
}
