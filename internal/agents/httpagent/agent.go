// Package httpagent drives plain HTTP endpoints through the scenario
// step vocabulary.
package httpagent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/step"
)

const defaultTimeout = 30 * time.Second

// Agent executes http_request steps. Target is the URL; Value is the
// method, optionally followed by a request body ("POST {\"a\":1}").
// Expected is either a body predicate or {status, body}.
type Agent struct {
	client *http.Client
	log    *slog.Logger
}

// New creates an agent with the given client, or a default one.
func New(client *http.Client, logger *slog.Logger) *Agent {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{client: client, log: logger.With("component", "http-agent")}
}

// Execute performs the request and validates the response.
func (a *Agent) Execute(ctx context.Context, s step.Step) step.Result {
	start := time.Now()
	err := a.run(ctx, s)
	elapsed := time.Since(start)

	res := step.Result{
		Step:     s.Name,
		Action:   s.Action,
		Target:   s.Target,
		Status:   step.StatusPassed,
		Duration: elapsed,
	}
	if err != nil {
		res.Status = step.StatusFailed
		res.Error = fmt.Sprintf("%s on %s failed after %v: %v", s.Action, s.Target, elapsed.Round(time.Millisecond), err)
		a.log.Warn("http step failed", "target", s.Target, "error", err)
	}
	return res
}

func (a *Agent) run(ctx context.Context, s step.Step) error {
	if s.Action != "http_request" {
		return fmt.Errorf("unsupported action %q", s.Action)
	}

	method := "GET"
	var body io.Reader
	if s.Value != "" {
		method, body = parseValue(s.Value)
	}

	timeout := s.Timeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, s.Target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	return validateResponse(resp.StatusCode, string(respBody), s.Expected)
}

// parseValue splits "METHOD" or "METHOD body..." into its parts.
func parseValue(value string) (string, io.Reader) {
	method, rest, found := strings.Cut(value, " ")
	if !found || strings.TrimSpace(rest) == "" {
		return method, nil
	}
	return method, strings.NewReader(rest)
}

func validateResponse(status int, body string, expected any) error {
	if expected == nil {
		if status >= 400 {
			return fmt.Errorf("unexpected status %d", status)
		}
		return nil
	}

	if m, ok := expected.(map[string]any); ok {
		if wantStatus, ok := m["status"]; ok {
			want, ok := toInt(wantStatus)
			if !ok {
				return &step.ValidationError{Kind: fmt.Sprintf("status %T", wantStatus)}
			}
			if status != want {
				return fmt.Errorf("status %d, expected %d", status, want)
			}
		}
		if wantBody, ok := m["body"]; ok {
			return validateBody(body, wantBody)
		}
		return nil
	}
	return validateBody(body, expected)
}

func validateBody(body string, expected any) error {
	ok, err := step.ValidateText(body, expected)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("body validation failed, expected %v", expected)
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
