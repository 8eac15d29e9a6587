// Package wsagent drives WebSocket endpoints through the scenario step
// vocabulary: connect, send, expect a matching message, close.
package wsagent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/step"
)

const (
	defaultTimeout = 30 * time.Second
	recvBufferCap  = 256
)

// conn is one live WebSocket connection and its received-message buffer.
type conn struct {
	ws *websocket.Conn

	mu       sync.Mutex
	received []string
	closed   bool
}

// Agent executes ws_* steps. Target identifies the connection by URL.
type Agent struct {
	dialer *websocket.Dialer
	log    *slog.Logger

	mu    sync.Mutex
	conns map[string]*conn
}

// New creates an agent with the given dialer, or the default one.
func New(dialer *websocket.Dialer, logger *slog.Logger) *Agent {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		dialer: dialer,
		log:    logger.With("component", "ws-agent"),
		conns:  make(map[string]*conn),
	}
}

// Execute runs one ws_* step and reports a uniform result.
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
		a.log.Warn("ws step failed", "target", s.Target, "error", err)
	}
	return res
}

func (a *Agent) run(ctx context.Context, s step.Step) error {
	switch s.Action {
	case "ws_connect":
		return a.connect(ctx, s.Target)
	case "ws_send":
		return a.send(s.Target, s.Value)
	case "ws_expect":
		timeout := s.Timeout()
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		expected := s.Expected
		if expected == nil && s.Value != "" {
			expected = s.Value
		}
		return a.expect(ctx, s.Target, expected, timeout)
	case "ws_close":
		return a.close(s.Target)
	default:
		return fmt.Errorf("unsupported action %q", s.Action)
	}
}

func (a *Agent) connect(ctx context.Context, url string) error {
	a.mu.Lock()
	if _, exists := a.conns[url]; exists {
		a.mu.Unlock()
		return fmt.Errorf("already connected to %s", url)
	}
	a.mu.Unlock()

	ws, _, err := a.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}

	c := &conn{ws: ws}
	a.mu.Lock()
	a.conns[url] = c
	a.mu.Unlock()

	go a.readLoop(url, c)
	a.log.Info("connected", "url", url)
	return nil
}

func (a *Agent) readLoop(url string, c *conn) {
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			return
		}
		c.mu.Lock()
		if len(c.received) < recvBufferCap {
			c.received = append(c.received, string(msg))
		}
		c.mu.Unlock()
	}
}

func (a *Agent) lookup(url string) (*conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.conns[url]
	if !ok {
		return nil, fmt.Errorf("no connection to %s", url)
	}
	return c, nil
}

func (a *Agent) send(url, payload string) error {
	c, err := a.lookup(url)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(payload))
}

// expect polls the received-message buffer until one message satisfies
// the predicate or the timeout elapses.
func (a *Agent) expect(ctx context.Context, url string, expected any, timeout time.Duration) error {
	c, err := a.lookup(url)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	checked := 0
	for {
		c.mu.Lock()
		pending := c.received[checked:]
		closed := c.closed
		c.mu.Unlock()

		for _, msg := range pending {
			checked++
			ok, err := step.ValidateText(msg, expected)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		}
		if closed {
			return fmt.Errorf("connection closed before a matching message arrived")
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no message matching %v within %v (saw %d messages)", expected, timeout, checked)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *Agent) close(url string) error {
	a.mu.Lock()
	c, ok := a.conns[url]
	delete(a.conns, url)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}

// CloseAll tears down every connection; used by runner cleanup.
func (a *Agent) CloseAll() {
	a.mu.Lock()
	conns := a.conns
	a.conns = make(map[string]*conn)
	a.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}
