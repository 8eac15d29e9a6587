package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/monitor"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/realtime"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/session"
)

func newTestServer(t *testing.T) (*httptest.Server, *Handler, *session.Supervisor) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sup := session.NewSupervisor(session.Config{}, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sup.Shutdown(ctx)
	})

	h := NewHandler(sup, nil, nil, nil)
	r := chi.NewRouter()
	h.Mount(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, h, sup
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestListSessionsEmpty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var infos []session.Info
	resp := getJSON(t, srv.URL+"/api/sessions", &infos)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(infos) != 0 {
		t.Fatalf("expected no sessions, got %d", len(infos))
	}
}

func TestGetSessionAndOutput(t *testing.T) {
	srv, _, sup := newTestServer(t)

	id, err := sup.Spawn(context.Background(), session.SpawnConfig{Command: "echo", Args: []string{"hello api"}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	done, _ := sup.Done(id)
	<-done

	var info session.Info
	resp := getJSON(t, srv.URL+"/api/sessions/"+id, &info)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if info.ID != id || info.Command != "echo" {
		t.Fatalf("unexpected info: %+v", info)
	}

	var output struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	getJSON(t, srv.URL+"/api/sessions/"+id+"/output", &output)
	if !strings.Contains(output.Text, "hello api") {
		t.Fatalf("output missing text: %q", output.Text)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := getJSON(t, srv.URL+"/api/sessions/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSendInputValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/sessions/nope/input", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for empty input", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/api/sessions/nope/input", "application/json", strings.NewReader(`{"input":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown session", resp.StatusCode)
	}
}

func TestRunsWithoutStore(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := getJSON(t, srv.URL+"/api/runs", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestMonitorEndpoint(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sup := session.NewSupervisor(session.Config{}, nil)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sup.Shutdown(ctx)
	}()

	mon := monitor.New(monitor.Config{}, sup, nil)
	h := NewHandler(sup, nil, mon, nil)
	r := chi.NewRouter()
	h.Mount(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	var body struct {
		Latest  monitor.Sample `json:"latest"`
		Clients int            `json:"clients"`
	}
	resp := getJSON(t, srv.URL+"/api/monitor", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func dialRealtime(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/realtime"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial realtime: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRealtimePingPong(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dialRealtime(t, srv)

	if err := conn.WriteJSON(clientEnvelope{Type: "ping"}); err != nil {
		t.Fatal(err)
	}
	var env realtime.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "pong" {
		t.Fatalf("type = %q, want pong", env.Type)
	}
}

func TestRealtimeSubscribeRejectsUnknownTopic(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dialRealtime(t, srv)

	if err := conn.WriteJSON(clientEnvelope{Type: "subscribe", Topics: []string{"bogus"}}); err != nil {
		t.Fatal(err)
	}
	var env realtime.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "error" {
		t.Fatalf("type = %q, want error", env.Type)
	}
}

func TestRealtimeSessionOutputStream(t *testing.T) {
	srv, _, sup := newTestServer(t)
	conn := dialRealtime(t, srv)

	// Subscribing to a session topic gets a snapshot envelope first.
	topic := "session.output.pending"
	if err := conn.WriteJSON(clientEnvelope{Type: "subscribe", Topics: []string{topic}}); err != nil {
		t.Fatal(err)
	}
	var snap realtime.Envelope
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Type != "snapshot" {
		t.Fatalf("type = %q, want snapshot", snap.Type)
	}

	// Output events for subscribed sessions arrive as they happen. We
	// cannot know the id before spawn, so subscribe to the sessions
	// topic shape by spawning and subscribing in order.
	id, err := sup.Spawn(context.Background(), session.SpawnConfig{Command: "sh", Args: []string{"-c", "sleep 0.3; echo streamed"}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := conn.WriteJSON(clientEnvelope{Type: "subscribe", Topics: []string{realtime.SessionOutputTopic(id)}}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var env realtime.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read: %v", err)
		}
		if env.Type != "event" {
			continue
		}
		if env.Topic != realtime.SessionOutputTopic(id) {
			t.Fatalf("topic = %q", env.Topic)
		}
		payload, _ := json.Marshal(env.Payload)
		if strings.Contains(string(payload), "streamed") {
			return
		}
	}
}
