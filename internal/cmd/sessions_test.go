package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/session"
)

func TestFetchSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/sessions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"tui_1_abc","pid":42,"command":"vim","status":"running","eventCount":3}]`))
	}))
	defer srv.Close()

	infos, err := fetchSessions(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "tui_1_abc", infos[0].ID)
	require.Equal(t, session.StatusRunning, infos[0].Status)
}

func TestFetchSessionsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := fetchSessions(context.Background(), srv.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestPrintSessions(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	printSessions(cmd, nil)
	require.Contains(t, buf.String(), "no sessions")

	buf.Reset()
	printSessions(cmd, []session.Info{{
		ID: "tui_1_abc", PID: 42, Command: "vim",
		Status: session.StatusRunning, EventCount: 3,
		StartTime: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}})
	out := buf.String()
	require.Contains(t, out, "tui_1_abc")
	require.Contains(t, out, "pid=42")
	require.Contains(t, out, "running")
}
