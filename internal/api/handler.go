// Package api exposes the reporting and control surface: session
// inspection, run history, monitor snapshots, and the realtime
// WebSocket feed.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/monitor"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/realtime"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/session"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/step"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/store"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/terminal"
)

// Handler routes REST requests to the supervisor, store, and monitor.
type Handler struct {
	sup     *session.Supervisor
	results *store.Store
	mon     *monitor.Monitor
	hub     *realtime.Hub
	log     *slog.Logger
}

// NewHandler wires the handler and bridges supervisor output events
// into the realtime hub.
func NewHandler(sup *session.Supervisor, results *store.Store, mon *monitor.Monitor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		sup:     sup,
		results: results,
		mon:     mon,
		hub:     realtime.NewHub(),
		log:     logger.With("component", "api"),
	}
	if sup != nil {
		sup.SetEventSink(func(sessionID string, ev session.OutputEvent) {
			h.hub.Publish(realtime.Envelope{
				Topic:   realtime.SessionOutputTopic(sessionID),
				Type:    "event",
				Payload: ev,
			})
		})
	}
	return h
}

// Hub exposes the realtime hub so the runner's step observer can
// publish results through it.
func (h *Handler) Hub() *realtime.Hub {
	return h.hub
}

// PublishResult pushes one step result to realtime subscribers.
func (h *Handler) PublishResult(scenarioName string, res step.Result) {
	h.hub.Publish(realtime.Envelope{
		Topic: realtime.TopicResults,
		Type:  "event",
		Payload: map[string]any{
			"scenario": scenarioName,
			"result":   res,
		},
	})
}

// Mount registers all API routes on the provided router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/api/sessions", h.listSessions)
	r.Get("/api/sessions/{id}", h.getSession)
	r.Get("/api/sessions/{id}/output", h.getSessionOutput)
	r.Post("/api/sessions/{id}/input", h.sendSessionInput)
	r.Post("/api/sessions/{id}/resize", h.resizeSession)
	r.Delete("/api/sessions/{id}", h.killSession)
	r.Get("/api/runs", h.listRuns)
	r.Get("/api/runs/{id}", h.getRun)
	r.Get("/api/monitor", h.getMonitor)
	r.Get("/api/realtime", h.realtimeWebSocket)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sup.List())
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.sup.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) getSessionOutput(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	text, err := h.sup.CombinedText(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found", err.Error())
		return
	}
	resp := map[string]any{"id": id, "text": text}
	if raw, truncated, err := h.sup.Transcript(id); err == nil {
		resp["raw"] = string(raw)
		resp["truncated"] = truncated
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) sendSessionInput(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, "input is required", "")
		return
	}
	if err := h.sup.WriteInput(chi.URLParam(r, "id"), []byte(req.Input)); err != nil {
		var notFound *session.SessionNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "session not found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to send input", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resizeSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cols int `json:"cols"`
		Rows int `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Cols <= 0 || req.Rows <= 0 {
		writeError(w, http.StatusBadRequest, "cols and rows must be positive", "")
		return
	}
	if err := h.sup.Resize(chi.URLParam(r, "id"), terminal.Size{Cols: req.Cols, Rows: req.Rows}); err != nil {
		var notFound *session.SessionNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "session not found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resize", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) killSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := h.sup.Kill(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to kill session", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		writeError(w, http.StatusServiceUnavailable, "result store not configured", "")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.results.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs", err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		writeError(w, http.StatusServiceUnavailable, "result store not configured", "")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := h.results.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load run", err.Error())
		return
	}
	results, err := h.results.StepResults(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load step results", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "results": results})
}

func (h *Handler) getMonitor(w http.ResponseWriter, r *http.Request) {
	if h.mon == nil {
		writeError(w, http.StatusServiceUnavailable, "monitor not configured", "")
		return
	}
	latest, ok := h.mon.Latest()
	if !ok {
		latest = h.mon.Sample()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"latest":  latest,
		"window":  h.mon.Samples(),
		"clients": h.hub.ClientCount(),
	})
}

func generateID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message, details string) {
	writeJSON(w, code, errorResponse{Error: message, Details: details})
}
