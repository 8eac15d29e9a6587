// Package runner executes scenarios: it routes each step to the
// terminal dispatcher or one of the protocol agents, enforces
// scenario-level timeouts, and guarantees session cleanup.
package runner

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/agents/httpagent"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/agents/wsagent"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/scenario"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/session"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/step"
)

// Status summarizes a whole scenario run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusAborted Status = "aborted"
)

// Report is the outcome of one scenario run.
type Report struct {
	Scenario string        `json:"scenario"`
	Path     string        `json:"path,omitempty"`
	Status   Status        `json:"status"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Results  []step.Result `json:"results"`
}

// Failures returns the failed step results.
func (r *Report) Failures() []step.Result {
	var out []step.Result
	for _, res := range r.Results {
		if res.Status == step.StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// StepObserver is notified after every executed step. Used to stream
// progress into the store and over the realtime hub.
type StepObserver func(scenarioName string, res step.Result)

// Runner owns one dispatcher and one agent pair and runs scenarios
// against them sequentially.
type Runner struct {
	sup      *session.Supervisor
	disp     *step.Dispatcher
	http     *httpagent.Agent
	ws       *wsagent.Agent
	log      *slog.Logger
	observer StepObserver
}

// New wires a runner. The supervisor is referenced directly for
// post-scenario cleanup; steps reach it through the dispatcher.
func New(sup *session.Supervisor, disp *step.Dispatcher, http *httpagent.Agent, ws *wsagent.Agent, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		sup:  sup,
		disp: disp,
		http: http,
		ws:   ws,
		log:  logger.With("component", "runner"),
	}
}

// SetObserver installs a per-step callback. Must be called before Run.
func (r *Runner) SetObserver(obs StepObserver) {
	r.observer = obs
}

// Run executes one scenario and always tears down the sessions and
// connections it opened, even on early failure or timeout.
func (r *Runner) Run(ctx context.Context, sc *scenario.Scenario) *Report {
	rep := &Report{
		Scenario: sc.Name,
		Path:     sc.Path,
		Status:   StatusPassed,
		Started:  time.Now(),
	}
	r.log.Info("scenario starting", "scenario", sc.Name, "steps", len(sc.Steps))

	if t := sc.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.sup.KillAll(cleanupCtx); err != nil {
			r.log.Warn("session cleanup", "error", err)
		}
		r.ws.CloseAll()
	}()

	for i := range sc.Steps {
		if err := ctx.Err(); err != nil {
			rep.Status = StatusAborted
			r.log.Warn("scenario aborted", "scenario", sc.Name, "after", i, "error", err)
			break
		}

		st := sc.Steps[i]
		st.Env = mergeEnv(sc.Env, st.Env)

		res := r.execute(ctx, st)
		rep.Results = append(rep.Results, res)
		if r.observer != nil {
			r.observer(sc.Name, res)
		}

		if res.Status == step.StatusFailed {
			rep.Status = StatusFailed
			if ctx.Err() != nil {
				rep.Status = StatusAborted
				r.log.Warn("scenario aborted", "scenario", sc.Name, "step", st.Name)
				break
			}
			if sc.ContinueOnFailure || st.ContinueOnFailure {
				r.log.Warn("step failed, continuing", "scenario", sc.Name, "step", st.Name)
				continue
			}
			r.log.Warn("step failed, stopping", "scenario", sc.Name, "step", st.Name)
			break
		}
	}

	rep.Duration = time.Since(rep.Started)
	r.log.Info("scenario finished", "scenario", sc.Name, "status", rep.Status, "duration", rep.Duration)
	return rep
}

// RunAll runs scenarios in order. A failed scenario does not stop the
// batch; a cancelled context does.
func (r *Runner) RunAll(ctx context.Context, scs []*scenario.Scenario) []*Report {
	reports := make([]*Report, 0, len(scs))
	for _, sc := range scs {
		if ctx.Err() != nil {
			break
		}
		reports = append(reports, r.Run(ctx, sc))
	}
	return reports
}

func (r *Runner) execute(ctx context.Context, st step.Step) step.Result {
	switch {
	case st.Action == "http_request":
		return r.http.Execute(ctx, st)
	case strings.HasPrefix(st.Action, "ws_"):
		return r.ws.Execute(ctx, st)
	default:
		return r.disp.Execute(ctx, st)
	}
}

// mergeEnv layers step vars over scenario vars.
func mergeEnv(base, over map[string]string) map[string]string {
	if len(base) == 0 {
		return over
	}
	merged := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range over {
		merged[k] = v
	}
	return merged
}
