// Package generate turns natural-language feature descriptions into
// runnable scenario YAML via an LLM backend, validating the output
// before it is accepted.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/scenario"
)

// Backend is one LLM provider capable of a single-shot completion.
type Backend interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

const promptTemplate = `You write test scenarios for a terminal application test framework.
Produce exactly one YAML document, no prose, no markdown fences.

The document has this shape:

name: <short scenario name>
description: <one sentence>
steps:
  - name: <step name>
    action: <action>
    target: <command line for spawn, session id or URL otherwise>
    value: <input text, menu path, or method+body>
    expected: <validation predicate, optional>

Allowed actions: spawn, send_input, navigate_menu, validate_output,
validate_colors, capture_output, wait_for_output, resize_terminal,
kill_session, wait, http_request, ws_connect, ws_send, ws_expect, ws_close.
Validation predicates: plain text (exact match), "regex:<pattern>",
"contains:<text>", "starts_with:<text>", "ends_with:<text>", "empty",
"not_empty".
Steps after spawn refer to the session as target "session".

Feature to test:
%s`

// Generator drives one backend and validates what comes back.
type Generator struct {
	backend Backend
	log     *slog.Logger
}

func New(backend Backend, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{backend: backend, log: logger.With("component", "generate", "backend", backend.Name())}
}

// Scenario asks the backend for a scenario covering the description.
// The YAML must parse and validate; a malformed answer is an error,
// not something to silently repair.
func (g *Generator) Scenario(ctx context.Context, description string) (*scenario.Scenario, error) {
	raw, err := g.backend.Complete(ctx, fmt.Sprintf(promptTemplate, description))
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", g.backend.Name(), err)
	}

	doc := extractYAML(raw)
	var sc scenario.Scenario
	if err := yaml.Unmarshal([]byte(doc), &sc); err != nil {
		return nil, fmt.Errorf("generated scenario is not valid YAML: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("generated scenario rejected: %w", err)
	}
	g.log.Info("scenario generated", "scenario", sc.Name, "steps", len(sc.Steps))
	return &sc, nil
}

// WriteScenario generates a scenario and writes it under dir, named
// after the scenario.
func (g *Generator) WriteScenario(ctx context.Context, description, dir string) (string, error) {
	sc, err := g.Scenario(ctx, description)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, slugify(sc.Name)+".yaml")
	if err := sc.Write(path); err != nil {
		return "", err
	}
	return path, nil
}

// extractYAML tolerates models that wrap the document in markdown
// fences despite instructions.
func extractYAML(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```yaml")
	s = strings.TrimPrefix(s, "```yml")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
