// Package scenario loads and validates YAML scenario files, the input
// vocabulary of the test runner.
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/step"
)

// Scenario is one scripted test: a named sequence of steps with
// scenario-level environment and timeout defaults.
type Scenario struct {
	Name              string            `yaml:"name" json:"name"`
	Description       string            `yaml:"description,omitempty" json:"description,omitempty"`
	Env               map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	TimeoutMS         int               `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	ContinueOnFailure bool              `yaml:"continue_on_failure,omitempty" json:"continueOnFailure,omitempty"`
	Steps             []step.Step       `yaml:"steps" json:"steps"`

	// Path is where the scenario was loaded from, empty for generated
	// scenarios that have not been written yet.
	Path string `yaml:"-" json:"path,omitempty"`
}

// Timeout returns the scenario-level timeout, zero when unset.
func (s *Scenario) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// knownActions is the full dispatchable vocabulary: the terminal engine
// actions plus the HTTP and WebSocket agent actions.
var knownActions = map[string]bool{
	"spawn":           true,
	"send_input":      true,
	"navigate_menu":   true,
	"validate_output": true,
	"validate_colors": true,
	"capture_output":  true,
	"wait_for_output": true,
	"resize_terminal": true,
	"kill_session":    true,
	"wait":            true,
	"http_request":    true,
	"ws_connect":      true,
	"ws_send":         true,
	"ws_expect":       true,
	"ws_close":        true,
}

// Validate checks structural soundness before a scenario is run.
func (s *Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("scenario has no name")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	for i, st := range s.Steps {
		if !knownActions[st.Action] {
			return fmt.Errorf("scenario %q step %d: unknown action %q", s.Name, i, st.Action)
		}
		if st.Target == "" && st.Action != "wait" {
			return fmt.Errorf("scenario %q step %d (%s): missing target", s.Name, i, st.Action)
		}
	}
	return nil
}

// LoadFile parses and validates a single scenario file.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	s.Path = path
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadDir loads every .yaml/.yml scenario in a directory, sorted by
// file name so run order is deterministic.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Write serializes a scenario to YAML at the given path.
func (s *Scenario) Write(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write scenario: %w", err)
	}
	s.Path = path
	return nil
}
