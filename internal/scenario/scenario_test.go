package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/step"
)

const sampleScenario = `
name: smoke
description: spawn and check output
env:
  APP_MODE: test
timeout: 30000
steps:
  - action: spawn
    target: ./app --demo
  - action: wait_for_output
    target: session
    value: "Ready"
    timeout: 5000
  - action: validate_output
    target: session
    expected: "contains:Ready"
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "smoke.yaml", sampleScenario)

	s, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "smoke", s.Name)
	require.Equal(t, "test", s.Env["APP_MODE"])
	require.Equal(t, 30*time.Second, s.Timeout())
	require.Len(t, s.Steps, 3)
	require.Equal(t, "spawn", s.Steps[0].Action)
	require.Equal(t, "contains:Ready", s.Steps[2].Expected)
	require.Equal(t, path, s.Path)
}

func TestLoadFileRejectsUnknownAction(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "bad.yaml", `
name: bad
steps:
  - action: explode
    target: x
`)
	_, err := LoadFile(path)
	require.ErrorContains(t, err, `unknown action "explode"`)
}

func TestValidateRequiresNameAndSteps(t *testing.T) {
	s := &Scenario{}
	require.ErrorContains(t, s.Validate(), "no name")

	s.Name = "named"
	require.ErrorContains(t, s.Validate(), "no steps")
}

func TestValidateRequiresTargets(t *testing.T) {
	s := &Scenario{Name: "t", Steps: []step.Step{{Action: "validate_output"}}}
	require.ErrorContains(t, s.Validate(), "missing target")

	// wait is the one action that needs no target.
	s.Steps = []step.Step{{Action: "wait"}}
	require.NoError(t, s.Validate())
}

func TestLoadDirSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yaml", "name: b\nsteps:\n  - {action: wait, target: ''}\n")
	writeScenario(t, dir, "a.yml", "name: a\nsteps:\n  - {action: wait, target: ''}\n")
	writeScenario(t, dir, "notes.txt", "not a scenario")

	scenarios, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	require.Equal(t, "a", scenarios[0].Name)
	require.Equal(t, "b", scenarios[1].Name)
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := &Scenario{
		Name:  "generated",
		Steps: []step.Step{{Action: "spawn", Target: "./app"}},
	}
	path := filepath.Join(dir, "generated.yaml")
	require.NoError(t, s.Write(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "generated", loaded.Name)
	require.Equal(t, "./app", loaded.Steps[0].Target)
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "one.yaml", "name: one\nsteps:\n  - {action: wait, target: ''}\n")

	reloaded := make(chan int, 1)
	w, err := Watch(dir, func(scenarios []*Scenario) {
		select {
		case reloaded <- len(scenarios):
		default:
		}
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	writeScenario(t, dir, "two.yaml", "name: two\nsteps:\n  - {action: wait, target: ''}\n")

	select {
	case n := <-reloaded:
		require.Equal(t, 2, n)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reloaded")
	}
}
