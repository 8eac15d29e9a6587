package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/config"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/scenario"
)

const minimalScenario = `name: ping
steps:
  - name: pause
    action: wait
    value: "10"
`

func TestLoadScenariosFileAndDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.yaml")
	require.NoError(t, os.WriteFile(file, []byte(minimalScenario), 0o644))

	scs, err := loadScenarios([]string{file})
	require.NoError(t, err)
	require.Len(t, scs, 1)
	require.Equal(t, "ping", scs[0].Name)

	scs, err = loadScenarios([]string{dir})
	require.NoError(t, err)
	require.Len(t, scs, 1)
}

func TestLoadScenariosEmptyDir(t *testing.T) {
	_, err := loadScenarios([]string{t.TempDir()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no scenarios")
}

func TestLoadScenariosMissingPath(t *testing.T) {
	_, err := loadScenarios([]string{filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
}

func TestWatchScenariosRerunsOnChange(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchScenarios(ctx, dir, func(scs []*scenario.Scenario) error {
			names := make([]string, len(scs))
			for i, sc := range scs {
				names[i] = sc.Name
			}
			batches <- names
			return nil
		})
	}()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(minimalScenario), 0o644))

	select {
	case names := <-batches:
		require.Equal(t, []string{"ping"}, names)
	case <-time.After(5 * time.Second):
		t.Fatal("no rerun after scenario file change")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatchScenariosMissingDir(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := watchScenarios(ctx, filepath.Join(t.TempDir(), "nope"), func([]*scenario.Scenario) error { return nil })
	require.Error(t, err)
}

func TestBuildBackendRequiresKey(t *testing.T) {
	_, err := buildBackend(context.Background(), config.Generate{Backend: "openai"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "openai_key")

	_, err = buildBackend(context.Background(), config.Generate{Backend: "gemini"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "gemini_key")
}
