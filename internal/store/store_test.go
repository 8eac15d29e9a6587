package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/runner"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/step"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport() *runner.Report {
	return &runner.Report{
		Scenario: "login flow",
		Path:     "scenarios/login.yaml",
		Status:   runner.StatusFailed,
		Started:  time.Now().UTC(),
		Duration: 1200 * time.Millisecond,
		Results: []step.Result{
			{
				Step: "start app", Action: "spawn", Target: "myapp",
				SessionID: "tui_1_abc", Status: step.StatusPassed,
				Duration: 300 * time.Millisecond, Output: "tui_1_abc",
			},
			{
				Step: "check prompt", Action: "validate_output", Target: "tui_1_abc",
				Status: step.StatusFailed, Duration: 900 * time.Millisecond,
				Error: "validate_output on tui_1_abc failed after 900ms: output validation failed, expected Login:",
			},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveReport(ctx, sampleReport())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "login flow", run.Scenario)
	require.Equal(t, runner.StatusFailed, run.Status)
	require.Equal(t, 1200*time.Millisecond, run.Duration)
	require.WithinDuration(t, time.Now(), run.Started, time.Minute)
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStepResultsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rep := sampleReport()
	id, err := s.SaveReport(ctx, rep)
	require.NoError(t, err)

	results, err := s.StepResults(ctx, id)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, rep.Results[0].Step, results[0].Step)
	require.Equal(t, step.StatusFailed, results[1].Status)
	require.Contains(t, results[1].Error, "output validation failed")
	require.Equal(t, 900*time.Millisecond, results[1].Duration)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := sampleReport()
	older.Scenario = "older"
	older.Started = time.Now().UTC().Add(-time.Hour)
	_, err := s.SaveReport(ctx, older)
	require.NoError(t, err)

	newer := sampleReport()
	newer.Scenario = "newer"
	_, err = s.SaveReport(ctx, newer)
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "newer", runs[0].Scenario)
	require.Equal(t, "older", runs[1].Scenario)
}

func TestRecentFailures(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.SaveReport(ctx, sampleReport())
	require.NoError(t, err)

	passing := sampleReport()
	passing.Status = runner.StatusPassed
	passing.Results = passing.Results[:1]
	_, err = s.SaveReport(ctx, passing)
	require.NoError(t, err)

	failures, err := s.RecentFailures(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	require.Equal(t, "check prompt", failures[0].Step)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	ctx := context.Background()

	s1, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s1.SaveReport(ctx, sampleReport())
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	runs, err := s2.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}
