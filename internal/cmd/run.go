package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/config"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/runner"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/scenario"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/step"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/store"
)

var (
	runNoStore bool
	runWatch   bool
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml | dir> [more...]",
	Short: "Run test scenarios",
	Long: `Run one or more scenario files, or every scenario in a directory.

Scenarios run sequentially. Each report is persisted to the result
store unless --no-store is given. The exit code is non-zero when any
scenario fails.

With --watch the argument must be a single directory; after the initial
pass the directory is watched and the scenario set is rerun whenever a
file in it changes, until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "skip persisting results")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "rerun scenarios when the directory changes")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if runWatch {
		if len(args) != 1 {
			return fmt.Errorf("--watch takes a single scenario directory")
		}
		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("--watch takes a directory, not %s", args[0])
		}
	}

	scenarios, err := loadScenarios(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := buildEngine(cfg)
	defer eng.shutdown()

	var results *store.Store
	if !runNoStore {
		results, err = store.Open(ctx, cfg.Store.Path)
		if err != nil {
			return err
		}
		defer results.Close()
	}

	if err := runBatch(ctx, cmd, eng, results, scenarios); err != nil {
		return err
	}
	if !runWatch {
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s for changes\n", args[0])
	return watchScenarios(ctx, args[0], func(scs []*scenario.Scenario) error {
		return runBatch(ctx, cmd, eng, results, scs)
	})
}

// runBatch runs one scenario set, persists and prints every report, and
// records a failing exit code when any scenario did not pass.
func runBatch(ctx context.Context, cmd *cobra.Command, eng *engine, results *store.Store, scenarios []*scenario.Scenario) error {
	reports := eng.runner.RunAll(ctx, scenarios)

	failed := 0
	for _, rep := range reports {
		if results != nil {
			if _, err := results.SaveReport(ctx, rep); err != nil {
				return fmt.Errorf("save report for %s: %w", rep.Scenario, err)
			}
		}
		printReport(cmd, rep)
		if rep.Status != runner.StatusPassed {
			failed++
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d scenario(s), %d failed\n", len(reports), failed)
	if failed > 0 {
		exitCode = 1
	}
	return nil
}

// watchScenarios blocks until ctx is cancelled, rerunning run for each
// settled change under dir. Reloads arriving while a batch is in flight
// coalesce into at most one pending rerun.
func watchScenarios(ctx context.Context, dir string, run func([]*scenario.Scenario) error) error {
	reloads := make(chan []*scenario.Scenario, 1)
	w, err := scenario.Watch(dir, func(scs []*scenario.Scenario) {
		select {
		case reloads <- scs:
		default:
		}
	}, nil)
	if err != nil {
		return err
	}
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case scs := <-reloads:
			if err := run(scs); err != nil {
				return err
			}
		}
	}
}

func loadScenarios(paths []string) ([]*scenario.Scenario, error) {
	var all []*scenario.Scenario
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			scs, err := scenario.LoadDir(path)
			if err != nil {
				return nil, err
			}
			all = append(all, scs...)
			continue
		}
		sc, err := scenario.LoadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, sc)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no scenarios found in %v", paths)
	}
	return all, nil
}

func printReport(cmd *cobra.Command, rep *runner.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s (%v)\n", rep.Scenario, rep.Status, rep.Duration.Round(time.Millisecond))
	for _, res := range rep.Results {
		mark := "ok"
		if res.Status == step.StatusFailed {
			mark = "FAIL"
		}
		fmt.Fprintf(out, "  [%s] %s (%v)\n", mark, res.Step, res.Duration.Round(time.Millisecond))
		if res.Error != "" {
			fmt.Fprintf(out, "       %s\n", res.Error)
		}
	}
}
