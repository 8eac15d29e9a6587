// Package cmd implements the gadugi-test CLI.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/agents/httpagent"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/agents/wsagent"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/config"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/menu"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/runner"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/session"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/step"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/terminal"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gadugi-test",
	Short: "Agentic terminal application testing",
	Long: `gadugi-test runs YAML test scenarios against terminal applications.

Scenarios spawn real processes, type into them, navigate their menus,
and validate text and color output. Results are stored in sqlite and
can be triaged into GitHub issues.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "gadugi.toml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(triageCmd)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		return 1
	}
	return exitCode
}

// exitCode lets run report scenario failures without treating them as
// command errors.
var exitCode int

// engine bundles everything a scenario run needs.
type engine struct {
	sup    *session.Supervisor
	runner *runner.Runner
}

func buildEngine(cfg config.Config) *engine {
	sup := session.NewSupervisor(session.Config{
		GracePeriod:    cfg.GracePeriod(),
		TranscriptSize: cfg.Session.TranscriptSize,
	}, nil)

	wait := session.WaitConfig{
		PollInterval:    cfg.PollInterval(),
		StableThreshold: cfg.Wait.StableThreshold,
		Timeout:         cfg.WaitTimeout(),
	}
	in := session.NewInput(sup, terminal.HostKeyMap())
	nav := menu.New(sup, in, menu.Config{Wait: wait}, nil)
	disp := step.NewDispatcher(sup, in, nav, step.Config{
		Wait:          wait,
		KeyDelay:      time.Duration(cfg.Input.KeyDelayMS) * time.Millisecond,
		ResponseDelay: time.Duration(cfg.Input.ResponseDelayMS) * time.Millisecond,
	}, nil)

	return &engine{
		sup:    sup,
		runner: runner.New(sup, disp, httpagent.New(nil, nil), wsagent.New(nil, nil), nil),
	}
}

func (e *engine) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = e.sup.Shutdown(ctx)
}
