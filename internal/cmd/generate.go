package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/config"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/generate"
)

var generateOutDir string

var generateCmd = &cobra.Command{
	Use:   "generate <feature description>",
	Short: "Generate a scenario from a feature description",
	Long: `Generate a test scenario from a natural-language feature
description using the configured LLM backend, validate it, and write
it to the scenario directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateOutDir, "out", "", "output directory (default from config)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	backend, err := buildBackend(ctx, cfg.Generate)
	if err != nil {
		return err
	}

	dir := generateOutDir
	if dir == "" {
		dir = cfg.Generate.ScenarioDir
	}

	g := generate.New(backend, nil)
	path, err := g.WriteScenario(ctx, strings.Join(args, " "), dir)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func buildBackend(ctx context.Context, cfg config.Generate) (generate.Backend, error) {
	switch cfg.Backend {
	case "", "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("generate.openai_key is not configured")
		}
		return generate.NewOpenAIBackend(cfg.OpenAIKey, cfg.OpenAIModel), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("generate.gemini_key is not configured")
		}
		return generate.NewGeminiBackend(ctx, cfg.GeminiKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
