package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/config"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/issue"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/store"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/triage"
)

var (
	triageLimit      int
	triageFileIssues bool
)

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Triage recent failures",
	Long: `Classify recent failed steps from the result store, fold
duplicates together, and optionally file a GitHub issue per distinct
failure.`,
	RunE: runTriage,
}

func init() {
	triageCmd.Flags().IntVar(&triageLimit, "limit", 100, "failures to examine")
	triageCmd.Flags().BoolVar(&triageFileIssues, "file-issues", false, "file GitHub issues for findings")
}

func runTriage(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer results.Close()

	failures, err := results.RecentFailures(ctx, triageLimit)
	if err != nil {
		return err
	}

	occurrences := make([]triage.Occurrence, 0, len(failures))
	for _, res := range failures {
		occurrences = append(occurrences, triage.Occurrence{Result: res})
	}
	findings := triage.Triage(occurrences)

	out := cmd.OutOrStdout()
	if len(findings) == 0 {
		fmt.Fprintln(out, "no failures to triage")
		return nil
	}
	for _, f := range findings {
		fmt.Fprintf(out, "%s  x%d  %s\n", f.Signature, len(f.Occurrences), f.Title())
	}

	if !triageFileIssues {
		return nil
	}

	client, err := issue.New(issue.Config{Repo: cfg.GitHub.Repo, Token: cfg.GitHub.Token}, nil, nil)
	if err != nil {
		return err
	}
	created, err := client.FileFindings(ctx, findings)
	if err != nil {
		return err
	}
	for _, is := range created {
		fmt.Fprintf(out, "filed %s\n", is.HTMLURL)
	}
	return nil
}
