package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/config"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/session"
)

var sessionsAddr string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions on a running server",
	Long: `Query a running gadugi-test serve instance for its active and
recently exited terminal sessions.`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsAddr, "addr", "", "server address (defaults to api.listen_addr from config)")
}

func runSessions(cmd *cobra.Command, args []string) error {
	addr := sessionsAddr
	if addr == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		addr = cfg.API.ListenAddr
	}

	infos, err := fetchSessions(cmd.Context(), "http://"+addr)
	if err != nil {
		return err
	}
	printSessions(cmd, infos)
	return nil
}

func fetchSessions(ctx context.Context, baseURL string) ([]session.Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/sessions", nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query server (is serve running?): %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	var infos []session.Info
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func printSessions(cmd *cobra.Command, infos []session.Info) {
	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "no sessions")
		return
	}
	for _, info := range infos {
		fmt.Fprintf(out, "%s  pid=%d  %s  %s  events=%d  started %s\n",
			info.ID, info.PID, info.Status, info.Command, info.EventCount,
			info.StartTime.Format(time.RFC3339))
	}
}
