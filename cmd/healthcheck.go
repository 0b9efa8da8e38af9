package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/chef-chat/internal"
)

var healthcheckOffline bool

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that chef-chat is configured and can reach the assistant",
	Long: `Check the health of chef-chat by verifying:
  • Data directory and configuration
  • Local store access (identity, conversations)
  • Assistant server reachability (skipped with --offline)

This command is useful for debugging connection and configuration issues.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("chef-chat health check"))
		fmt.Fprintln(out)

		fmt.Fprintln(out, infoStyle.Render("Step 1: Loading configuration..."))
		paths, err := dataPaths()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("✗ Failed to detect data directory:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		storeExisted := paths.StoreExists()

		e, err := loadEnv()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("✗ Configuration failed:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		defer e.Close()
		fmt.Fprintln(out, successStyle.Render("✓ Configuration loaded"))
		fmt.Fprintf(out, "   Data directory: %s\n", e.paths.BaseDir)
		fmt.Fprintf(out, "   Server: %s\n", e.cfg.BaseURL)
		fmt.Fprintln(out)

		fmt.Fprintln(out, infoStyle.Render("Step 2: Reading local store..."))
		creds, err := e.store.Credentials()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("✗ Store unreadable:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		transcripts, err := e.store.LoadTranscripts()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("✗ Conversations unreadable:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		mode := internal.ModeGuest
		if creds.AccessToken != "" {
			mode = internal.ModeAuthenticated
		}
		fmt.Fprintln(out, successStyle.Render("✓ Store accessible"))
		if !storeExisted {
			fmt.Fprintln(out, "   Store: created (first run)")
		}
		fmt.Fprintf(out, "   Mode: %s\n", mode)
		fmt.Fprintf(out, "   Conversations: %d\n", len(transcripts))
		fmt.Fprintln(out)

		if healthcheckOffline {
			fmt.Fprintln(out, warningStyle.Render("⚠ Server check skipped (--offline)"))
			return nil
		}

		fmt.Fprintln(out, infoStyle.Render("Step 3: Contacting the assistant server..."))
		status, err := probeServer(commandContext(cmd), e.client, e.cfg.BaseURL)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("✗ Server unreachable:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		if status >= 500 {
			fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("⚠ Server answered HTTP %d", status)))
		} else {
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Server reachable (HTTP %d)", status)))
		}
		fmt.Fprintln(out)

		fmt.Fprintln(out, successStyle.Render("✓ Health check passed!"))
		return nil
	},
}

// probeServer reports the status of a GET on the base URL. Any HTTP
// answer means the server is reachable.
func probeServer(ctx context.Context, client *http.Client, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	return resp.StatusCode, nil
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckOffline, "offline", false, "Skip the server check")
}
