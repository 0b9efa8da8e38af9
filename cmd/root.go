package cmd

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/iksnae/chef-chat/internal"
)

var (
	verbose    bool
	dataDir    string
	configFile string
	baseURL    string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chef-chat",
	Short: "Chat with the chef marketplace assistant from your terminal",
	Long: `A terminal client for the chef marketplace assistant.

Replies stream in as they are written, tool activity (searching chefs,
checking availability, ...) is shown while it runs, and conversations are
kept locally so they resume where you left off.

Without a stored access token the client chats as a guest.

Quick Start:
  chef-chat chat                          # Interactive chat
  chef-chat send "vegan chefs near me?"   # One message, reply on stdout
  chef-chat token set <access-token>      # Chat with your account
  chef-chat list                          # Local conversations`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is what most commands need: resolved paths, configuration and the
// opened client store
type env struct {
	paths  internal.DataPaths
	cfg    *internal.Config
	store  *internal.Storage
	client *http.Client
}

// loadEnv resolves the data directory, loads the configuration and opens
// the client store. The caller closes the store.
func loadEnv() (*env, error) {
	paths, err := dataPaths()
	if err != nil {
		return nil, err
	}
	cfg, err := internal.LoadConfig(paths.ConfigPath)
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
		if err := cfg.Validate(); err != nil {
			return nil, &internal.ConfigError{Path: "--base-url", Err: err}
		}
	}
	if err := paths.EnsureBaseDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := internal.OpenStorage(paths.StorePath)
	if err != nil {
		return nil, err
	}
	internal.LogDebug("Using data directory %s, server %s", paths.BaseDir, cfg.BaseURL)
	return &env{paths: paths, cfg: cfg, store: store, client: internal.NewHTTPClient(cfg)}, nil
}

// dataPaths applies --data-dir and --config
func dataPaths() (internal.DataPaths, error) {
	paths, err := internal.DetectDataPaths(dataDir)
	if err != nil {
		return paths, fmt.Errorf("failed to get data paths: %w", err)
	}
	if configFile != "" {
		paths.ConfigPath = configFile
	}
	return paths, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		internal.LogWarn("Failed to close store: %v", err)
	}
}

// newSession builds a chat session on the environment
func (e *env) newSession(notifier internal.Notifier) (*internal.ChatSession, error) {
	return internal.NewChatSession(internal.SessionOptions{
		Config:     e.cfg,
		Store:      e.store,
		HTTPClient: e.client,
		Notifier:   notifier,
	})
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Custom data directory (config, guest identity and conversations)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Assistant server base URL (overrides config and "+internal.EnvBaseURL+")")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
