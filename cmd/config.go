package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iksnae/chef-chat/internal"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := dataPaths()
		if err != nil {
			return err
		}
		if _, err := os.Stat(paths.ConfigPath); err == nil && !configForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", paths.ConfigPath)
		}

		cfg := internal.DefaultConfig()
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		if err := cfg.Validate(); err != nil {
			return &internal.ConfigError{Path: paths.ConfigPath, Err: err}
		}
		if err := internal.SaveConfig(paths.ConfigPath, cfg); err != nil {
			return err
		}
		internal.PrintSuccess(fmt.Sprintf("Config written to %s", paths.ConfigPath))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", e.paths.ConfigPath)
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(e.cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
}
