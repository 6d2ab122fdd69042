package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fumiya-kume/reposcan/pkg/config"
	"github.com/fumiya-kume/reposcan/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage reposcan configuration",
	Long: `Manage reposcan configuration settings.

Configuration files are searched in the following order:
  1. $REPOSCAN_CONFIG (if set)
  2. ./.reposcan.yaml
  3. ~/.reposcan.yaml
  4. ~/.config/reposcan/config.yaml

Environment variables such as REPOSCAN_WORKSPACE, GITHUB_API_URL and
GITLAB_BASE_URL override file settings.`,
}

// configShowCmd shows the current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective configuration, including defaults and environment overrides.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewLoader(cfgFile).LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal configuration: %w", err)
		}

		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

// configValidateCmd validates the configuration
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the configuration file and report settings that will not work on this machine.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewLoader(cfgFile).LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		r := ui.NewRenderer(cmd.OutOrStdout(), themeName)
		result := config.NewConfigValidator(config.ValidationLevelStrict).ValidateConfig(cfg)
		for _, warning := range result.Warnings {
			fmt.Fprintln(cmd.OutOrStdout(), r.Status(ui.StatusWarning, warning))
		}
		if result.HasErrors() {
			for _, e := range result.Errors {
				fmt.Fprintln(cmd.OutOrStdout(), r.Status(ui.StatusError, e.Error()))
			}
			return fmt.Errorf("configuration validation failed with %d error(s)", len(result.Errors))
		}

		fmt.Fprintln(cmd.OutOrStdout(), r.Status(ui.StatusSuccess, "Configuration is valid"))
		return nil
	},
}

// configInitCmd initializes a new configuration file
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a new configuration file",
	Long: `Initialize a new configuration file with default settings.

If no path is provided, creates config in ~/.config/reposcan/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var configPath string
		if len(args) > 0 {
			configPath = args[0]
		} else {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			configPath = path
		}

		if _, err := os.Stat(configPath); err == nil {
			overwrite, err := cmd.Flags().GetBool("force")
			if err != nil {
				return fmt.Errorf("failed to get force flag: %w", err)
			}
			if !overwrite {
				return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
			}
		}

		if err := config.CreateDefaultConfig(configPath); err != nil {
			return fmt.Errorf("failed to create configuration file: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at: %s\n", configPath)
		return nil
	},
}

// configPathCmd shows the path to the configuration file
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  "Display the path to the configuration file that would be used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			fmt.Fprintln(cmd.OutOrStdout(), cfgFile)
			return nil
		}

		for _, path := range config.GetConfigPaths() {
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}
		}

		defaultPath, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (would be created)\n", defaultPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolP("force", "f", false, "overwrite existing configuration file")
}
