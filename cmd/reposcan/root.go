package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fumiya-kume/reposcan/pkg/config"
	"github.com/fumiya-kume/reposcan/pkg/logger"
	"github.com/fumiya-kume/reposcan/pkg/ui"
)

var (
	cfgFile    string
	verbose    bool
	debug      bool
	jsonOutput bool
	themeName  string

	// appConfig is loaded by initConfig before any command runs
	appConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reposcan",
	Short: "Repository acquisition and project profiling for code review agents",
	Long: `reposcan clones Git repositories, profiles their languages and frameworks,
extracts pull and merge request diffs and assembles a serializable project
context for downstream review agents.

Every command maps onto a tool from the agent runtime boundary; pass --json to
get the raw tool result.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), renderError(ui.NewRenderer(rootCmd.ErrOrStderr(), themeName), err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/reposcan/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "log file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON tool results")
	rootCmd.PersistentFlags().StringVar(&themeName, "theme", "dark", "output theme (dark, light)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	cfg, err := config.NewLoader(cfgFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Warning: Failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
		cfg.ApplyEnvironmentOverrides()
	}

	logLevel, err := rootCmd.PersistentFlags().GetString("log-level")
	if err != nil {
		logLevel = ""
	}
	switch {
	case debug:
		cfg.Logging.Level = "debug"
	case logLevel != "":
		cfg.Logging.Level = logLevel
	}

	logFile, err := rootCmd.PersistentFlags().GetString("log-file")
	if err != nil {
		logFile = ""
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}

	loggerConfig := cfg.ToLoggerConfig()
	if !verbose && !debug && logLevel == "" && loggerConfig.Level == logger.LevelInfo {
		// info lines would interleave with rendered results
		loggerConfig.Level = logger.LevelWarn
	}

	globalLogger, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Warning: Failed to initialize logger: %v\n", err)
		globalLogger = logger.NewDefault()
	}
	logger.SetGlobalLogger(globalLogger)

	appConfig = cfg
}
