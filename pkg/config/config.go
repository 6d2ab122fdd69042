// Package config provides configuration management and settings for reposcan
package config

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fumiya-kume/reposcan/pkg/logger"
)

const (
	logLevelDebug = "debug"

	// DefaultMaxFileSizeMB is the per-file size limit used by context assembly
	DefaultMaxFileSizeMB = 1.0
)

// DefaultExcludeExtensions are skipped by context assembly: compiled artifacts,
// binaries, media and archives.
var DefaultExcludeExtensions = []string{
	".pyc", ".pyo", ".class", ".jar", ".war", ".ear",
	".exe", ".dll", ".so", ".dylib",
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".svg", ".ico",
	".mp3", ".mp4", ".avi", ".mov", ".wav",
	".zip", ".tar", ".gz", ".bz2", ".rar", ".7z",
}

// DefaultRulesets are always passed to the scanner
var DefaultRulesets = []string{"p/security-audit", "p/owasp-top-10"}

// ValidationLevel represents the level of configuration validation
type ValidationLevel int

const (
	ValidationLevelBasic ValidationLevel = iota
	ValidationLevelStrict
)

// ConfigValidator validates configuration and collects non-fatal warnings
type ConfigValidator struct {
	level ValidationLevel
}

// ConfigValidationResult contains validation results
type ConfigValidationResult struct {
	Errors   []error
	Warnings []string
}

// HasErrors returns true if there are validation errors
func (cvr *ConfigValidationResult) HasErrors() bool {
	return len(cvr.Errors) > 0
}

// NewConfigValidator creates a new config validator
func NewConfigValidator(level ValidationLevel) *ConfigValidator {
	return &ConfigValidator{level: level}
}

// ValidateConfig validates a configuration
func (cv *ConfigValidator) ValidateConfig(config *Config) *ConfigValidationResult {
	result := &ConfigValidationResult{
		Errors:   []error{},
		Warnings: []string{},
	}

	if config == nil {
		result.Errors = append(result.Errors, fmt.Errorf("config cannot be nil"))
		return result
	}

	if err := config.Validate(); err != nil {
		result.Errors = append(result.Errors, err)
	}

	cv.validateURLs(config, result)
	cv.validateStrictLevel(config, result)

	return result
}

func (cv *ConfigValidator) validateURLs(config *Config, result *ConfigValidationResult) {
	for name, raw := range map[string]string{
		"platforms.github.api_url":  config.Platforms.GitHub.APIURL,
		"platforms.gitlab.base_url": config.Platforms.GitLab.BaseURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			result.Errors = append(result.Errors, fmt.Errorf("%s is not an absolute URL: %s", name, raw))
		}
	}
}

func (cv *ConfigValidator) validateStrictLevel(config *Config, result *ConfigValidationResult) {
	if cv.level < ValidationLevelStrict {
		return
	}

	if _, err := exec.LookPath(config.Scanner.Command); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("scanner command %q not found on PATH", config.Scanner.Command))
	}
	if config.Workspace.KeepRepositories {
		result.Warnings = append(result.Warnings, "workspace.keep_repositories is enabled; clones accumulate until cleaned up")
	}
}

// Config represents the application configuration
type Config struct {
	Version string `yaml:"version"`

	Workspace WorkspaceConfig `yaml:"workspace"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Platforms PlatformsConfig `yaml:"platforms"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// WorkspaceConfig controls where repositories are cloned
type WorkspaceConfig struct {
	Dir              string `yaml:"dir"`
	CloneDepth       int    `yaml:"clone_depth"`
	KeepRepositories bool   `yaml:"keep_repositories"`
}

// AnalysisConfig holds the defaults for context assembly
type AnalysisConfig struct {
	MaxFileSizeMB     float64  `yaml:"max_file_size_mb"`
	IncludeTestFiles  bool     `yaml:"include_test_files"`
	ExcludeExtensions []string `yaml:"exclude_extensions"`
}

// PlatformsConfig holds hosting platform endpoints
type PlatformsConfig struct {
	GitHub GitHubConfig `yaml:"github"`
	GitLab GitLabConfig `yaml:"gitlab"`
}

// GitHubConfig holds GitHub API settings
type GitHubConfig struct {
	APIURL          string `yaml:"api_url"`
	RequestsPerHour int    `yaml:"requests_per_hour"`
}

// GitLabConfig holds GitLab API settings
type GitLabConfig struct {
	BaseURL string `yaml:"base_url"`
}

// ScannerConfig holds local semgrep settings
type ScannerConfig struct {
	Command         string        `yaml:"command"`
	Timeout         time.Duration `yaml:"timeout"`
	DefaultRulesets []string      `yaml:"default_rulesets"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",

		Workspace: WorkspaceConfig{
			Dir:              filepath.Join(os.TempDir(), "reposcan_repos"),
			CloneDepth:       1,
			KeepRepositories: false,
		},

		Analysis: AnalysisConfig{
			MaxFileSizeMB:     DefaultMaxFileSizeMB,
			IncludeTestFiles:  true,
			ExcludeExtensions: append([]string(nil), DefaultExcludeExtensions...),
		},

		Platforms: PlatformsConfig{
			GitHub: GitHubConfig{
				RequestsPerHour: 5000,
			},
			GitLab: GitLabConfig{
				BaseURL: "https://gitlab.com/api/v4",
			},
		},

		Scanner: ScannerConfig{
			Command:         "semgrep",
			Timeout:         5 * time.Minute,
			DefaultRulesets: append([]string(nil), DefaultRulesets...),
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetConfigPaths returns the list of configuration file paths to check
func GetConfigPaths() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	paths := []string{
		".reposcan.yaml",
		".reposcan.yml",
		filepath.Join(homeDir, ".reposcan.yaml"),
		filepath.Join(homeDir, ".config", "reposcan", "config.yaml"),
	}

	if envPath := os.Getenv("REPOSCAN_CONFIG"); envPath != "" {
		paths = append([]string{envPath}, paths...)
	}

	return paths
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Workspace.Dir == "" {
		return fmt.Errorf("workspace.dir cannot be empty")
	}
	if c.Workspace.CloneDepth < 0 {
		return fmt.Errorf("workspace.clone_depth cannot be negative")
	}

	if c.Analysis.MaxFileSizeMB <= 0 {
		return fmt.Errorf("analysis.max_file_size_mb must be positive")
	}
	for _, ext := range c.Analysis.ExcludeExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("analysis.exclude_extensions entries must start with '.': %s", ext)
		}
	}

	if c.Platforms.GitHub.RequestsPerHour < 1 {
		return fmt.Errorf("platforms.github.requests_per_hour must be at least 1")
	}

	if c.Scanner.Command == "" {
		return fmt.Errorf("scanner.command cannot be empty")
	}
	if c.Scanner.Timeout < time.Second {
		return fmt.Errorf("scanner.timeout must be at least 1 second")
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	return nil
}

// ApplyEnvironmentOverrides applies environment variable overrides to the configuration
func (c *Config) ApplyEnvironmentOverrides() {
	if dir := os.Getenv("REPOSCAN_WORKSPACE"); dir != "" {
		c.Workspace.Dir = dir
	}

	if u := os.Getenv("GITHUB_API_URL"); u != "" {
		c.Platforms.GitHub.APIURL = u
	}
	if u := os.Getenv("GITLAB_BASE_URL"); u != "" {
		c.Platforms.GitLab.BaseURL = u
	}

	if cmd := os.Getenv("REPOSCAN_SEMGREP_PATH"); cmd != "" {
		c.Scanner.Command = cmd
	}
	if raw := os.Getenv("REPOSCAN_SCANNER_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			c.Scanner.Timeout = d
		}
	}

	if level := os.Getenv("REPOSCAN_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if file := os.Getenv("REPOSCAN_LOG_FILE"); file != "" {
		c.Logging.File = file
	}
	if os.Getenv("REPOSCAN_DEBUG") == "true" {
		c.Logging.Level = logLevelDebug
	}
}

// ToLoggerConfig converts the logging configuration to logger.Config
func (c *Config) ToLoggerConfig() logger.Config {
	level, err := logger.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logger.LevelInfo
	}

	return logger.Config{
		Level:     level,
		LogFile:   c.Logging.File,
		Debug:     c.Logging.Level == logLevelDebug,
		Timestamp: true,
		Prefix:    "reposcan",
	}
}

// MaxFileSizeBytes returns the analysis size limit in bytes
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Analysis.MaxFileSizeMB * 1024 * 1024)
}
