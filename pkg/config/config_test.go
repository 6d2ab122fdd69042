package config

import (
	"testing"
	"time"

	"github.com/fumiya-kume/reposcan/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	require.NoError(t, config.Validate())
	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, 1, config.Workspace.CloneDepth)
	assert.Contains(t, config.Workspace.Dir, "reposcan_repos")
	assert.Equal(t, DefaultMaxFileSizeMB, config.Analysis.MaxFileSizeMB)
	assert.True(t, config.Analysis.IncludeTestFiles)
	assert.Contains(t, config.Analysis.ExcludeExtensions, ".pyc")
	assert.Contains(t, config.Analysis.ExcludeExtensions, ".7z")
	assert.Equal(t, "semgrep", config.Scanner.Command)
	assert.Equal(t, 5*time.Minute, config.Scanner.Timeout)
	assert.Equal(t, int64(1024*1024), config.MaxFileSizeBytes())
}

func TestDefaultConfigDoesNotAliasPackageDefaults(t *testing.T) {
	config := DefaultConfig()
	config.Analysis.ExcludeExtensions[0] = ".changed"
	config.Scanner.DefaultRulesets[0] = "p/changed"

	assert.Equal(t, ".pyc", DefaultExcludeExtensions[0])
	assert.Equal(t, "p/security-audit", DefaultRulesets[0])
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty workspace", func(c *Config) { c.Workspace.Dir = "" }, "workspace.dir"},
		{"negative depth", func(c *Config) { c.Workspace.CloneDepth = -1 }, "clone_depth"},
		{"zero file size", func(c *Config) { c.Analysis.MaxFileSizeMB = 0 }, "max_file_size_mb"},
		{"extension without dot", func(c *Config) { c.Analysis.ExcludeExtensions = []string{"exe"} }, "exclude_extensions"},
		{"no rate budget", func(c *Config) { c.Platforms.GitHub.RequestsPerHour = 0 }, "requests_per_hour"},
		{"empty scanner", func(c *Config) { c.Scanner.Command = "" }, "scanner.command"},
		{"tiny timeout", func(c *Config) { c.Scanner.Timeout = time.Millisecond }, "scanner.timeout"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	t.Setenv("REPOSCAN_WORKSPACE", "/tmp/custom-workspace")
	t.Setenv("GITLAB_BASE_URL", "https://gitlab.example.com/api/v4")
	t.Setenv("GITHUB_API_URL", "https://ghe.example.com/api/v3/")
	t.Setenv("REPOSCAN_SCANNER_TIMEOUT", "90s")
	t.Setenv("REPOSCAN_SEMGREP_PATH", "/opt/semgrep/bin/semgrep")
	t.Setenv("REPOSCAN_LOG_LEVEL", "warn")
	t.Setenv("REPOSCAN_LOG_FILE", "/tmp/reposcan.log")

	config := DefaultConfig()
	config.ApplyEnvironmentOverrides()

	assert.Equal(t, "/tmp/custom-workspace", config.Workspace.Dir)
	assert.Equal(t, "https://gitlab.example.com/api/v4", config.Platforms.GitLab.BaseURL)
	assert.Equal(t, "https://ghe.example.com/api/v3/", config.Platforms.GitHub.APIURL)
	assert.Equal(t, 90*time.Second, config.Scanner.Timeout)
	assert.Equal(t, "/opt/semgrep/bin/semgrep", config.Scanner.Command)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, "/tmp/reposcan.log", config.Logging.File)
}

func TestApplyEnvironmentOverrides_IgnoresBadDuration(t *testing.T) {
	t.Setenv("REPOSCAN_SCANNER_TIMEOUT", "soon")

	config := DefaultConfig()
	config.ApplyEnvironmentOverrides()

	assert.Equal(t, 5*time.Minute, config.Scanner.Timeout)
}

func TestApplyEnvironmentOverrides_Debug(t *testing.T) {
	t.Setenv("REPOSCAN_DEBUG", "true")

	config := DefaultConfig()
	config.ApplyEnvironmentOverrides()

	assert.Equal(t, "debug", config.Logging.Level)
	assert.True(t, config.ToLoggerConfig().Debug)
}

func TestToLoggerConfig(t *testing.T) {
	config := DefaultConfig()
	config.Logging.Level = "error"
	config.Logging.File = "/tmp/x.log"

	lc := config.ToLoggerConfig()

	assert.Equal(t, logger.LevelError, lc.Level)
	assert.Equal(t, "/tmp/x.log", lc.LogFile)
	assert.Equal(t, "reposcan", lc.Prefix)
	assert.False(t, lc.Debug)
}

func TestConfigValidator(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		result := NewConfigValidator(ValidationLevelBasic).ValidateConfig(nil)
		assert.True(t, result.HasErrors())
	})

	t.Run("valid defaults", func(t *testing.T) {
		result := NewConfigValidator(ValidationLevelBasic).ValidateConfig(DefaultConfig())
		assert.False(t, result.HasErrors())
		assert.Empty(t, result.Warnings)
	})

	t.Run("relative gitlab url", func(t *testing.T) {
		config := DefaultConfig()
		config.Platforms.GitLab.BaseURL = "gitlab.internal"
		result := NewConfigValidator(ValidationLevelBasic).ValidateConfig(config)
		require.True(t, result.HasErrors())
		assert.Contains(t, result.Errors[0].Error(), "platforms.gitlab.base_url")
	})

	t.Run("strict warns about missing scanner and kept clones", func(t *testing.T) {
		config := DefaultConfig()
		config.Scanner.Command = "definitely-not-a-real-semgrep-binary"
		config.Workspace.KeepRepositories = true
		result := NewConfigValidator(ValidationLevelStrict).ValidateConfig(config)
		assert.False(t, result.HasErrors())
		assert.Len(t, result.Warnings, 2)
	})
}
