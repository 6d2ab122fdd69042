package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fumiya-kume/reposcan/pkg/errors"
)

// Loader reads and writes a reposcan configuration file
type Loader struct {
	configPath string
}

// NewLoader creates a loader for configPath. An empty path searches GetConfigPaths.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// LoadConfig layers the file, then environment overrides, over DefaultConfig.
// A missing file is not an error; unknown keys are.
func (l *Loader) LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath == "" {
		if path, ok := findConfigFile(); ok {
			l.configPath = path
		}
	}

	if l.configPath != "" {
		if err := decodeFile(l.configPath, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return cfg, errors.NewError(errors.ErrorTypeConfiguration).
			WithMessagef("invalid configuration: %v", err).
			WithContext("path", l.configPath).
			WithSuggestion("Run `reposcan config validate` to list every problem").
			Build()
	}

	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) // #nosec G304 - user-selected config path
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.NewError(errors.ErrorTypeFileSystem).
			WithMessagef("failed to read config file %s", path).
			WithCause(err).
			Build()
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return errors.NewError(errors.ErrorTypeConfiguration).
			WithMessagef("failed to parse config file %s: %v", path, err).
			WithCause(err).
			WithSuggestion("Compare the file with `reposcan config init` output").
			Build()
	}
	return nil
}

// SaveConfig writes config as YAML, creating parent directories
func (l *Loader) SaveConfig(config *Config) error {
	if l.configPath == "" {
		path, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		l.configPath = path
	}

	configDir := filepath.Dir(l.configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(l.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", l.configPath, err)
	}

	return nil
}

// GetConfigPath returns the file LoadConfig read, or "" when none was found
func (l *Loader) GetConfigPath() string {
	return l.configPath
}

func findConfigFile() (string, bool) {
	for _, path := range GetConfigPaths() {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// DefaultConfigPath is where `config init` writes when no path is given
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "reposcan", "config.yaml"), nil
}

// CreateDefaultConfig creates a default configuration file
func CreateDefaultConfig(path string) error {
	return NewLoader(path).SaveConfig(DefaultConfig())
}
