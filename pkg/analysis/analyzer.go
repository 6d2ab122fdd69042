// Package analysis profiles local source trees and assembles the project
// context handed to downstream review tooling.
package analysis

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/config"
	"github.com/fumiya-kume/reposcan/pkg/logger"
)

// AnalyzerConfig configures profiling and context assembly
type AnalyzerConfig struct {
	MaxFileSize       int64
	ExcludeExtensions []string
	IncludeTestFiles  bool
}

// DefaultAnalyzerConfig returns the defaults used when no configuration is loaded
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfigFrom(config.DefaultConfig())
}

// AnalyzerConfigFrom derives analysis settings from the application config
func AnalyzerConfigFrom(cfg *config.Config) AnalyzerConfig {
	return AnalyzerConfig{
		MaxFileSize:       cfg.MaxFileSizeBytes(),
		ExcludeExtensions: append([]string(nil), cfg.Analysis.ExcludeExtensions...),
		IncludeTestFiles:  cfg.Analysis.IncludeTestFiles,
	}
}

// Analyzer ties the profiler, the context builder and the profile cache together
type Analyzer struct {
	config           AnalyzerConfig
	languageDetector *LanguageDetector
	contextBuilder   *ContextBuilder
	cache            *ProfileCache
	logger           logger.LoggerInterface
}

// NewAnalyzer creates an analyzer. cache may be nil to always profile afresh.
func NewAnalyzer(cfg AnalyzerConfig, cache *ProfileCache, log logger.LoggerInterface) *Analyzer {
	log = logger.Component(log, "analysis")
	return &Analyzer{
		config:           cfg,
		languageDetector: NewLanguageDetector(log),
		contextBuilder:   NewContextBuilder(cfg, log),
		cache:            cache,
		logger:           log,
	}
}

// IdentifyLanguage profiles projectPath, reusing a cached profile while the tree is unchanged
func (a *Analyzer) IdentifyLanguage(ctx context.Context, projectPath string) (*types.ProjectLanguageProfile, error) {
	if a.cache != nil {
		if profile, ok := a.cache.Get(projectPath); ok {
			a.logger.Debug("Using cached language profile for %s", projectPath)
			return profile, nil
		}
	}

	profile, err := a.languageDetector.IdentifyLanguage(ctx, projectPath)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.cache.Set(projectPath, profile)
	}
	return profile, nil
}

// PrepareProjectContext assembles the project context for an already profiled repository
func (a *Analyzer) PrepareProjectContext(ctx context.Context, repoInfo types.RepositoryInfo, profile types.ProjectLanguageProfile, extra map[string]interface{}) (*types.ProjectDataContext, error) {
	return a.contextBuilder.PrepareProjectContext(ctx, repoInfo, profile, extra)
}

// Analyze profiles the repository checkout and assembles its context in one pass
func (a *Analyzer) Analyze(ctx context.Context, repoInfo types.RepositoryInfo, extra map[string]interface{}) (*types.ProjectDataContext, error) {
	profile, err := a.IdentifyLanguage(ctx, repoInfo.LocalPath)
	if err != nil {
		return nil, err
	}
	return a.PrepareProjectContext(ctx, repoInfo, *profile, extra)
}

// Invalidate drops any cached profile for projectPath
func (a *Analyzer) Invalidate(projectPath string) {
	if a.cache != nil {
		a.cache.Invalidate(projectPath)
	}
}

// countLines counts newline-terminated lines, plus a trailing unterminated one
func countLines(path string) (int, error) {
	// #nosec G304 - path comes from a file system walk rooted at the project
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = file.Close() }() //nolint:errcheck // read-only file

	reader := bufio.NewReader(file)
	buf := make([]byte, 32*1024)
	lines := 0
	var last byte
	read := false

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			read = true
			chunk := buf[:n]
			for _, b := range chunk {
				if b == '\n' {
					lines++
				}
			}
			last = chunk[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}

	if read && last != '\n' {
		lines++
	}
	return lines, nil
}

// readFileHead reads at most maxBytes from the start of a file
func readFileHead(path string, maxBytes int) (string, error) {
	// #nosec G304 - path comes from a file system walk rooted at the project
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }() //nolint:errcheck // read-only file

	buf := make([]byte, maxBytes)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return string(buf[:n]), nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
