package analysis

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/clock"
	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/logger"
)

// maxCommonDirectories caps DirectoryStructure.CommonDirectories
const maxCommonDirectories = 20

// ignoredDirectories are counted but never descended into during assembly
var ignoredDirectories = map[string]bool{
	".git": true, ".svn": true, ".hg": true,
	"__pycache__": true, ".pytest_cache": true,
	"node_modules": true, "npm_modules": true,
	"venv": true, "env": true, ".venv": true, ".env": true,
	"build": true, "dist": true, "target": true, "out": true,
	".idea": true, ".vscode": true, ".vs": true,
	"bin": true, "obj": true, "debug": true, "release": true,
}

var testFilePatterns = []string{
	"test_", "_test", "tests/", "/test/", "spec_", "_spec", ".test.", ".spec.", "unittest", "pytest",
}

var configFilePatterns = []string{
	"config", "settings", ".env", "dockerfile", "makefile", "requirements",
	"package.json", "pom.xml", "build.gradle", "pyproject.toml", "setup.py", "setup.cfg",
}

// fallbackFileLanguages tags files whose language is not part of the profile
var fallbackFileLanguages = map[string]string{
	".md":   "Markdown",
	".txt":  "Text",
	".json": "JSON",
	".yml":  "YAML",
	".yaml": "YAML",
	".xml":  "XML",
	".html": "HTML",
	".css":  "CSS",
	".sh":   "Shell",
}

// ContextBuilder assembles a ProjectDataContext from a checkout and its profile
type ContextBuilder struct {
	config       AnalyzerConfig
	excluded     map[string]bool
	dependencies *DependencyAnalyzer
	clock        clock.Clock
	logger       logger.LoggerInterface
}

// NewContextBuilder creates a new context builder
func NewContextBuilder(cfg AnalyzerConfig, log logger.LoggerInterface) *ContextBuilder {
	log = logger.Component(log, "context")

	excluded := make(map[string]bool, len(cfg.ExcludeExtensions))
	for _, ext := range cfg.ExcludeExtensions {
		excluded[strings.ToLower(ext)] = true
	}

	return &ContextBuilder{
		config:       cfg,
		excluded:     excluded,
		dependencies: NewDependencyAnalyzer(log),
		clock:        clock.NewRealClock(),
		logger:       log,
	}
}

// PrepareProjectContext reads manifests, walks the tree and returns the
// assembled context. extra is merged into PreparationConfig last.
func (cb *ContextBuilder) PrepareProjectContext(ctx context.Context, repoInfo types.RepositoryInfo, profile types.ProjectLanguageProfile, extra map[string]interface{}) (*types.ProjectDataContext, error) {
	root := repoInfo.LocalPath
	cb.logger.Info("Preparing project data context for: %s", root)

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.NotFoundError("repository path", root)
	}
	if !info.IsDir() {
		return nil, errors.InvalidInputError("repository path is not a directory: " + root)
	}

	metadata := cb.dependencies.ExtractMetadata(root, profile.PrimaryLanguage)

	structure, err := cb.analyzeDirectoryStructure(ctx, root)
	if err != nil {
		return nil, err
	}

	files, err := cb.analyzeFiles(ctx, root, profile)
	if err != nil {
		return nil, err
	}

	preparation := map[string]interface{}{
		"include_test_files":   cb.config.IncludeTestFiles,
		"max_file_size_mb":     float64(cb.config.MaxFileSize) / (1024 * 1024),
		"exclude_extensions":   append([]string(nil), cb.config.ExcludeExtensions...),
		"total_files_analyzed": len(files),
		"analysis_scope":       "full",
	}
	if scope, ok := extra["scope"]; ok {
		preparation["analysis_scope"] = scope
	}
	for k, v := range extra {
		preparation[k] = v
	}

	cb.logger.Info("Project data context prepared: %d files analyzed", len(files))

	return &types.ProjectDataContext{
		RepositoryInfo:     repoInfo,
		LanguageProfile:    profile,
		ProjectMetadata:    metadata,
		DirectoryStructure: structure,
		Files:              files,
		AnalysisTimestamp:  cb.clock.Now(),
		PreparationConfig:  preparation,
	}, nil
}

// analyzeDirectoryStructure counts every child directory it sees, including
// ignored ones, but only descends into the rest.
func (cb *ContextBuilder) analyzeDirectoryStructure(ctx context.Context, root string) (types.DirectoryStructure, error) {
	structure := types.DirectoryStructure{}
	names := make(map[string]bool)
	ignored := make(map[string]bool)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			cb.logger.Warn("Error analyzing directory structure at %s: %v", path, err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		if !d.IsDir() {
			structure.TotalFiles++
			return nil
		}

		name := d.Name()
		structure.TotalDirectories++
		names[name] = true
		if ignoredDirectories[name] {
			ignored[name] = true
			return filepath.SkipDir
		}

		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			if depth := len(strings.Split(filepath.ToSlash(rel), "/")); depth > structure.MaxDepth {
				structure.MaxDepth = depth
			}
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return types.DirectoryStructure{}, err
	}

	structure.CommonDirectories = sortedSet(names)
	if len(structure.CommonDirectories) > maxCommonDirectories {
		structure.CommonDirectories = structure.CommonDirectories[:maxCommonDirectories]
	}
	structure.IgnoredDirectories = sortedSet(ignored)
	return structure, nil
}

// analyzeFiles lists every eligible file below root in walk order
func (cb *ContextBuilder) analyzeFiles(ctx context.Context, root string, profile types.ProjectLanguageProfile) ([]types.FileInfo, error) {
	files := []types.FileInfo{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && ignoredDirectories[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if file, ok := cb.describeFile(root, path, d, profile); ok {
			files = append(files, file)
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return nil, err
	}

	return files, nil
}

func (cb *ContextBuilder) describeFile(root, path string, d fs.DirEntry, profile types.ProjectLanguageProfile) (types.FileInfo, bool) {
	name := d.Name()
	if isHidden(name) {
		return types.FileInfo{}, false
	}

	info, err := d.Info()
	if err != nil {
		return types.FileInfo{}, false
	}
	if info.Size() > cb.config.MaxFileSize {
		return types.FileInfo{}, false
	}

	ext := strings.ToLower(filepath.Ext(name))
	if cb.excluded[ext] {
		return types.FileInfo{}, false
	}

	relative, err := filepath.Rel(root, path)
	if err != nil {
		relative = name
	}

	language := fileLanguage(ext, profile)

	isTest := isTestFile(relative, name)
	if isTest && !cb.config.IncludeTestFiles {
		return types.FileInfo{}, false
	}

	lines, err := countLines(path)
	if err != nil {
		cb.logger.Debug("Could not count lines in %s: %v", path, err)
		lines = 0
	}

	return types.FileInfo{
		Path:         path,
		RelativePath: relative,
		SizeBytes:    info.Size(),
		Lines:        lines,
		Language:     language,
		LastModified: info.ModTime(),
		IsTestFile:   isTest,
		IsConfigFile: isConfigFile(name),
	}, true
}

// fileLanguage prefers a language already present in the profile, then the
// fallback table, then "Unknown".
func fileLanguage(ext string, profile types.ProjectLanguageProfile) string {
	if language, ok := languageForExtension(ext); ok && profile.HasLanguage(language) {
		return language
	}
	if language, ok := fallbackFileLanguages[ext]; ok {
		return language
	}
	return types.UnknownLanguage
}

func isTestFile(relativePath, filename string) bool {
	path := strings.ToLower(filepath.ToSlash(relativePath))
	name := strings.ToLower(filename)
	for _, pattern := range testFilePatterns {
		if strings.Contains(path, pattern) || strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

func isConfigFile(filename string) bool {
	name := strings.ToLower(filename)
	for _, pattern := range configFilePatterns {
		if strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

func sortedSet(set map[string]bool) []string {
	result := make([]string, 0, len(set))
	for name := range set {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// LoadProjectDataContext reads a context written by ProjectDataContext.SaveToFile
func LoadProjectDataContext(path string) (*types.ProjectDataContext, error) {
	// #nosec G304 - caller supplied path
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError("project context", path)
		}
		return nil, errors.FileSystemError("read", path, err)
	}

	var projectContext types.ProjectDataContext
	if err := json.Unmarshal(data, &projectContext); err != nil {
		return nil, errors.NewError(errors.ErrorTypeInvalidInput).
			WithMessage("invalid project context file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return &projectContext, nil
}
