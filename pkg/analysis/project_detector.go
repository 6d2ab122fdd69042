package analysis

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/logger"
)

type configPatterns struct {
	language string
	patterns []string
}

// configFileTable lists manifest and build files per language. A pattern
// starting with "*" matches by suffix.
var configFileTable = []configPatterns{
	{langPython, []string{"requirements.txt", "pyproject.toml", "setup.py", "setup.cfg", "Pipfile", "poetry.lock", "conda.yml", "environment.yml"}},
	{langJava, []string{"pom.xml", "build.gradle", "gradle.properties", "ivy.xml", "ant.xml", "build.xml"}},
	{langJavaScript, []string{"package.json", "package-lock.json", "yarn.lock", "webpack.config.js", "babel.config.js", "tsconfig.json"}},
	{langTypeScript, []string{"tsconfig.json", "package.json", "webpack.config.ts"}},
	{langDart, []string{"pubspec.yaml", "pubspec.lock", "analysis_options.yaml"}},
	{"Kotlin", []string{"build.gradle.kts", "settings.gradle.kts", "pom.xml"}},
	{"C++", []string{"CMakeLists.txt", "Makefile", "configure.ac", "meson.build"}},
	{"C", []string{"Makefile", "CMakeLists.txt", "configure.ac"}},
	{"C#", []string{"*.csproj", "*.sln", "packages.config", "project.json"}},
	{langGo, []string{"go.mod", "go.sum", "Gopkg.toml", "Gopkg.lock"}},
	{langRust, []string{"Cargo.toml", "Cargo.lock"}},
	{"Ruby", []string{"Gemfile", "Gemfile.lock", ".gemspec"}},
	{"PHP", []string{"composer.json", "composer.lock"}},
	{"Swift", []string{"Package.swift", "*.xcodeproj", "*.xcworkspace"}},
}

// buildToolFiles and packageManagerFiles are keyed by filename only; the
// file's content is never consulted.
var buildToolFiles = map[string]string{
	"pom.xml":        "Maven",
	"build.gradle":   "Gradle",
	"CMakeLists.txt": "CMake",
	"Makefile":       "Make",
	"setup.py":       "Python setuptools",
	"pyproject.toml": "Python build",
	"Cargo.toml":     "Cargo",
}

var packageManagerFiles = map[string]string{
	"package.json":     "npm/yarn",
	"requirements.txt": "pip",
	"Pipfile":          "pipenv",
	"poetry.lock":      "poetry",
	"pubspec.yaml":     "pub",
	"Gemfile":          "bundler",
	"composer.json":    "composer",
	"go.mod":           "go modules",
}

type projectTypeRule struct {
	projectType string
	keywords    []string
}

// projectTypeRules are checked in order against the lowercased framework labels
var projectTypeRules = []projectTypeRule{
	{types.ProjectTypeMobile, []string{"flutter", "android"}},
	{types.ProjectTypeWebFrontend, []string{"react", "vue", "angular"}},
	{types.ProjectTypeWebBackend, []string{"express", "django", "flask"}},
	{types.ProjectTypeDataScience, []string{"streamlit", "jupyter"}},
}

// ProjectDetector finds configuration files and classifies the project
type ProjectDetector struct {
	logger logger.LoggerInterface
}

// NewProjectDetector creates a new project detector
func NewProjectDetector(log logger.LoggerInterface) *ProjectDetector {
	return &ProjectDetector{logger: logger.Component(log, "project")}
}

func matchesConfigPattern(filename, pattern string) bool {
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(filename, pattern[1:])
	}
	return filename == pattern
}

// FindConfigFiles walks the whole tree except .git and returns the matched
// config filenames grouped by language. A filename is recorded once per
// pattern it matches.
func (pd *ProjectDetector) FindConfigFiles(ctx context.Context, projectRoot string) (map[string][]string, error) {
	found := make(map[string][]string)

	err := filepath.WalkDir(projectRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			pd.logger.Warn("Could not read %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		for _, entry := range configFileTable {
			for _, pattern := range entry.patterns {
				if matchesConfigPattern(name, pattern) {
					found[entry.language] = append(found[entry.language], name)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}

// BuildTools maps config filenames to build tools, deduplicated and sorted
func (pd *ProjectDetector) BuildTools(configFiles map[string][]string) []string {
	return mapConfigFiles(configFiles, buildToolFiles)
}

// PackageManagers maps config filenames to package managers, deduplicated and sorted
func (pd *ProjectDetector) PackageManagers(configFiles map[string][]string) []string {
	return mapConfigFiles(configFiles, packageManagerFiles)
}

func mapConfigFiles(configFiles map[string][]string, mapping map[string]string) []string {
	seen := make(map[string]bool)
	result := []string{}
	for _, files := range configFiles {
		for _, file := range files {
			if tool, ok := mapping[file]; ok && !seen[tool] {
				seen[tool] = true
				result = append(result, tool)
			}
		}
	}
	sort.Strings(result)
	return result
}

// DetermineProjectType applies the project type rules in priority order,
// then falls back to root-level packaging files.
func (pd *ProjectDetector) DetermineProjectType(projectRoot string, frameworks []string) string {
	joined := strings.ToLower(strings.Join(frameworks, " "))

	for _, rule := range projectTypeRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(joined, keyword) {
				return rule.projectType
			}
		}
	}

	if fileExists(filepath.Join(projectRoot, "setup.py")) || fileExists(filepath.Join(projectRoot, "pyproject.toml")) {
		return types.ProjectTypeLibrary
	}
	if fileExists(filepath.Join(projectRoot, "Dockerfile")) {
		return types.ProjectTypeContainerizedApp
	}
	return types.ProjectTypeGeneral
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
