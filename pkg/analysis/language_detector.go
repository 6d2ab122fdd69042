package analysis

import (
	"context"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/logger"
)

// Language name constants
const (
	langPython     = "Python"
	langJava       = "Java"
	langJavaScript = "JavaScript"
	langTypeScript = "TypeScript"
	langDart       = "Dart"
	langGo         = "Go"
	langRust       = "Rust"
)

type languageExtensions struct {
	name       string
	extensions []string
}

// languageTable is ordered: the first language claiming an extension wins,
// so ".h" is C and never Objective-C.
var languageTable = []languageExtensions{
	{langPython, []string{".py", ".pyw", ".pyi"}},
	{langJava, []string{".java"}},
	{langJavaScript, []string{".js", ".jsx", ".mjs"}},
	{langTypeScript, []string{".ts", ".tsx"}},
	{langDart, []string{".dart"}},
	{"Kotlin", []string{".kt", ".kts"}},
	{"C++", []string{".cpp", ".cxx", ".cc", ".c++", ".hpp", ".hxx", ".h++"}},
	{"C", []string{".c", ".h"}},
	{"C#", []string{".cs"}},
	{langGo, []string{".go"}},
	{langRust, []string{".rs"}},
	{"Ruby", []string{".rb"}},
	{"PHP", []string{".php"}},
	{"Swift", []string{".swift"}},
	{"Objective-C", []string{".m", ".mm", ".h"}},
	{"Shell", []string{".sh", ".bash", ".zsh"}},
	{"HTML", []string{".html", ".htm"}},
	{"CSS", []string{".css", ".scss", ".sass", ".less"}},
	{"XML", []string{".xml", ".xsd", ".xsl"}},
	{"JSON", []string{".json"}},
	{"YAML", []string{".yml", ".yaml"}},
	{"Markdown", []string{".md", ".markdown"}},
	{"SQL", []string{".sql"}},
}

// profilerSkipDirs are never descended into by the profiler, in addition to
// every directory whose name starts with a dot.
var profilerSkipDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	"env":          true,
	"build":        true,
	"dist":         true,
	"target":       true,
}

// languageForExtension walks languageTable in order
func languageForExtension(ext string) (string, bool) {
	ext = strings.ToLower(ext)
	for _, entry := range languageTable {
		for _, candidate := range entry.extensions {
			if candidate == ext {
				return entry.name, true
			}
		}
	}
	return "", false
}

type languageStats struct {
	fileCount  int
	totalLines int
	totalSize  int64
}

// scanOutcome is the per-file result of the extension scan: either stats
// for a matched language or a skip with the reason.
type scanOutcome struct {
	language string
	lines    int
	size     int64
	skipped  error
}

// LanguageDetector is the language and framework profiler
type LanguageDetector struct {
	frameworks *FrameworkDetector
	projects   *ProjectDetector
	logger     logger.LoggerInterface
}

// NewLanguageDetector creates a new profiler
func NewLanguageDetector(log logger.LoggerInterface) *LanguageDetector {
	log = logger.Component(log, "profiler")
	return &LanguageDetector{
		frameworks: NewFrameworkDetector(log),
		projects:   NewProjectDetector(log),
		logger:     log,
	}
}

// IdentifyLanguage builds the language profile of the tree rooted at projectPath
func (ld *LanguageDetector) IdentifyLanguage(ctx context.Context, projectPath string) (*types.ProjectLanguageProfile, error) {
	ld.logger.Info("Analyzing languages in repository: %s", projectPath)

	info, err := os.Stat(projectPath)
	if err != nil {
		return nil, errors.NotFoundError("repository path", projectPath)
	}
	if !info.IsDir() {
		return nil, errors.InvalidInputError("repository path is not a directory: " + projectPath)
	}

	stats, err := ld.scanExtensions(ctx, projectPath)
	if err != nil {
		return nil, err
	}

	configFiles, err := ld.projects.FindConfigFiles(ctx, projectPath)
	if err != nil {
		return nil, err
	}

	present := make([]string, 0, len(stats))
	for _, entry := range languageTable {
		if _, ok := stats[entry.name]; ok {
			present = append(present, entry.name)
		}
	}

	frameworks := ld.frameworks.DetectFrameworks(projectPath, present)
	languages := buildLanguageInfo(stats, frameworks)

	primary := types.UnknownLanguage
	if len(languages) > 0 {
		primary = languages[0].Name
	}

	profile := &types.ProjectLanguageProfile{
		PrimaryLanguage: primary,
		Languages:       languages,
		Frameworks:      frameworks,
		BuildTools:      ld.projects.BuildTools(configFiles),
		PackageManagers: ld.projects.PackageManagers(configFiles),
		ProjectType:     ld.projects.DetermineProjectType(projectPath, frameworks),
		ConfidenceScore: calculateConfidence(stats, configFiles),
	}

	ld.logger.Info("Language analysis completed. Primary language: %s", primary)
	return profile, nil
}

// scanExtensions walks the tree and accumulates per-language statistics.
// Per-file failures are skipped and counted; only cancellation aborts the walk.
func (ld *LanguageDetector) scanExtensions(ctx context.Context, root string) (map[string]*languageStats, error) {
	stats := make(map[string]*languageStats)
	skipped := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			ld.logger.Warn("Could not read %s: %v", path, err)
			skipped++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && (isHidden(d.Name()) || profilerSkipDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}

		if isHidden(d.Name()) {
			return nil
		}

		outcome := ld.scanFile(path, d)
		if outcome.skipped != nil {
			ld.logger.Warn("Could not analyze file %s: %v", path, outcome.skipped)
			skipped++
			return nil
		}
		if outcome.language == "" {
			return nil
		}

		s, ok := stats[outcome.language]
		if !ok {
			s = &languageStats{}
			stats[outcome.language] = s
		}
		s.fileCount++
		s.totalLines += outcome.lines
		s.totalSize += outcome.size
		return nil
	})
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		ld.logger.Debug("Skipped %d unreadable entries under %s", skipped, root)
	}
	return stats, nil
}

func (ld *LanguageDetector) scanFile(path string, d fs.DirEntry) scanOutcome {
	language, ok := languageForExtension(filepath.Ext(d.Name()))
	if !ok {
		return scanOutcome{}
	}

	info, err := d.Info()
	if err != nil {
		return scanOutcome{skipped: err}
	}

	lines, err := countLines(path)
	if err != nil {
		return scanOutcome{skipped: err}
	}

	return scanOutcome{language: language, lines: lines, size: info.Size()}
}

// buildLanguageInfo converts raw stats into LanguageInfo sorted by percentage.
// The sort is stable over table order, so ties keep the table's ordering.
func buildLanguageInfo(stats map[string]*languageStats, frameworks []string) []types.LanguageInfo {
	total := 0
	for _, s := range stats {
		total += s.fileCount
	}
	if total == 0 {
		return []types.LanguageInfo{}
	}

	languages := make([]types.LanguageInfo, 0, len(stats))
	for _, entry := range languageTable {
		s, ok := stats[entry.name]
		if !ok || s.fileCount == 0 {
			continue
		}
		languages = append(languages, types.LanguageInfo{
			Name:       entry.name,
			Percentage: roundTo(float64(s.fileCount)/float64(total)*100, 2),
			FileCount:  s.fileCount,
			TotalLines: s.totalLines,
			Framework:  frameworkFor(entry.name, frameworks),
		})
	}

	sort.SliceStable(languages, func(i, j int) bool {
		return languages[i].Percentage > languages[j].Percentage
	})
	return languages
}

// frameworkFor returns the first "<language>: <framework>" label for language
func frameworkFor(language string, frameworks []string) *string {
	prefix := language + ": "
	for _, label := range frameworks {
		if strings.HasPrefix(label, prefix) {
			name := strings.TrimPrefix(label, prefix)
			return &name
		}
	}
	return nil
}

func calculateConfidence(stats map[string]*languageStats, configFiles map[string][]string) float64 {
	confidence := 0.0

	total := 0
	for _, s := range stats {
		total += s.fileCount
	}
	if total > 0 {
		confidence += 0.5
	}
	if len(configFiles) > 0 {
		confidence += 0.3
	}
	if len(stats) > 1 {
		confidence += 0.1
	}

	return math.Min(roundTo(confidence, 2), 1.0)
}

func roundTo(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
