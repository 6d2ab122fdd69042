package analysis

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fumiya-kume/reposcan/pkg/logger"
)

// contentScanBytes is how much of each source file is searched for indicators
const contentScanBytes = 1000

type frameworkIndicator struct {
	framework  string
	indicators []string
}

// frameworkIndicators maps a language to frameworks recognised by a root
// filename or by a substring near the top of a source file.
var frameworkIndicators = map[string][]frameworkIndicator{
	langPython: {
		{"Django", []string{"manage.py", "settings.py", "urls.py"}},
		{"Flask", []string{"app.py", "wsgi.py"}},
		{"FastAPI", []string{"main.py"}},
		{"Streamlit", []string{"streamlit"}},
		{"Jupyter", []string{".ipynb"}},
	},
	langJavaScript: {
		{"React", []string{"react", "jsx"}},
		{"Vue", []string{"vue"}},
		{"Angular", []string{"@angular"}},
		{"Node.js", []string{"express", "node"}},
		{"Next.js", []string{"next"}},
	},
	langJava: {
		{"Spring", []string{"spring", "SpringApplication"}},
		{"Android", []string{"android", "MainActivity"}},
		{"Maven", []string{"pom.xml"}},
		{"Gradle", []string{"build.gradle"}},
	},
	langDart: {
		{"Flutter", []string{"flutter", "pubspec.yaml"}},
		{"Angular Dart", []string{"angular"}},
	},
}

// contentScanExtensions are the source files whose heads are searched
var contentScanExtensions = map[string]bool{".py": true, ".js": true, ".java": true, ".dart": true}

type dependencyFramework struct {
	dependency string
	label      string
}

var packageJSONFrameworks = []dependencyFramework{
	{"react", "JavaScript: React"},
	{"vue", "JavaScript: Vue.js"},
	{"@angular/core", "JavaScript: Angular"},
	{"express", "JavaScript: Express"},
	{"next", "JavaScript: Next.js"},
	{"gatsby", "JavaScript: Gatsby"},
	{"svelte", "JavaScript: Svelte"},
}

var requirementsFrameworks = []dependencyFramework{
	{"django", "Python: Django"},
	{"flask", "Python: Flask"},
	{"fastapi", "Python: FastAPI"},
	{"streamlit", "Python: Streamlit"},
	{"jupyter", "Python: Jupyter"},
	{"numpy", "Python: NumPy/Scientific"},
	{"tensorflow", "Python: TensorFlow"},
	{"pytorch", "Python: PyTorch"},
}

// FrameworkDetector detects frameworks used in a project
type FrameworkDetector struct {
	logger logger.LoggerInterface
}

// NewFrameworkDetector creates a new framework detector
func NewFrameworkDetector(log logger.LoggerInterface) *FrameworkDetector {
	return &FrameworkDetector{logger: logger.Component(log, "frameworks")}
}

// DetectFrameworks returns "<language>: <framework>" labels for the languages
// present in the project, followed by labels derived from package.json and
// requirements.txt. Duplicate labels are reported once.
func (fd *FrameworkDetector) DetectFrameworks(projectRoot string, languages []string) []string {
	var heads []string
	headsLoaded := false

	var labels []string
	seen := make(map[string]bool)
	add := func(label string) {
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}

	for _, language := range languages {
		for _, entry := range frameworkIndicators[language] {
			if !headsLoaded {
				heads = fd.sourceHeads(projectRoot)
				headsLoaded = true
			}
			if indicatorsPresent(projectRoot, entry.indicators, heads) {
				add(language + ": " + entry.framework)
			}
		}
	}

	for _, label := range fd.packageJSONFrameworks(projectRoot) {
		add(label)
	}
	for _, label := range fd.requirementsFrameworks(projectRoot) {
		add(label)
	}

	if labels == nil {
		labels = []string{}
	}
	return labels
}

func indicatorsPresent(projectRoot string, indicators []string, heads []string) bool {
	for _, indicator := range indicators {
		if _, err := os.Stat(filepath.Join(projectRoot, indicator)); err == nil {
			return true
		}
		for _, head := range heads {
			if strings.Contains(head, indicator) {
				return true
			}
		}
	}
	return false
}

// sourceHeads reads the first bytes of every scanned source file outside .git
func (fd *FrameworkDetector) sourceHeads(projectRoot string) []string {
	var heads []string

	_ = filepath.WalkDir(projectRoot, func(path string, d fs.DirEntry, err error) error { //nolint:errcheck // walk errors are per entry
		if err != nil {
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
		if !contentScanExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		head, err := readFileHead(path, contentScanBytes)
		if err != nil {
			fd.logger.Debug("Could not read %s: %v", path, err)
			return nil
		}
		heads = append(heads, head)
		return nil
	})

	return heads
}

func (fd *FrameworkDetector) packageJSONFrameworks(projectRoot string) []string {
	deps, err := parsePackageJSONDependencies(filepath.Join(projectRoot, "package.json"))
	if err != nil {
		if !os.IsNotExist(err) {
			fd.logger.Warn("Could not analyze package.json: %v", err)
		}
		return nil
	}

	var labels []string
	for _, entry := range packageJSONFrameworks {
		if _, ok := deps[entry.dependency]; ok {
			labels = append(labels, entry.label)
		}
	}
	return labels
}

func (fd *FrameworkDetector) requirementsFrameworks(projectRoot string) []string {
	// #nosec G304 - fixed filename under the project root
	data, err := os.ReadFile(filepath.Join(projectRoot, "requirements.txt"))
	if err != nil {
		if !os.IsNotExist(err) {
			fd.logger.Warn("Could not analyze requirements.txt: %v", err)
		}
		return nil
	}

	requirements := strings.ToLower(string(data))
	var labels []string
	for _, entry := range requirementsFrameworks {
		if strings.Contains(requirements, entry.dependency) {
			labels = append(labels, entry.label)
		}
	}
	return labels
}

// parsePackageJSONDependencies merges dependencies and devDependencies
func parsePackageJSONDependencies(path string) (map[string]string, error) {
	// #nosec G304 - fixed filename under the project root
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}

	deps := make(map[string]string, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for name, version := range pkg.Dependencies {
		deps[name] = version
	}
	for name, version := range pkg.DevDependencies {
		deps[name] = version
	}
	return deps, nil
}
