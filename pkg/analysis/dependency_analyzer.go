package analysis

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/modfile"
	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/logger"
)

// manifestParser fills metadata from the manifest files of one ecosystem.
// Each parser reads files under projectRoot and reports a per-file error
// without discarding what earlier files contributed.
type manifestParser func(projectRoot string, metadata *types.ProjectMetadata) error

// DependencyAnalyzer extracts ProjectMetadata from the manifest matching
// the primary language
type DependencyAnalyzer struct {
	parsers map[string][]manifestParser
	folder  cases.Caser
	logger  logger.LoggerInterface
}

// NewDependencyAnalyzer creates a new dependency analyzer
func NewDependencyAnalyzer(log logger.LoggerInterface) *DependencyAnalyzer {
	return &DependencyAnalyzer{
		parsers: map[string][]manifestParser{
			"python":     {parsePyproject, parseRequirements},
			"javascript": {parsePackageJSON},
			"typescript": {parsePackageJSON},
			"java":       {parsePomXML, parseBuildGradle},
			"dart":       {parsePubspec},
			"go":         {parseGoMod},
			"rust":       {parseCargoToml},
		},
		folder: cases.Fold(),
		logger: logger.Component(log, "manifest"),
	}
}

// ExtractMetadata picks the parsers for primaryLanguage and runs them in order.
// Unrecognised languages yield only the directory-derived name.
func (da *DependencyAnalyzer) ExtractMetadata(projectRoot, primaryLanguage string) types.ProjectMetadata {
	metadata := types.ProjectMetadata{
		Name:         filepath.Base(projectRoot),
		Dependencies: map[string][]string{},
	}

	key := da.folder.String(strings.TrimSpace(primaryLanguage))
	for _, parse := range da.parsers[key] {
		if err := parse(projectRoot, &metadata); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			da.logger.Warn("Could not extract complete metadata: %v", err)
		}
	}

	return metadata
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// personString renders "Name <email>" from a manifest author entry
func personString(name, email string) string {
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s <%s>", name, email)
	case name != "":
		return name
	default:
		return email
	}
}

func parsePyproject(projectRoot string, metadata *types.ProjectMetadata) error {
	path := filepath.Join(projectRoot, "pyproject.toml")
	if _, err := os.Stat(path); err != nil {
		return err
	}

	var doc struct {
		Project struct {
			Name        string   `toml:"name"`
			Version     string   `toml:"version"`
			Description string   `toml:"description"`
			Keywords    []string `toml:"keywords"`
			Authors     []struct {
				Name  string `toml:"name"`
				Email string `toml:"email"`
			} `toml:"authors"`
			License      interface{} `toml:"license"`
			Dependencies []string    `toml:"dependencies"`
		} `toml:"project"`
	}

	md, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return fmt.Errorf("could not parse pyproject.toml: %w", err)
	}

	project := doc.Project
	if project.Name != "" {
		metadata.Name = project.Name
	}
	metadata.Version = stringPtr(project.Version)
	metadata.Description = stringPtr(project.Description)

	if len(project.Authors) > 0 {
		authors := make([]string, 0, len(project.Authors))
		for _, a := range project.Authors {
			authors = append(authors, personString(a.Name, a.Email))
		}
		metadata.Author = stringPtr(strings.Join(authors, ", "))
	}

	switch license := project.License.(type) {
	case string:
		metadata.License = stringPtr(license)
	case map[string]interface{}:
		if text, ok := license["text"].(string); ok {
			metadata.License = stringPtr(text)
		}
	}

	if md.IsDefined("project", "keywords") {
		metadata.Keywords = project.Keywords
	}
	if md.IsDefined("project", "dependencies") {
		metadata.Dependencies["runtime"] = project.Dependencies
	}
	return nil
}

func parseRequirements(projectRoot string, metadata *types.ProjectMetadata) error {
	// #nosec G304 - fixed filename under the project root
	file, err := os.Open(filepath.Join(projectRoot, "requirements.txt"))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }() //nolint:errcheck // read-only file

	requirements := []string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		requirements = append(requirements, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not parse requirements.txt: %w", err)
	}

	metadata.Dependencies["requirements"] = requirements
	return nil
}

// packageAuthor accepts both the string and the object form of "author"
type packageAuthor string

func (a *packageAuthor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = packageAuthor(s)
		return nil
	}
	var obj struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = packageAuthor(personString(obj.Name, obj.Email))
	return nil
}

func parsePackageJSON(projectRoot string, metadata *types.ProjectMetadata) error {
	// #nosec G304 - fixed filename under the project root
	data, err := os.ReadFile(filepath.Join(projectRoot, "package.json"))
	if err != nil {
		return err
	}

	var pkg struct {
		Name            string             `json:"name"`
		Version         string             `json:"version"`
		Description     string             `json:"description"`
		Author          packageAuthor      `json:"author"`
		License         string             `json:"license"`
		Keywords        []string           `json:"keywords"`
		Dependencies    map[string]string  `json:"dependencies"`
		DevDependencies map[string]string  `json:"devDependencies"`
		Scripts         map[string]string  `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return fmt.Errorf("could not parse package.json: %w", err)
	}

	if pkg.Name != "" {
		metadata.Name = pkg.Name
	}
	metadata.Version = stringPtr(pkg.Version)
	metadata.Description = stringPtr(pkg.Description)
	metadata.Author = stringPtr(string(pkg.Author))
	metadata.License = stringPtr(pkg.License)
	metadata.Keywords = pkg.Keywords

	if pkg.Dependencies != nil {
		metadata.Dependencies["dependencies"] = sortedKeys(pkg.Dependencies)
	}
	if pkg.DevDependencies != nil {
		metadata.Dependencies["devDependencies"] = sortedKeys(pkg.DevDependencies)
	}
	if pkg.Scripts != nil {
		metadata.Scripts = pkg.Scripts
	}
	return nil
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
}

// pomProject matches elements by local name, so the Maven namespace is ignored
type pomProject struct {
	ArtifactID   string `xml:"artifactId"`
	Version      string `xml:"version"`
	Description  string `xml:"description"`
	Dependencies *struct {
		Items []pomDependency `xml:"dependency"`
	} `xml:"dependencies"`
}

// pomCharsetReader decodes non UTF-8 prologs such as encoding="ISO-8859-1"
func pomCharsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported pom.xml encoding %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

func parsePomXML(projectRoot string, metadata *types.ProjectMetadata) error {
	// #nosec G304 - fixed filename under the project root
	data, err := os.ReadFile(filepath.Join(projectRoot, "pom.xml"))
	if err != nil {
		return err
	}

	var pom pomProject
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = pomCharsetReader
	if err := dec.Decode(&pom); err != nil {
		return fmt.Errorf("could not parse pom.xml: %w", err)
	}

	if name := strings.TrimSpace(pom.ArtifactID); name != "" {
		metadata.Name = name
	}
	metadata.Version = stringPtr(strings.TrimSpace(pom.Version))
	metadata.Description = stringPtr(strings.TrimSpace(pom.Description))

	if pom.Dependencies != nil {
		deps := []string{}
		for _, dep := range pom.Dependencies.Items {
			group := strings.TrimSpace(dep.GroupID)
			artifact := strings.TrimSpace(dep.ArtifactID)
			if group != "" && artifact != "" {
				deps = append(deps, group+":"+artifact)
			}
		}
		metadata.Dependencies["maven"] = deps
	}
	return nil
}

// gradleConfigurations are the dependency blocks read from build.gradle
var gradleConfigurations = []string{"implementation", "api", "compileOnly", "runtimeOnly", "testImplementation"}

// parseBuildGradle only matches lines by prefix; Groovy is never evaluated
func parseBuildGradle(projectRoot string, metadata *types.ProjectMetadata) error {
	// #nosec G304 - fixed filename under the project root
	file, err := os.Open(filepath.Join(projectRoot, "build.gradle"))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }() //nolint:errcheck // read-only file

	var deps []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if metadata.Version == nil && strings.HasPrefix(line, "version") {
			if v := firstQuoted(line); v != "" {
				metadata.Version = &v
			}
			continue
		}
		if metadata.Description == nil && strings.HasPrefix(line, "description") {
			if d := firstQuoted(line); d != "" {
				metadata.Description = &d
			}
			continue
		}

		for _, configuration := range gradleConfigurations {
			if strings.HasPrefix(line, configuration+" ") || strings.HasPrefix(line, configuration+"(") {
				if coord := firstQuoted(line); coord != "" {
					deps = append(deps, coord)
				}
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not parse build.gradle: %w", err)
	}

	if len(deps) > 0 {
		metadata.Dependencies["gradle"] = deps
	}
	return nil
}

// firstQuoted returns the first single- or double-quoted string on a line
func firstQuoted(line string) string {
	start := strings.IndexAny(line, `'"`)
	if start < 0 {
		return ""
	}
	quote := line[start]
	end := strings.IndexByte(line[start+1:], quote)
	if end < 0 {
		return ""
	}
	return line[start+1 : start+1+end]
}

func parsePubspec(projectRoot string, metadata *types.ProjectMetadata) error {
	// #nosec G304 - fixed filename under the project root
	data, err := os.ReadFile(filepath.Join(projectRoot, "pubspec.yaml"))
	if err != nil {
		return err
	}

	var spec struct {
		Name            string                 `yaml:"name"`
		Version         string                 `yaml:"version"`
		Description     string                 `yaml:"description"`
		Author          string                 `yaml:"author"`
		Dependencies    map[string]interface{} `yaml:"dependencies"`
		DevDependencies map[string]interface{} `yaml:"dev_dependencies"`
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("could not parse pubspec.yaml: %w", err)
	}

	if spec.Name != "" {
		metadata.Name = spec.Name
	}
	metadata.Version = stringPtr(spec.Version)
	metadata.Description = stringPtr(spec.Description)
	metadata.Author = stringPtr(spec.Author)

	if spec.Dependencies != nil {
		metadata.Dependencies["dependencies"] = sortedKeys(spec.Dependencies)
	}
	if spec.DevDependencies != nil {
		metadata.Dependencies["dev_dependencies"] = sortedKeys(spec.DevDependencies)
	}
	return nil
}

func parseGoMod(projectRoot string, metadata *types.ProjectMetadata) error {
	path := filepath.Join(projectRoot, "go.mod")
	// #nosec G304 - fixed filename under the project root
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	mod, err := modfile.ParseLax(path, data, nil)
	if err != nil {
		return fmt.Errorf("could not parse go.mod: %w", err)
	}

	if mod.Module != nil && mod.Module.Mod.Path != "" {
		metadata.Name = mod.Module.Mod.Path
	}

	direct := []string{}
	indirect := []string{}
	for _, req := range mod.Require {
		entry := req.Mod.Path + "@" + req.Mod.Version
		if req.Indirect {
			indirect = append(indirect, entry)
		} else {
			direct = append(direct, entry)
		}
	}
	metadata.Dependencies["require"] = direct
	if len(indirect) > 0 {
		metadata.Dependencies["indirect"] = indirect
	}
	return nil
}

func parseCargoToml(projectRoot string, metadata *types.ProjectMetadata) error {
	path := filepath.Join(projectRoot, "Cargo.toml")
	if _, err := os.Stat(path); err != nil {
		return err
	}

	var doc struct {
		Package struct {
			Name        string   `toml:"name"`
			Version     string   `toml:"version"`
			Description string   `toml:"description"`
			Authors     []string `toml:"authors"`
			License     string   `toml:"license"`
			Keywords    []string `toml:"keywords"`
		} `toml:"package"`
		Dependencies    map[string]interface{} `toml:"dependencies"`
		DevDependencies map[string]interface{} `toml:"dev-dependencies"`
	}

	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return fmt.Errorf("could not parse Cargo.toml: %w", err)
	}

	pkg := doc.Package
	if pkg.Name != "" {
		metadata.Name = pkg.Name
	}
	metadata.Version = stringPtr(pkg.Version)
	metadata.Description = stringPtr(pkg.Description)
	metadata.License = stringPtr(pkg.License)
	if len(pkg.Authors) > 0 {
		metadata.Author = stringPtr(strings.Join(pkg.Authors, ", "))
	}
	metadata.Keywords = pkg.Keywords

	if doc.Dependencies != nil {
		metadata.Dependencies["dependencies"] = sortedKeys(doc.Dependencies)
	}
	if doc.DevDependencies != nil {
		metadata.Dependencies["dev-dependencies"] = sortedKeys(doc.DevDependencies)
	}
	return nil
}
