package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/errors"
)

const (
	barWidth      = 20
	maxListedRows = 10
)

// Renderer formats results for a terminal
type Renderer struct {
	theme  Theme
	titler cases.Caser
}

// NewRenderer creates a renderer whose color support follows w
func NewRenderer(w io.Writer, themeName string) *Renderer {
	return &Renderer{
		theme:  ThemeByName(lipgloss.NewRenderer(w), themeName),
		titler: cases.Title(language.English),
	}
}

// Theme returns the active theme
func (r *Renderer) Theme() Theme {
	return r.theme
}

// Status renders a one-line status message
func (r *Renderer) Status(statusType StatusType, message string) string {
	return r.theme.GetStatusStyle(statusType).Render(StatusIcon(statusType)+" ") + message
}

// Error renders a failure with its taxonomy name and suggestions
func (r *Renderer) Error(err error) string {
	errorType := ""
	if t := errors.TypeOf(err); t != errors.ErrorTypeUnknown {
		errorType = t.String()
	}
	return r.Failure(errorType, errors.MessageOf(err), errors.GetSuggestions(err))
}

// Failure renders a failed tool result
func (r *Renderer) Failure(errorType, message string, suggestions []string) string {
	var b strings.Builder
	head := "✗"
	if errorType != "" {
		head += " " + errorType
	}
	b.WriteString(r.theme.Styles.StatusError.Render(head))
	b.WriteString(" ")
	b.WriteString(message)
	for _, suggestion := range suggestions {
		b.WriteString("\n  ")
		b.WriteString(r.theme.Styles.Muted.Render("→ " + suggestion))
	}
	return b.String()
}

// ProjectType renders a project type label such as "web_backend" as "Web Backend"
func (r *Renderer) ProjectType(projectType string) string {
	return r.titler.String(strings.ReplaceAll(projectType, "_", " "))
}

func (r *Renderer) field(label string, value interface{}) string {
	return r.theme.Styles.Label.Render(label) + r.theme.Styles.Value.Render(fmt.Sprint(value))
}

func (r *Renderer) list(values []string) string {
	if len(values) == 0 {
		return r.theme.Styles.Muted.Render("none")
	}
	return strings.Join(values, ", ")
}

func (r *Renderer) section(title string, lines ...string) string {
	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return lipgloss.JoinVertical(lipgloss.Left, r.theme.Styles.Section.Render(title), body)
}

// Repository renders repository details
func (r *Renderer) Repository(info *types.RepositoryInfo) string {
	return r.theme.Styles.Panel.Render(r.section("Repository",
		r.field("URL", info.URL),
		r.field("Local path", info.LocalPath),
		r.field("Branch", info.DefaultBranch),
		r.field("Commit", shortSHA(info.CommitHash)),
		r.field("Author", info.Author),
		r.field("Message", firstLine(info.CommitMessage)),
		r.field("Files", info.FileCount),
		r.field("Size", fmt.Sprintf("%.2f MB", info.SizeMB)),
		r.field("Languages", r.list(info.Languages)),
	))
}

// Profile renders a language profile with one bar per language
func (r *Renderer) Profile(profile *types.ProjectLanguageProfile) string {
	lines := []string{
		r.field("Primary", profile.PrimaryLanguage),
		r.field("Project type", r.ProjectType(profile.ProjectType)),
		r.field("Confidence", fmt.Sprintf("%.0f%%", profile.ConfidenceScore*100)),
		r.field("Frameworks", r.list(profile.Frameworks)),
		r.field("Build tools", r.list(profile.BuildTools)),
		r.field("Packages", r.list(profile.PackageManagers)),
	}

	if len(profile.Languages) > 0 {
		lines = append(lines, "")
	}
	for _, lang := range profile.Languages {
		lines = append(lines, fmt.Sprintf("%s %s %5.1f%%  %s",
			r.theme.Styles.Label.Render(lang.Name),
			r.bar(lang.Percentage),
			lang.Percentage,
			r.theme.Styles.Muted.Render(fmt.Sprintf("%d files, %d lines", lang.FileCount, lang.TotalLines)),
		))
	}

	return r.theme.Styles.Panel.Render(r.section("Language profile", lines...))
}

func (r *Renderer) bar(percentage float64) string {
	filled := int(percentage/100*barWidth + 0.5)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return r.theme.Styles.Bar.Render(strings.Repeat("█", filled)) +
		r.theme.Styles.BarRest.Render(strings.Repeat("░", barWidth-filled))
}

// Context renders a summary of an assembled project context
func (r *Renderer) Context(pctx *types.ProjectDataContext) string {
	meta := pctx.ProjectMetadata
	version := "-"
	if meta.Version != nil {
		version = *meta.Version
	}

	deps := make([]string, 0, len(meta.Dependencies))
	for group, names := range meta.Dependencies {
		deps = append(deps, fmt.Sprintf("%s: %d", group, len(names)))
	}
	sort.Strings(deps)

	structure := pctx.DirectoryStructure
	lines := []string{
		r.field("Project", meta.Name),
		r.field("Version", version),
		r.field("Primary", pctx.LanguageProfile.PrimaryLanguage),
		r.field("Dependencies", r.list(deps)),
		r.field("Directories", structure.TotalDirectories),
		r.field("Max depth", structure.MaxDepth),
		r.field("Ignored", r.list(structure.IgnoredDirectories)),
		r.field("Files analyzed", len(pctx.Files)),
	}

	byLanguage := make(map[string]int)
	for _, f := range pctx.Files {
		byLanguage[f.Language]++
	}
	languages := make([]string, 0, len(byLanguage))
	for name := range byLanguage {
		languages = append(languages, name)
	}
	sort.Slice(languages, func(i, j int) bool {
		if byLanguage[languages[i]] != byLanguage[languages[j]] {
			return byLanguage[languages[i]] > byLanguage[languages[j]]
		}
		return languages[i] < languages[j]
	})
	for i, name := range languages {
		if i == maxListedRows {
			break
		}
		lines = append(lines, r.field("  "+name, byLanguage[name]))
	}

	return r.theme.Styles.Panel.Render(r.section("Project context", lines...))
}

// PullRequest renders pull request details
func (r *Renderer) PullRequest(info *types.PullRequestInfo) string {
	status := StatusInfo
	switch info.Status {
	case types.PRStatusMerged, types.PRStatusOpen:
		status = StatusSuccess
	case types.PRStatusUnknown:
		status = StatusWarning
	}

	lines := []string{
		r.theme.Styles.Title.Render(fmt.Sprintf("#%s %s", info.PRID, info.Title)),
		r.field("Status", r.theme.GetStatusStyle(status).Render(string(info.Status))),
		r.field("Platform", info.Platform),
		r.field("Author", info.Author),
		r.field("Branches", fmt.Sprintf("%s → %s", info.SourceBranch, info.TargetBranch)),
		r.field("Changes", fmt.Sprintf("+%d -%d in %d files", info.Additions, info.Deletions, len(info.ChangedFiles))),
		r.field("Labels", r.list(info.Labels)),
		r.field("Reviewers", r.list(info.Reviewers)),
	}
	if info.WebURL != "" {
		lines = append(lines, r.field("URL", r.theme.Styles.Link.Render(info.WebURL)))
	}
	if fallback, _ := info.Metadata["fallback"].(bool); fallback {
		lines = append(lines, "", r.Status(StatusWarning, "Platform API unavailable; showing Git fallback details"))
	}

	return r.theme.Styles.Panel.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Diff renders a locally computed pull request diff
func (r *Renderer) Diff(diff *types.PRDiff, withPatch bool) string {
	if diff.Error != nil {
		return r.Status(StatusError, *diff.Error)
	}

	lines := []string{
		r.field("PR", diff.PRID),
		r.field("Changes", fmt.Sprintf("+%d -%d in %d files", diff.Stats.Additions, diff.Stats.Deletions, diff.Stats.Files)),
	}
	for _, c := range diff.Commits {
		lines = append(lines, fmt.Sprintf("  %s %s %s",
			r.theme.Styles.Code.Render(c.SHA), firstLine(c.Message), r.theme.Styles.Muted.Render(c.Author)))
	}
	for _, f := range diff.FilesChanged {
		lines = append(lines, "  "+f)
	}

	out := r.theme.Styles.Panel.Render(r.section("Pull request diff", lines...))
	if withPatch && diff.Diff != "" {
		out += "\n" + r.Patch(diff.Diff)
	}
	return out
}

// Patch colors unified diff text line by line
func (r *Renderer) Patch(patch string) string {
	lines := strings.Split(strings.TrimRight(patch, "\n"), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = r.theme.Styles.Section.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = r.theme.Styles.DiffAdd.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = r.theme.Styles.DiffDel.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = r.theme.Styles.DiffHunk.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// PATCheck renders a token format check
func (r *Renderer) PATCheck(platform string, valid bool, creationURL string) string {
	if valid {
		return r.Status(StatusSuccess, fmt.Sprintf("Token format looks valid for %s", platform))
	}
	return r.Status(StatusError, fmt.Sprintf("Token format is not valid for %s", platform)) +
		"\n  " + r.theme.Styles.Muted.Render("Create a token at ") + r.theme.Styles.Link.Render(creationURL)
}

// Scan renders the scanner output with the rulesets that produced it
func (r *Renderer) Scan(path string, rulesets []string, output string) string {
	header := r.theme.Styles.Panel.Render(r.section("Semgrep scan",
		r.field("Path", path),
		r.field("Rulesets", r.list(rulesets)),
	))
	return header + "\n" + output
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
