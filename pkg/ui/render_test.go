package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/errors"
)

func plainRenderer() *Renderer {
	return NewRenderer(&bytes.Buffer{}, "dark")
}

func TestThemeByName(t *testing.T) {
	r := lipgloss.NewRenderer(&bytes.Buffer{})

	assert.Equal(t, "light", ThemeByName(r, "light").Name)
	assert.Equal(t, "dark", ThemeByName(r, "dark").Name)
	assert.Equal(t, "dark", ThemeByName(r, "").Name)
	assert.Equal(t, lipgloss.Color("#7c3aed"), NewDarkTheme(r).Primary)
	assert.Equal(t, lipgloss.Color("#5b21b6"), NewLightTheme(r).Primary)
}

func TestStatusIcon(t *testing.T) {
	assert.Equal(t, "✓", StatusIcon(StatusSuccess))
	assert.Equal(t, "!", StatusIcon(StatusWarning))
	assert.Equal(t, "✗", StatusIcon(StatusError))
	assert.Equal(t, "•", StatusIcon(StatusInfo))
}

func TestRenderer_ProjectType(t *testing.T) {
	r := plainRenderer()
	assert.Equal(t, "Web Backend", r.ProjectType(types.ProjectTypeWebBackend))
	assert.Equal(t, "Containerized App", r.ProjectType(types.ProjectTypeContainerizedApp))
	assert.Equal(t, "General", r.ProjectType(types.ProjectTypeGeneral))
}

func TestRenderer_Profile(t *testing.T) {
	out := plainRenderer().Profile(&types.ProjectLanguageProfile{
		PrimaryLanguage: "Python",
		Languages: []types.LanguageInfo{
			{Name: "Python", Percentage: 75, FileCount: 3, TotalLines: 40},
			{Name: "JavaScript", Percentage: 25, FileCount: 1, TotalLines: 5},
		},
		Frameworks:      []string{"Django"},
		ProjectType:     types.ProjectTypeWebBackend,
		ConfidenceScore: 0.8,
	})

	assert.Contains(t, out, "Language profile")
	assert.Contains(t, out, "Web Backend")
	assert.Contains(t, out, "80%")
	assert.Contains(t, out, "Django")
	assert.Contains(t, out, " 75.0%")
	assert.Contains(t, out, "3 files, 40 lines")
	assert.Contains(t, out, strings.Repeat("█", 15)+strings.Repeat("░", 5))
	assert.Contains(t, out, "none")
}

func TestRenderer_PullRequestFallback(t *testing.T) {
	out := plainRenderer().PullRequest(&types.PullRequestInfo{
		PRID:         "7",
		Title:        "Pull Request #7",
		Status:       types.PRStatusUnknown,
		Platform:     types.PlatformGitFallback,
		SourceBranch: "unknown",
		TargetBranch: "main",
		Metadata:     map[string]interface{}{"fallback": true},
	})

	assert.Contains(t, out, "#7 Pull Request #7")
	assert.Contains(t, out, "unknown → main")
	assert.Contains(t, out, "Git fallback")
}

func TestRenderer_DiffAndPatch(t *testing.T) {
	r := plainRenderer()
	out := r.Diff(&types.PRDiff{
		PRID:         3,
		Diff:         "--- a/x\n+++ b/x\n@@ -1 +1 @@\n-old\n+new\n",
		FilesChanged: []string{"x"},
		Stats:        types.DiffStats{Additions: 1, Deletions: 1, Files: 1},
		Commits:      []types.PRCommit{{SHA: "abcdef12", Message: "change x\n\nbody", Author: "Dev"}},
	}, true)

	assert.Contains(t, out, "+1 -1 in 1 files")
	assert.Contains(t, out, "abcdef12 change x")
	assert.NotContains(t, out, "body")
	assert.Contains(t, out, "+new")

	msg := "PR diff not available for gitlab (API access required)"
	assert.Contains(t, r.Diff(&types.PRDiff{Error: &msg}, true), msg)
}

func TestRenderer_Error(t *testing.T) {
	err := errors.NewError(errors.ErrorTypeInvalidInput).
		WithMessage("Invalid Git repository URL: ftp://x").
		WithSuggestion("Use an https URL").
		Build()

	out := plainRenderer().Error(err)
	assert.Contains(t, out, "InvalidInput")
	assert.Contains(t, out, "Invalid Git repository URL: ftp://x")
	assert.Contains(t, out, "→ Use an https URL")
}

func TestRenderer_PATCheck(t *testing.T) {
	r := plainRenderer()
	assert.Contains(t, r.PATCheck("github", true, ""), "valid for github")

	out := r.PATCheck("gitlab", false, "https://gitlab.com/-/profile/personal_access_tokens")
	assert.Contains(t, out, "not valid for gitlab")
	assert.Contains(t, out, "personal_access_tokens")
}

func TestRenderer_Context(t *testing.T) {
	version := "1.2.0"
	out := plainRenderer().Context(&types.ProjectDataContext{
		ProjectMetadata: types.ProjectMetadata{
			Name:         "demo",
			Version:      &version,
			Dependencies: map[string][]string{"runtime": {"flask", "requests"}},
		},
		DirectoryStructure: types.DirectoryStructure{TotalDirectories: 4, MaxDepth: 2, IgnoredDirectories: []string{".git"}},
		Files: []types.FileInfo{
			{Language: "Python"}, {Language: "Python"}, {Language: "Markdown"},
		},
	})

	assert.Contains(t, out, "demo")
	assert.Contains(t, out, "1.2.0")
	assert.Contains(t, out, "runtime: 2")
	assert.Contains(t, out, ".git")
	assert.Contains(t, out, "Python")
}
