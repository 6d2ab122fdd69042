// Package types provides the core data structures shared across reposcan:
// repository snapshots, language profiles, project context, pull request
// details and stored access tokens.
package types

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Project type classifications produced by the language profiler
const (
	ProjectTypeMobile           = "mobile"
	ProjectTypeWebFrontend      = "web_frontend"
	ProjectTypeWebBackend       = "web_backend"
	ProjectTypeDataScience      = "data_science"
	ProjectTypeLibrary          = "library"
	ProjectTypeContainerizedApp = "containerized_app"
	ProjectTypeGeneral          = "general"
)

// UnknownLanguage is reported when no source file matched the extension table
const UnknownLanguage = "Unknown"

// RepositoryInfo is an immutable snapshot of a checked-out repository
type RepositoryInfo struct {
	URL           string   `json:"url"`
	LocalPath     string   `json:"local_path"`
	DefaultBranch string   `json:"default_branch"`
	CommitHash    string   `json:"commit_hash"`
	Author        string   `json:"author"`
	CommitMessage string   `json:"commit_message"`
	Languages     []string `json:"languages"`
	SizeMB        float64  `json:"size_mb"`
	FileCount     int      `json:"file_count"`
}

// LanguageInfo describes how much of a project is written in one language
type LanguageInfo struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	FileCount  int     `json:"file_count"`
	TotalLines int     `json:"total_lines"`
	Framework  *string `json:"framework"`
	Version    *string `json:"version"`
}

// ProjectLanguageProfile is the profiler's view of a project
type ProjectLanguageProfile struct {
	PrimaryLanguage string         `json:"primary_language"`
	Languages       []LanguageInfo `json:"languages"`
	Frameworks      []string       `json:"frameworks"`
	BuildTools      []string       `json:"build_tools"`
	PackageManagers []string       `json:"package_managers"`
	ProjectType     string         `json:"project_type"`
	ConfidenceScore float64        `json:"confidence_score"`
}

// HasLanguage reports whether the profile detected the named language
func (p *ProjectLanguageProfile) HasLanguage(name string) bool {
	for _, lang := range p.Languages {
		if lang.Name == name {
			return true
		}
	}
	return false
}

// ProjectMetadata is scraped from the manifest matching the primary language.
// Fields the manifest does not declare stay nil.
type ProjectMetadata struct {
	Name         string              `json:"name"`
	Version      *string             `json:"version"`
	Description  *string             `json:"description"`
	Author       *string             `json:"author"`
	License      *string             `json:"license"`
	Dependencies map[string][]string `json:"dependencies"`
	Scripts      map[string]string   `json:"scripts"`
	Keywords     []string            `json:"keywords"`
}

// DirectoryStructure summarizes the directory layout of a project
type DirectoryStructure struct {
	TotalDirectories   int      `json:"total_directories"`
	TotalFiles         int      `json:"total_files"`
	MaxDepth           int      `json:"max_depth"`
	CommonDirectories  []string `json:"common_directories"`
	IgnoredDirectories []string `json:"ignored_directories"`
}

// FileInfo describes one file that survived size and extension filtering
type FileInfo struct {
	Path         string    `json:"path"`
	RelativePath string    `json:"relative_path"`
	SizeBytes    int64     `json:"size_bytes"`
	Lines        int       `json:"lines"`
	Language     string    `json:"language"`
	LastModified time.Time `json:"last_modified"`
	IsTestFile   bool      `json:"is_test_file"`
	IsConfigFile bool      `json:"is_config_file"`
}

// ProjectDataContext is the terminal artifact handed to downstream consumers.
// It owns its constituent structures; nothing mutates them after assembly.
type ProjectDataContext struct {
	RepositoryInfo     RepositoryInfo         `json:"repository_info"`
	LanguageProfile    ProjectLanguageProfile `json:"language_profile"`
	ProjectMetadata    ProjectMetadata        `json:"project_metadata"`
	DirectoryStructure DirectoryStructure     `json:"directory_structure"`
	Files              []FileInfo             `json:"files"`
	AnalysisTimestamp  time.Time              `json:"analysis_timestamp"`
	PreparationConfig  map[string]interface{} `json:"preparation_config"`
}

// SaveToFile writes the context as indented JSON, creating parent directories
func (c *ProjectDataContext) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// PRStatus is the lifecycle state of a pull or merge request
type PRStatus string

const (
	PRStatusOpen    PRStatus = "open"
	PRStatusClosed  PRStatus = "closed"
	PRStatusMerged  PRStatus = "merged"
	PRStatusUnknown PRStatus = "unknown"
)

// Platform tags reported in PullRequestInfo.Platform
const (
	PlatformGitHub      = "github"
	PlatformGitLab      = "gitlab"
	PlatformBitbucket   = "bitbucket"
	PlatformUnknown     = "unknown"
	PlatformGitFallback = "git_fallback"
)

// PullRequestInfo is built fresh on every fetch and never mutated afterwards
type PullRequestInfo struct {
	PRID        string    `json:"pr_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Status      PRStatus  `json:"status"`

	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	BaseCommit   string `json:"base_commit"`
	HeadCommit   string `json:"head_commit"`

	DiffText      string   `json:"diff_text"`
	ChangedFiles  []string `json:"changed_files"`
	FilesAdded    []string `json:"files_added"`
	FilesModified []string `json:"files_modified"`
	FilesDeleted  []string `json:"files_deleted"`

	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	ChangedLines int `json:"changed_lines"`

	Platform  string   `json:"platform"`
	WebURL    string   `json:"web_url"`
	APIURL    string   `json:"api_url"`
	Labels    []string `json:"labels"`
	Assignees []string `json:"assignees"`
	Reviewers []string `json:"reviewers"`

	Metadata map[string]interface{} `json:"metadata"`
}

// IsFallback reports whether the result came from the degraded fallback path
func (p *PullRequestInfo) IsFallback() bool {
	if p == nil || p.Metadata == nil {
		return false
	}
	fallback, ok := p.Metadata["fallback"].(bool)
	return ok && fallback
}

// PRCommit is one commit between the base and head of a pull request
type PRCommit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
}

// DiffStats holds line statistics counted from a unified diff
type DiffStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Files     int `json:"files"`
}

// PRDiff is the result of the local, clone-based pull request diff path.
// Failures are reported through Error rather than returned.
type PRDiff struct {
	PRID         int        `json:"pr_id"`
	RepoURL      string     `json:"repo_url"`
	Diff         string     `json:"diff"`
	FilesChanged []string   `json:"files_changed"`
	Stats        DiffStats  `json:"stats"`
	Commits      []PRCommit `json:"commits"`
	Error        *string    `json:"error"`
}

// PATInfo records a stored personal access token. The token itself only
// exists as ciphertext.
type PATInfo struct {
	Platform       string     `json:"platform"`
	Username       string     `json:"username"`
	TokenHash      string     `json:"token_hash"`
	EncryptedToken []byte     `json:"-"`
	Nonce          []byte     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	LastUsed       *time.Time `json:"last_used,omitempty"`
}
