// Package git acquires repositories with go-git and extracts pull request
// diffs from local checkouts.
package git

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/config"
	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/logger"
)

// Branch constants
const (
	branchMain    = "main"
	unknownRemote = "unknown"
)

// quickLanguages is the coarse sweep attached to RepositoryInfo; the full
// profile lives in the analysis package.
var quickLanguages = map[string]string{
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".java":  "Java",
	".kt":    "Kotlin",
	".dart":  "Dart",
	".cpp":   "C++",
	".c":     "C",
	".cs":    "C#",
	".php":   "PHP",
	".rb":    "Ruby",
	".go":    "Go",
	".rs":    "Rust",
	".swift": "Swift",
}

// RepositoryManager clones, inspects and removes working copies under basePath
type RepositoryManager struct {
	basePath string
	depth    int
	logger   logger.LoggerInterface
}

// CloneOptions customises a single clone
type CloneOptions struct {
	// LocalPath defaults to <basePath>/<repository name>
	LocalPath string
	// Depth overrides the manager default when positive
	Depth  int
	Branch string
	Token  string
}

// NewRepositoryManager creates a repository manager rooted at basePath
func NewRepositoryManager(basePath string, log logger.LoggerInterface) *RepositoryManager {
	if basePath == "" {
		basePath = config.DefaultConfig().Workspace.Dir
	}

	return &RepositoryManager{
		basePath: basePath,
		depth:    1,
		logger:   logger.Component(log, "git"),
	}
}

// NewRepositoryManagerFromConfig applies the workspace section of cfg
func NewRepositoryManagerFromConfig(cfg *config.Config, log logger.LoggerInterface) *RepositoryManager {
	rm := NewRepositoryManager(cfg.Workspace.Dir, log)
	rm.depth = cfg.Workspace.CloneDepth
	return rm
}

// BasePath returns the workspace directory
func (rm *RepositoryManager) BasePath() string {
	return rm.basePath
}

// GetRepositoryPath returns the default clone location for repoURL
func (rm *RepositoryManager) GetRepositoryPath(repoURL string) string {
	return filepath.Join(rm.basePath, RepositoryName(repoURL))
}

// workspacePath derives the default clone target and keeps it strictly
// below the workspace directory.
func (rm *RepositoryManager) workspacePath(repoURL string) (string, error) {
	name := RepositoryName(repoURL)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errors.InvalidInputError("cannot derive a directory name from repository URL: " + logSafeURL(repoURL))
	}

	localPath := filepath.Join(rm.basePath, name)
	rel, err := filepath.Rel(rm.basePath, localPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.InvalidInputError("clone target escapes the workspace: " + localPath)
	}
	return localPath, nil
}

// CloneRepository performs a shallow single-branch clone of repoURL. Any
// existing directory at the target is replaced. On failure the target
// directory is removed.
func (rm *RepositoryManager) CloneRepository(ctx context.Context, repoURL string, opts CloneOptions) (*types.RepositoryInfo, error) {
	if !IsValidRepositoryURL(repoURL) {
		return nil, errors.InvalidInputError("Invalid Git repository URL: " + logSafeURL(repoURL))
	}

	localPath := opts.LocalPath
	if localPath == "" {
		var err error
		if localPath, err = rm.workspacePath(repoURL); err != nil {
			return nil, err
		}
	}

	depth := rm.depth
	if opts.Depth > 0 {
		depth = opts.Depth
	}

	rm.logger.Info("Cloning %s into %s (depth %d)", logSafeURL(repoURL), localPath, depth)

	if _, err := os.Stat(localPath); err == nil {
		rm.logger.Debug("Removing existing directory %s", localPath)
		if err := os.RemoveAll(localPath); err != nil {
			return nil, errors.FileSystemError("remove", localPath, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		return nil, errors.FileSystemError("create", filepath.Dir(localPath), err)
	}

	cloneOpts := &git.CloneOptions{
		URL:          AuthenticatedURL(repoURL, opts.Token),
		Depth:        depth,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if opts.Branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
	}

	repo, err := git.PlainCloneContext(ctx, localPath, false, cloneOpts)
	if err != nil {
		_ = os.RemoveAll(localPath) //nolint:errcheck // cleanup on failure is best effort
		return nil, errors.NewError(errors.ErrorTypeRemoteOperation).
			WithMessage("failed to clone repository").
			WithCause(fmt.Errorf("%s", logger.Redact(err.Error()))).
			WithContext("url", logSafeURL(repoURL)).
			WithContext("path", localPath).
			WithRecoverable(true).
			WithSuggestion("Check the repository URL and your access token").
			Build()
	}

	if opts.Token != "" {
		if err := resetOriginURL(repo, repoURL); err != nil {
			rm.logger.Warn("Could not strip credentials from origin remote: %v", err)
		}
	}

	info, err := rm.extractRepositoryInfo(repo, repoURL, localPath)
	if err != nil {
		_ = os.RemoveAll(localPath) //nolint:errcheck // cleanup on failure is best effort
		return nil, err
	}

	rm.logger.Info("Repository cloned: %s (%d files, %.2f MB)", localPath, info.FileCount, info.SizeMB)
	return info, nil
}

// resetOriginURL keeps the token out of .git/config
func resetOriginURL(repo *git.Repository, repoURL string) error {
	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	remote, ok := cfg.Remotes[git.DefaultRemoteName]
	if !ok {
		return nil
	}
	remote.URLs = []string{repoURL}
	return repo.SetConfig(cfg)
}

// GetRepositoryInfo describes an existing checkout. The URL comes from the
// origin remote, or "unknown" when there is none.
func (rm *RepositoryManager) GetRepositoryInfo(localPath string) (*types.RepositoryInfo, error) {
	if _, err := os.Stat(localPath); err != nil {
		return nil, errors.NotFoundError("repository path", localPath)
	}

	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return nil, errors.NewError(errors.ErrorTypeInvalidInput).
			WithMessage("not a git repository").
			WithCause(err).
			WithContext("path", localPath).
			Build()
	}

	remoteURL := unknownRemote
	if remote, err := repo.Remote(git.DefaultRemoteName); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			remoteURL = urls[0]
		}
	}

	return rm.extractRepositoryInfo(repo, remoteURL, localPath)
}

// CleanupRepository removes localPath. It reports true when the directory
// is gone afterwards, including when it never existed.
func (rm *RepositoryManager) CleanupRepository(localPath string) bool {
	if _, err := os.Stat(localPath); os.IsNotExist(err) {
		rm.logger.Debug("Repository path not found: %s", localPath)
		return true
	}

	if err := os.RemoveAll(localPath); err != nil {
		rm.logger.Error("Failed to clean up %s: %v", localPath, err)
		return false
	}

	rm.logger.Info("Repository cleanup successful: %s", localPath)
	return true
}

// ListRepositories returns the checkouts found directly under the workspace
func (rm *RepositoryManager) ListRepositories() ([]string, error) {
	repos := []string{}

	entries, err := os.ReadDir(rm.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return repos, nil
		}
		return nil, errors.FileSystemError("list", rm.basePath, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(rm.basePath, entry.Name())
		if _, err := os.Stat(filepath.Join(path, git.GitDirName)); err == nil {
			repos = append(repos, path)
		}
	}
	return repos, nil
}

func (rm *RepositoryManager) extractRepositoryInfo(repo *git.Repository, repoURL, localPath string) (*types.RepositoryInfo, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, errors.NewError(errors.ErrorTypeInvalidInput).
			WithMessage("failed to resolve HEAD").
			WithCause(err).
			WithContext("path", localPath).
			Build()
	}

	defaultBranch := branchMain
	if head.Name().IsBranch() {
		defaultBranch = head.Name().Short()
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, errors.NewError(errors.ErrorTypeInvalidInput).
			WithMessage("failed to read HEAD commit").
			WithCause(err).
			WithContext("path", localPath).
			Build()
	}

	totalBytes, fileCount, languages := rm.sweepWorkingTree(localPath)

	return &types.RepositoryInfo{
		URL:           repoURL,
		LocalPath:     localPath,
		DefaultBranch: defaultBranch,
		CommitHash:    commit.Hash.String(),
		Author:        fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email),
		CommitMessage: strings.TrimSpace(commit.Message),
		Languages:     languages,
		SizeMB:        float64(totalBytes) / (1024 * 1024),
		FileCount:     fileCount,
	}, nil
}

// sweepWorkingTree sums sizes and counts every file, .git included, and
// collects the quick language set.
func (rm *RepositoryManager) sweepWorkingTree(root string) (int64, int, []string) {
	var totalBytes int64
	fileCount := 0
	seen := make(map[string]bool)

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error { //nolint:errcheck // unreadable entries are skipped
		if err != nil {
			rm.logger.Debug("Skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		fileCount++
		if info, err := d.Info(); err == nil {
			totalBytes += info.Size()
		}
		if language, ok := quickLanguages[strings.ToLower(filepath.Ext(d.Name()))]; ok {
			seen[language] = true
		}
		return nil
	})

	languages := make([]string, 0, len(seen))
	for language := range seen {
		languages = append(languages, language)
	}
	sort.Strings(languages)

	return totalBytes, fileCount, languages
}
