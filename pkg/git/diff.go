package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/fumiya-kume/reposcan/internal/types"
)

// maxPRCommits bounds the commit walk when the base is not an ancestor
const maxPRCommits = 250

// baseBranches are tried in order on origin before falling back to the first parent
var baseBranches = []string{"main", "master", "develop"}

// GetPRDiff fetches the pull request head into a cached workspace checkout
// and diffs it against the base branch. Failures never escape: they are
// reported through PRDiff.Error.
func (rm *RepositoryManager) GetPRDiff(ctx context.Context, repoURL string, prNumber int) *types.PRDiff {
	result := &types.PRDiff{
		PRID:         prNumber,
		RepoURL:      repoURL,
		FilesChanged: []string{},
		Commits:      []types.PRCommit{},
	}

	fail := func(format string, args ...interface{}) *types.PRDiff {
		msg := fmt.Sprintf(format, args...)
		result.Error = &msg
		rm.logger.Warn("%s", msg)
		return result
	}

	ref, err := ParseRepositoryURL(repoURL)
	if err != nil {
		return fail("Error getting PR diff: %v", err)
	}

	repo, err := rm.openWorkspace(ctx, ref)
	if err != nil {
		return fail("Error getting PR diff: %v", err)
	}

	head, base, err := rm.resolvePRCommits(ctx, repo, prNumber)
	if err != nil {
		if ref.Platform == types.PlatformGitLab || ref.Platform == types.PlatformBitbucket {
			return fail("PR diff not available for %s (API access required)", ref.Platform)
		}
		return fail("Failed to fetch PR %d: %v", prNumber, err)
	}

	patch, err := base.PatchContext(ctx, head)
	if err != nil {
		return fail("Error getting PR diff: %v", err)
	}

	result.Diff = patch.String()
	result.FilesChanged = changedFiles(patch)
	result.Stats = CountDiffStats(result.Diff)
	result.Stats.Files = len(result.FilesChanged)
	result.Commits = rm.commitsBetween(repo, head, base)

	rm.logger.Info("Fetched PR %d diff: %d files changed", prNumber, len(result.FilesChanged))
	return result
}

// openWorkspace opens <basePath>/<platform>_<owner>_<repo>, cloning it on first use
func (rm *RepositoryManager) openWorkspace(ctx context.Context, ref RepoRef) (*git.Repository, error) {
	path := filepath.Join(rm.basePath, ref.WorkspaceDirName())

	if _, err := os.Stat(path); err == nil {
		return git.PlainOpen(path)
	}

	rm.logger.Info("Cloning %s into diff workspace %s", ref.CloneURL(), path)
	if err := os.MkdirAll(rm.basePath, 0o750); err != nil {
		return nil, err
	}

	repo, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:  ref.CloneURL(),
		Tags: git.NoTags,
	})
	if err != nil {
		_ = os.RemoveAll(path) //nolint:errcheck // cleanup on failure is best effort
		return nil, err
	}
	return repo, nil
}

func (rm *RepositoryManager) resolvePRCommits(ctx context.Context, repo *git.Repository, prNumber int) (*object.Commit, *object.Commit, error) {
	prRef := fmt.Sprintf("pull/%d/head", prNumber)
	refSpec := gitconfig.RefSpec(fmt.Sprintf("+refs/%s:refs/remotes/%s/%s", prRef, git.DefaultRemoteName, prRef))

	rm.logger.Info("Fetching PR %d reference", prNumber)
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Tags:       git.NoTags,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return nil, nil, err
	}
	rm.refreshBaseBranches(ctx, repo)

	headRef, err := repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, prRef), true)
	if err != nil {
		return nil, nil, err
	}
	head, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, nil, err
	}

	for _, branch := range baseBranches {
		baseRef, err := repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, branch), true)
		if err != nil {
			continue
		}
		if base, err := repo.CommitObject(baseRef.Hash()); err == nil {
			return head, base, nil
		}
	}

	if head.NumParents() > 0 {
		parent, err := head.Parent(0)
		if err == nil {
			return head, parent, nil
		}
	}
	return nil, nil, fmt.Errorf("cannot find base commit for comparison")
}

// refreshBaseBranches moves each remote base branch to the upstream tip.
// Branches the remote does not have are skipped one by one.
func (rm *RepositoryManager) refreshBaseBranches(ctx context.Context, repo *git.Repository) {
	for _, branch := range baseBranches {
		refSpec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", branch, git.DefaultRemoteName, branch))
		err := repo.FetchContext(ctx, &git.FetchOptions{
			RemoteName: git.DefaultRemoteName,
			RefSpecs:   []gitconfig.RefSpec{refSpec},
			Tags:       git.NoTags,
		})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			rm.logger.Debug("Could not refresh base branch %s: %v", branch, err)
		}
	}
}

// changedFiles lists each touched path once, preferring the pre-image name
func changedFiles(patch *object.Patch) []string {
	files := []string{}
	seen := make(map[string]bool)

	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		var path string
		switch {
		case from != nil:
			path = from.Path()
		case to != nil:
			path = to.Path()
		default:
			continue
		}
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	return files
}

// CountDiffStats counts added and removed lines in a unified diff, ignoring
// the +++ and --- file headers.
func CountDiffStats(diff string) types.DiffStats {
	var stats types.DiffStats
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			stats.Additions++
		case strings.HasPrefix(line, "-"):
			stats.Deletions++
		}
	}
	return stats
}

// commitsBetween walks from head back to base, exclusive of base
func (rm *RepositoryManager) commitsBetween(repo *git.Repository, head, base *object.Commit) []types.PRCommit {
	commits := []types.PRCommit{}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		rm.logger.Warn("Could not list PR commits: %v", err)
		return commits
	}
	defer iter.Close()

	err = iter.ForEach(func(c *object.Commit) error {
		if c.Hash == base.Hash || len(commits) >= maxPRCommits {
			return storer.ErrStop
		}
		commits = append(commits, types.PRCommit{
			SHA:     c.Hash.String()[:8],
			Message: strings.TrimSpace(c.Message),
			Author:  c.Author.Name,
			Date:    c.Committer.When,
		})
		return nil
	})
	if err != nil {
		// shallow histories end with a missing parent
		rm.logger.Debug("Commit walk stopped early: %v", err)
	}
	return commits
}
