// Package pr fetches pull and merge request details from hosting
// platforms, degrading to a stub result when no platform API can serve
// the request.
package pr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/clock"
	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/git"
	"github.com/fumiya-kume/reposcan/pkg/github"
	"github.com/fumiya-kume/reposcan/pkg/gitlab"
)

// ErrUnavailable reports that a strategy has no API client to serve the
// request. The differ routes it to the fallback strategy.
var ErrUnavailable = errors.NewError(errors.ErrorTypeRemoteOperation).
	WithMessage("platform API unavailable").
	Build()

// Strategy fetches pull request details from one hosting platform
type Strategy interface {
	Name() string
	Supports(repoURL string) bool
	Fetch(ctx context.Context, repoURL, prID, token string) (*types.PullRequestInfo, error)
}

// GitHubClientFactory builds a GitHub reader for a token. An empty token
// lets the client discover one from the environment.
type GitHubClientFactory func(token string) (github.PullRequestReader, error)

// MergeRequestReader is the GitLab capability the differ depends on
type MergeRequestReader interface {
	GetMergeRequest(ctx context.Context, projectPath string, iid int) (*types.PullRequestInfo, error)
}

// GitLabClientFactory builds a GitLab reader for a token
type GitLabClientFactory func(token string) (MergeRequestReader, error)

// GitHubStrategy reads pull requests through the GitHub REST API
type GitHubStrategy struct {
	factory GitHubClientFactory
	clients map[string]github.PullRequestReader
	mutex   sync.Mutex
}

// NewGitHubStrategy creates a strategy; a nil factory makes it unavailable
func NewGitHubStrategy(factory GitHubClientFactory) *GitHubStrategy {
	return &GitHubStrategy{
		factory: factory,
		clients: make(map[string]github.PullRequestReader),
	}
}

// Name implements Strategy
func (s *GitHubStrategy) Name() string { return types.PlatformGitHub }

// Supports implements Strategy
func (s *GitHubStrategy) Supports(repoURL string) bool {
	return git.DetectPlatform(repoURL) == types.PlatformGitHub
}

// Fetch implements Strategy
func (s *GitHubStrategy) Fetch(ctx context.Context, repoURL, prID, token string) (*types.PullRequestInfo, error) {
	ref, err := git.ParseRepositoryURL(repoURL)
	if err != nil {
		return nil, err
	}
	number, err := parsePRNumber(prID)
	if err != nil {
		return nil, err
	}

	client, err := s.client(token)
	if err != nil {
		return nil, err
	}
	return client.GetPullRequest(ctx, ref.Owner, ref.Name, number)
}

// client reuses one reader per token so its rate limiter spans calls
func (s *GitHubStrategy) client(token string) (github.PullRequestReader, error) {
	if s.factory == nil {
		return nil, ErrUnavailable
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if c, ok := s.clients[token]; ok {
		return c, nil
	}
	c, err := s.factory(token)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrUnavailable
	}
	s.clients[token] = c
	return c, nil
}

// GitLabStrategy reads merge requests through the GitLab REST API
type GitLabStrategy struct {
	factory GitLabClientFactory
}

// NewGitLabStrategy creates a strategy; a nil factory makes it unavailable
func NewGitLabStrategy(factory GitLabClientFactory) *GitLabStrategy {
	return &GitLabStrategy{factory: factory}
}

// Name implements Strategy
func (s *GitLabStrategy) Name() string { return types.PlatformGitLab }

// Supports implements Strategy
func (s *GitLabStrategy) Supports(repoURL string) bool {
	return git.DetectPlatform(repoURL) == types.PlatformGitLab
}

// Fetch implements Strategy
func (s *GitLabStrategy) Fetch(ctx context.Context, repoURL, prID, token string) (*types.PullRequestInfo, error) {
	if s.factory == nil {
		return nil, ErrUnavailable
	}
	projectPath := git.ProjectPath(repoURL)
	if projectPath == "" {
		return nil, errors.InvalidInputError("cannot derive GitLab project path from " + repoURL)
	}
	iid, err := parsePRNumber(prID)
	if err != nil {
		return nil, err
	}

	client, err := s.factory(token)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, ErrUnavailable
	}
	return client.GetMergeRequest(ctx, projectPath, iid)
}

// FallbackStrategy produces the degraded stub result for any URL
type FallbackStrategy struct {
	clock clock.Clock
}

// NewFallbackStrategy creates the fallback; a nil clock uses real time
func NewFallbackStrategy(clk clock.Clock) *FallbackStrategy {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &FallbackStrategy{clock: clk}
}

// Name implements Strategy
func (s *FallbackStrategy) Name() string { return types.PlatformGitFallback }

// Supports implements Strategy
func (s *FallbackStrategy) Supports(string) bool { return true }

// Fetch implements Strategy and never fails
func (s *FallbackStrategy) Fetch(_ context.Context, repoURL, prID, _ string) (*types.PullRequestInfo, error) {
	return s.stub(repoURL, prID), nil
}

func (s *FallbackStrategy) stub(repoURL, prID string) *types.PullRequestInfo {
	now := s.clock.Now()
	return &types.PullRequestInfo{
		PRID:          prID,
		Title:         fmt.Sprintf("Pull Request #%s", prID),
		Description:   "PR details fetched via Git fallback",
		Author:        "unknown",
		CreatedAt:     now,
		UpdatedAt:     now,
		Status:        types.PRStatusUnknown,
		SourceBranch:  "unknown",
		TargetBranch:  "main",
		DiffText:      "Diff not available via Git fallback",
		ChangedFiles:  []string{},
		FilesAdded:    []string{},
		FilesModified: []string{},
		FilesDeleted:  []string{},
		Platform:      types.PlatformGitFallback,
		WebURL:        repoURL,
		Labels:        []string{},
		Assignees:     []string{},
		Reviewers:     []string{},
		Metadata:      map[string]interface{}{"fallback": true},
	}
}

func parsePRNumber(prID string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(prID), "#"))
	if err != nil || n <= 0 {
		return 0, errors.InvalidInputError("invalid pull request number: " + prID)
	}
	return n, nil
}

// NewGitHubClientFactory returns a factory backed by pkg/github
func NewGitHubClientFactory(base github.ClientOptions) GitHubClientFactory {
	return func(token string) (github.PullRequestReader, error) {
		opts := base
		opts.Token = token
		return github.NewClient(opts)
	}
}

// NewGitLabClientFactory returns a factory backed by pkg/gitlab
func NewGitLabClientFactory(base gitlab.ClientOptions) GitLabClientFactory {
	return func(token string) (MergeRequestReader, error) {
		opts := base
		opts.Token = token
		return gitlab.NewClient(opts)
	}
}
