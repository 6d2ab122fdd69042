// Package github reads pull requests from the GitHub REST API with rate
// limiting and retries.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/auth"
	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/clock"
	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/logger"
)

const (
	defaultHost     = "github.com"
	defaultPageSize = 100
	requestTimeout  = 30 * time.Second
)

// ClientOptions configures a Client. Zero values select defaults.
type ClientOptions struct {
	// Token is used as-is when set; otherwise go-gh discovers one from
	// GH_TOKEN, GITHUB_TOKEN or the gh CLI configuration.
	Token string
	// BaseURL points at a GitHub Enterprise or test API endpoint
	BaseURL         string
	RequestsPerHour int
	Retry           *errors.RetryConfig
	Clock           clock.Clock
	Logger          logger.LoggerInterface
}

// Client wraps the go-github API client
type Client struct {
	apiClient     *github.Client
	rateLimiter   *RateLimiter
	retry         errors.RetryConfig
	clock         clock.Clock
	authenticated bool
	logger        logger.LoggerInterface
}

// NewClient creates a GitHub client
func NewClient(opts ClientOptions) (*Client, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}

	token := opts.Token
	if token == "" {
		token, _ = auth.TokenForHost(defaultHost)
	}

	httpClient := &http.Client{Timeout: requestTimeout}
	if token != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		httpClient.Timeout = requestTimeout
	}

	apiClient := github.NewClient(httpClient)
	if opts.BaseURL != "" {
		baseURL, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, errors.NewError(errors.ErrorTypeConfiguration).
				WithMessage("invalid GitHub API URL").
				WithCause(err).
				WithContext("url", opts.BaseURL).
				Build()
		}
		apiClient.BaseURL = baseURL
	}

	requestsPerHour := opts.RequestsPerHour
	if requestsPerHour <= 0 {
		// authenticated REST quota
		requestsPerHour = 5000
	}

	retry := errors.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	return &Client{
		apiClient:     apiClient,
		rateLimiter:   NewRateLimiterWithClock(requestsPerHour, time.Hour, clk),
		retry:         retry,
		clock:         clk,
		authenticated: token != "",
		logger:        logger.Component(opts.Logger, "github"),
	}, nil
}

// IsAuthenticated reports whether a token was configured or discovered
func (c *Client) IsAuthenticated() bool {
	return c.authenticated
}

// RateLimiter exposes the client's request pacing
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// GetPullRequest fetches a pull request with its unified diff, file status
// breakdown and reviewers.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*types.PullRequestInfo, error) {
	var pr *github.PullRequest
	ref := pullRef{owner: owner, repo: repo, number: number}
	err := c.call(ctx, ref, "get pull request", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		pr, resp, err = c.apiClient.PullRequests.Get(ctx, owner, repo, number)
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Fetched GitHub PR %s/%s#%d: %s", owner, repo, number, pr.GetTitle())

	diff, err := c.getDiff(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	files, err := c.listFiles(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	reviewers, err := c.listReviewers(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	info := convertPullRequest(pr)
	info.DiffText = diff
	info.Reviewers = reviewers
	for _, f := range files {
		name := f.GetFilename()
		info.ChangedFiles = append(info.ChangedFiles, name)
		switch f.GetStatus() {
		case "added":
			info.FilesAdded = append(info.FilesAdded, name)
		case "modified":
			info.FilesModified = append(info.FilesModified, name)
		case "removed":
			info.FilesDeleted = append(info.FilesDeleted, name)
		}
	}

	return info, nil
}

func (c *Client) getDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	var diff string
	ref := pullRef{owner: owner, repo: repo, number: number}
	err := c.call(ctx, ref, "get pull request diff", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		diff, resp, err = c.apiClient.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
		return resp, err
	})
	return diff, err
}

func (c *Client) listFiles(ctx context.Context, owner, repo string, number int) ([]*github.CommitFile, error) {
	var all []*github.CommitFile
	ref := pullRef{owner: owner, repo: repo, number: number}
	opts := &github.ListOptions{PerPage: defaultPageSize}

	for {
		var page []*github.CommitFile
		var resp *github.Response
		err := c.call(ctx, ref, "list pull request files", func() (*github.Response, error) {
			var err error
			page, resp, err = c.apiClient.PullRequests.ListFiles(ctx, owner, repo, number, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// listReviewers returns review authors in review order, deduplicated
func (c *Client) listReviewers(ctx context.Context, owner, repo string, number int) ([]string, error) {
	reviewers := []string{}
	seen := make(map[string]bool)
	ref := pullRef{owner: owner, repo: repo, number: number}
	opts := &github.ListOptions{PerPage: defaultPageSize}

	for {
		var page []*github.PullRequestReview
		var resp *github.Response
		err := c.call(ctx, ref, "list pull request reviews", func() (*github.Response, error) {
			var err error
			page, resp, err = c.apiClient.PullRequests.ListReviews(ctx, owner, repo, number, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, review := range page {
			if review.User == nil {
				continue
			}
			login := review.GetUser().GetLogin()
			if login != "" && !seen[login] {
				seen[login] = true
				reviewers = append(reviewers, login)
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return reviewers, nil
		}
		opts.Page = resp.NextPage
	}
}

type pullRef struct {
	owner  string
	repo   string
	number int
}

func (r pullRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.owner, r.repo, r.number)
}

// call paces fn through the rate limiter, feeds the server-reported quota
// back into it and retries recoverable failures.
func (c *Client) call(ctx context.Context, ref pullRef, operation string, fn func() (*github.Response, error)) error {
	return errors.RetryWithClock(ctx, c.clock, c.retry, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		resp, err := fn()
		if resp != nil && resp.Rate.Limit > 0 {
			c.rateLimiter.Observe(resp.Rate.Remaining, resp.Rate.Reset.Time)
		}
		if err != nil {
			c.logger.Debug("GitHub %s for %s failed: %v", operation, ref, err)
			return classify(err, resp, ref)
		}
		return nil
	}, nil)
}

// classify maps go-github failures onto the error taxonomy. Server errors
// and rate limiting are recoverable; missing or forbidden resources are not.
func classify(err error, resp *github.Response, ref pullRef) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	switch {
	case status == http.StatusNotFound:
		return errors.NewError(errors.ErrorTypeNotFound).
			WithMessagef("pull request %s not found or access denied", ref).
			WithCause(err).
			Build()
	case status == http.StatusUnauthorized:
		return errors.NewError(errors.ErrorTypeRemoteOperation).
			WithMessage("GitHub authentication failed").
			WithCause(err).
			WithSuggestion("Set GH_TOKEN or run 'gh auth login'").
			Build()
	case status == http.StatusForbidden && !isRateLimit(err):
		return errors.NewError(errors.ErrorTypeRemoteOperation).
			WithMessagef("access forbidden to %s", ref).
			WithCause(err).
			Build()
	}

	return errors.NewError(errors.ErrorTypeRemoteOperation).
		WithMessagef("GitHub request for %s failed", ref).
		WithCause(err).
		WithContext("status", status).
		WithRecoverable(true).
		Build()
}

func isRateLimit(err error) bool {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	return errors.As(err, &rateErr) || errors.As(err, &abuseErr)
}

func convertPullRequest(pr *github.PullRequest) *types.PullRequestInfo {
	status := types.PRStatusOpen
	switch {
	case pr.GetMerged():
		status = types.PRStatusMerged
	case pr.GetState() == "closed":
		status = types.PRStatusClosed
	}

	labels := []string{}
	for _, label := range pr.Labels {
		labels = append(labels, label.GetName())
	}
	assignees := []string{}
	for _, assignee := range pr.Assignees {
		assignees = append(assignees, assignee.GetLogin())
	}

	var mergeable interface{}
	if pr.Mergeable != nil {
		mergeable = *pr.Mergeable
	}
	var mergedBy interface{}
	if pr.MergedBy != nil {
		mergedBy = pr.GetMergedBy().GetLogin()
	}

	return &types.PullRequestInfo{
		PRID:        fmt.Sprintf("%d", pr.GetNumber()),
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
		Author:      pr.GetUser().GetLogin(),
		CreatedAt:   pr.GetCreatedAt().Time,
		UpdatedAt:   pr.GetUpdatedAt().Time,
		Status:      status,

		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		BaseCommit:   pr.GetBase().GetSHA(),
		HeadCommit:   pr.GetHead().GetSHA(),

		ChangedFiles:  []string{},
		FilesAdded:    []string{},
		FilesModified: []string{},
		FilesDeleted:  []string{},

		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedLines: pr.GetAdditions() + pr.GetDeletions(),

		Platform:  types.PlatformGitHub,
		WebURL:    pr.GetHTMLURL(),
		APIURL:    pr.GetURL(),
		Labels:    labels,
		Assignees: assignees,
		Reviewers: []string{},

		Metadata: map[string]interface{}{
			"mergeable":       mergeable,
			"merged_by":       mergedBy,
			"comments":        pr.GetComments(),
			"review_comments": pr.GetReviewComments(),
			"commits":         pr.GetCommits(),
		},
	}
}
