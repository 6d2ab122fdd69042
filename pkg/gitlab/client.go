// Package gitlab reads merge requests from the GitLab REST API.
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/xanzy/go-gitlab"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/git"
	"github.com/fumiya-kume/reposcan/pkg/logger"
)

// DefaultBaseURL is the gitlab.com API root
const DefaultBaseURL = "https://gitlab.com/api/v4"

const diffPageSize = 100

// ClientOptions configures a Client
type ClientOptions struct {
	Token   string
	BaseURL string
	// RetryMax bounds go-gitlab's built-in retries; negative keeps its default
	RetryMax int
	Logger   logger.LoggerInterface
}

// Client wraps the go-gitlab API client
type Client struct {
	apiClient     *gitlab.Client
	authenticated bool
	logger        logger.LoggerInterface
}

// NewClient creates a GitLab client. An empty token yields anonymous
// access, which only reaches public projects.
func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	clientOpts := []gitlab.ClientOptionFunc{gitlab.WithBaseURL(baseURL)}
	if opts.RetryMax >= 0 {
		clientOpts = append(clientOpts, gitlab.WithCustomRetryMax(opts.RetryMax))
	}

	apiClient, err := gitlab.NewClient(opts.Token, clientOpts...)
	if err != nil {
		return nil, errors.NewError(errors.ErrorTypeConfiguration).
			WithMessage("failed to create GitLab client").
			WithCause(err).
			WithContext("base_url", baseURL).
			Build()
	}

	return &Client{
		apiClient:     apiClient,
		authenticated: opts.Token != "",
		logger:        logger.Component(opts.Logger, "gitlab"),
	}, nil
}

// IsAuthenticated reports whether a token was configured
func (c *Client) IsAuthenticated() bool {
	return c.authenticated
}

// GetMergeRequest fetches a merge request and its per-file diffs. GitLab
// does not report a per-file status breakdown, so FilesAdded,
// FilesModified and FilesDeleted stay empty.
func (c *Client) GetMergeRequest(ctx context.Context, projectPath string, iid int) (*types.PullRequestInfo, error) {
	mr, resp, err := c.apiClient.MergeRequests.GetMergeRequest(projectPath, iid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classify(ctx, err, resp, projectPath, iid)
	}

	c.logger.Info("Fetched GitLab MR %s!%d: %s", projectPath, iid, mr.Title)

	diffs, err := c.listDiffs(ctx, projectPath, iid)
	if err != nil {
		return nil, err
	}

	info := convertMergeRequest(mr, c.apiClient.BaseURL().String())

	var text strings.Builder
	for _, d := range diffs {
		info.ChangedFiles = append(info.ChangedFiles, d.NewPath)
		fmt.Fprintf(&text, "diff --git a/%s b/%s\n--- a/%s\n+++ b/%s\n", d.OldPath, d.NewPath, d.OldPath, d.NewPath)
		text.WriteString(d.Diff)
		if d.Diff != "" && !strings.HasSuffix(d.Diff, "\n") {
			text.WriteString("\n")
		}
	}
	info.DiffText = text.String()

	stats := git.CountDiffStats(info.DiffText)
	info.Additions = stats.Additions
	info.Deletions = stats.Deletions
	info.ChangedLines = stats.Additions + stats.Deletions

	return info, nil
}

func (c *Client) listDiffs(ctx context.Context, projectPath string, iid int) ([]*gitlab.MergeRequestDiff, error) {
	var all []*gitlab.MergeRequestDiff
	opts := &gitlab.ListMergeRequestDiffsOptions{
		ListOptions: gitlab.ListOptions{PerPage: diffPageSize},
	}

	for {
		page, resp, err := c.apiClient.MergeRequests.ListMergeRequestDiffs(projectPath, iid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classify(ctx, err, resp, projectPath, iid)
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func classify(ctx context.Context, err error, resp *gitlab.Response, projectPath string, iid int) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	ref := fmt.Sprintf("%s!%d", projectPath, iid)

	if resp != nil && resp.Response != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return errors.NewError(errors.ErrorTypeNotFound).
				WithMessagef("merge request %s not found or access denied", ref).
				WithCause(err).
				Build()
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.NewError(errors.ErrorTypeRemoteOperation).
				WithMessagef("access to merge request %s was refused", ref).
				WithCause(err).
				WithSuggestion("Provide a GitLab personal access token with read_api scope").
				Build()
		}
	}

	return errors.RemoteOperationError("fetch merge request "+ref, err)
}

func convertMergeRequest(mr *gitlab.MergeRequest, apiRoot string) *types.PullRequestInfo {
	info := &types.PullRequestInfo{
		PRID:         fmt.Sprintf("%d", mr.IID),
		Title:        mr.Title,
		Description:  mr.Description,
		Status:       types.PRStatus(mr.State),
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		BaseCommit:   mr.DiffRefs.BaseSha,
		HeadCommit:   mr.DiffRefs.HeadSha,

		ChangedFiles:  []string{},
		FilesAdded:    []string{},
		FilesModified: []string{},
		FilesDeleted:  []string{},

		Platform:  types.PlatformGitLab,
		WebURL:    mr.WebURL,
		APIURL:    fmt.Sprintf("%sprojects/%d/merge_requests/%d", apiRoot, mr.ProjectID, mr.IID),
		Labels:    []string{},
		Assignees: []string{},
		Reviewers: []string{},
	}

	if mr.Author != nil {
		info.Author = mr.Author.Username
	}
	if mr.CreatedAt != nil {
		info.CreatedAt = *mr.CreatedAt
	}
	if mr.UpdatedAt != nil {
		info.UpdatedAt = *mr.UpdatedAt
	}
	info.Labels = append(info.Labels, mr.Labels...)
	for _, assignee := range mr.Assignees {
		info.Assignees = append(info.Assignees, assignee.Username)
	}
	for _, reviewer := range mr.Reviewers {
		info.Reviewers = append(info.Reviewers, reviewer.Username)
	}

	var milestone interface{}
	if mr.Milestone != nil {
		milestone = mr.Milestone.Title
	}
	info.Metadata = map[string]interface{}{
		"mergeable":        mr.MergeStatus == "can_be_merged",
		"work_in_progress": mr.Draft,
		"milestone":        milestone,
	}

	return info
}
