package github

import (
	"context"

	"github.com/fumiya-kume/reposcan/internal/types"
)

// PullRequestReader defines the GitHub operations the differ depends on
type PullRequestReader interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*types.PullRequestInfo, error)
	IsAuthenticated() bool
}

// Ensure our Client implements the interface
var _ PullRequestReader = (*Client)(nil)
