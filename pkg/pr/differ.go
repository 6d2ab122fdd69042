package pr

import (
	"context"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/clock"
	"github.com/fumiya-kume/reposcan/pkg/config"
	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/github"
	"github.com/fumiya-kume/reposcan/pkg/gitlab"
	"github.com/fumiya-kume/reposcan/pkg/logger"
)

// Differ selects a platform strategy by URL and falls back to a stub
// result whenever that strategy is unavailable or fails.
type Differ struct {
	strategies []Strategy
	fallback   *FallbackStrategy
	logger     logger.LoggerInterface
}

// NewDiffer creates a differ trying strategies in order
func NewDiffer(clk clock.Clock, log logger.LoggerInterface, strategies ...Strategy) *Differ {
	return &Differ{
		strategies: strategies,
		fallback:   NewFallbackStrategy(clk),
		logger:     logger.Component(log, "pr"),
	}
}

// NewDifferFromConfig wires the GitHub and GitLab API strategies from the
// platforms section of cfg.
func NewDifferFromConfig(cfg *config.Config, log logger.LoggerInterface) *Differ {
	githubFactory := NewGitHubClientFactory(github.ClientOptions{
		BaseURL:         cfg.Platforms.GitHub.APIURL,
		RequestsPerHour: cfg.Platforms.GitHub.RequestsPerHour,
		Logger:          log,
	})
	gitlabFactory := NewGitLabClientFactory(gitlab.ClientOptions{
		BaseURL:  cfg.Platforms.GitLab.BaseURL,
		RetryMax: -1,
		Logger:   log,
	})

	return NewDiffer(nil, log,
		NewGitHubStrategy(githubFactory),
		NewGitLabStrategy(gitlabFactory),
	)
}

// GetPRDetails returns pull request details for repoURL. It never fails:
// unsupported platforms, missing clients and API errors all produce the
// fallback result.
func (d *Differ) GetPRDetails(ctx context.Context, repoURL, prID, token string) *types.PullRequestInfo {
strategies:
	for _, strategy := range d.strategies {
		if !strategy.Supports(repoURL) {
			continue
		}

		info, err := strategy.Fetch(ctx, repoURL, prID, token)
		switch {
		case err == nil && info != nil:
			return info
		case errors.Is(err, ErrUnavailable):
			d.logger.Debug("%s API unavailable, using Git fallback", strategy.Name())
		default:
			d.logger.Warn("%s fetch for PR %s failed, using Git fallback: %s", strategy.Name(), prID, logger.Redact(errors.MessageOf(err)))
		}
		break strategies
	}

	d.logger.Info("Using Git fallback for PR %s", prID)
	return d.fallback.stub(repoURL, prID)
}
