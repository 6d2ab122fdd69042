package git

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/errors"
)

// validURLMarkers are matched against the lowercased URL
var validURLMarkers = []string{"github.com", "gitlab.com", "bitbucket.org", ".git"}

var platformHosts = map[string]string{
	"github.com":    types.PlatformGitHub,
	"gitlab.com":    types.PlatformGitLab,
	"bitbucket.org": types.PlatformBitbucket,
}

// scpURLPattern matches git@host:owner/repo(.git)
var scpURLPattern = regexp.MustCompile(`^[\w.-]+@([^:/]+):(.+?)/?$`)

var prNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/pull/(\d+)`),
	regexp.MustCompile(`/merge_requests/(\d+)`),
	regexp.MustCompile(`/pullrequests/(\d+)`),
}

// RepoRef identifies a repository on a known hosting platform
type RepoRef struct {
	Platform string
	Host     string
	Owner    string
	Name     string
}

// FullName returns "owner/name"
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// CloneURL returns the canonical HTTPS clone URL
func (r RepoRef) CloneURL() string {
	return fmt.Sprintf("https://%s/%s/%s.git", r.Host, r.Owner, r.Name)
}

// WorkspaceDirName is the directory name used for diff checkouts
func (r RepoRef) WorkspaceDirName() string {
	return r.Platform + "_" + r.Owner + "_" + r.Name
}

// IsValidRepositoryURL reports whether url looks like a hosted Git repository.
// It is a substring check and never touches the network.
func IsValidRepositoryURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, marker := range validURLMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// DetectPlatform maps a repository URL to its hosting platform tag
func DetectPlatform(rawURL string) string {
	lower := strings.ToLower(rawURL)
	for _, host := range []string{"github.com", "gitlab.com", "bitbucket.org"} {
		if strings.Contains(lower, host) {
			return platformHosts[host]
		}
	}
	return types.PlatformUnknown
}

// repositoryPath returns the URL path without surrounding slashes or a .git suffix
func repositoryPath(rawURL string) string {
	if m := scpURLPattern.FindStringSubmatch(rawURL); m != nil {
		return strings.TrimSuffix(strings.Trim(m[2], "/"), ".git")
	}

	path := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		path = parsed.Path
	}
	return strings.TrimSuffix(strings.Trim(path, "/"), ".git")
}

// RepositoryName returns the last path segment of the URL without .git
func RepositoryName(rawURL string) string {
	path := repositoryPath(rawURL)
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ProjectPath returns the full namespace path, including GitLab subgroups
func ProjectPath(rawURL string) string {
	return repositoryPath(rawURL)
}

// ParseRepositoryURL accepts https and scp-style URLs on GitHub, GitLab and Bitbucket
func ParseRepositoryURL(rawURL string) (RepoRef, error) {
	var host, path string

	if m := scpURLPattern.FindStringSubmatch(rawURL); m != nil {
		host, path = m[1], m[2]
	} else {
		parsed, err := url.Parse(strings.TrimSpace(rawURL))
		if err != nil || parsed.Host == "" || parsed.Scheme != "https" {
			return RepoRef{}, errors.InvalidInputError("invalid repository URL: " + logSafeURL(rawURL))
		}
		host, path = parsed.Hostname(), parsed.Path
	}

	host = strings.ToLower(host)
	platform, ok := platformHosts[host]
	if !ok {
		return RepoRef{}, errors.InvalidInputError("unsupported platform: " + host)
	}

	var parts []string
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) < 2 {
		return RepoRef{}, errors.InvalidInputError("invalid repository path: " + path)
	}

	return RepoRef{
		Platform: platform,
		Host:     host,
		Owner:    parts[0],
		Name:     strings.TrimSuffix(parts[1], ".git"),
	}, nil
}

// AuthenticatedURL embeds token into an https URL. GitLab expects the
// oauth2 user name; other hosts take the token as the user name.
func AuthenticatedURL(rawURL, token string) string {
	if token == "" || !strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	if strings.Contains(rawURL, "gitlab.com") {
		return strings.Replace(rawURL, "https://", "https://oauth2:"+token+"@", 1)
	}
	return strings.Replace(rawURL, "https://", "https://"+token+"@", 1)
}

// ExtractPRNumber parses the number out of a GitHub, GitLab or Bitbucket PR URL
func ExtractPRNumber(prURL string) (int, bool) {
	for _, pattern := range prNumberPatterns {
		if m := pattern.FindStringSubmatch(prURL); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

// logSafeURL strips any userinfo before a URL reaches a message
func logSafeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.User == nil {
		return rawURL
	}
	parsed.User = nil
	return parsed.String()
}
