package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/errors"
)

const pullRequestJSON = `{
	"number": 7,
	"title": "Add feature",
	"body": "Implements the feature",
	"state": "closed",
	"merged": true,
	"user": {"login": "octocat"},
	"head": {"ref": "feature", "sha": "headsha"},
	"base": {"ref": "main", "sha": "basesha"},
	"additions": 10,
	"deletions": 2,
	"html_url": "https://github.com/acme/demo/pull/7",
	"url": "https://api.github.com/repos/acme/demo/pulls/7",
	"labels": [{"name": "enhancement"}],
	"assignees": [{"login": "alice"}],
	"mergeable": true,
	"merged_by": {"login": "maintainer"},
	"comments": 3,
	"review_comments": 4,
	"commits": 2,
	"created_at": "2026-01-02T03:04:05Z",
	"updated_at": "2026-01-03T03:04:05Z"
}`

const pullRequestDiff = "diff --git a/README.md b/README.md\n--- a/README.md\n+++ b/README.md\n@@ -1 +1,2 @@\n hello\n+world\n"

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{
		Token:   "test-token",
		BaseURL: server.URL,
		Retry: &errors.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			Multiplier:      1,
		},
	})
	require.NoError(t, err)
	return client
}

func pullRequestHandler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/demo/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		if r.Header.Get("Accept") == "application/vnd.github.v3.diff" {
			_, _ = fmt.Fprint(w, pullRequestDiff)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, pullRequestJSON)
	})
	mux.HandleFunc("/repos/acme/demo/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			_, _ = fmt.Fprint(w, `[{"filename": "old.txt", "status": "removed"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/acme/demo/pulls/7/files?page=2>; rel="next"`, r.Host))
		_, _ = fmt.Fprint(w, `[{"filename": "README.md", "status": "modified"}, {"filename": "new.go", "status": "added"}, {"filename": "moved.go", "status": "renamed"}]`)
	})
	mux.HandleFunc("/repos/acme/demo/pulls/7/reviews", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[{"user": {"login": "bob"}}, {"user": null}, {"user": {"login": "bob"}}, {"user": {"login": "carol"}}]`)
	})
	return mux
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(ClientOptions{Token: "tok", RequestsPerHour: 60})
	require.NoError(t, err)
	assert.True(t, client.IsAuthenticated())
	assert.Equal(t, 60, client.RateLimiter().GetAvailableTokens())
	assert.Equal(t, "https://api.github.com/", client.apiClient.BaseURL.String())

	_, err = NewClient(ClientOptions{Token: "tok", BaseURL: "://bad"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
}

func TestClient_GetPullRequest(t *testing.T) {
	client := newTestClient(t, pullRequestHandler(t))

	info, err := client.GetPullRequest(context.Background(), "acme", "demo", 7)
	require.NoError(t, err)

	assert.Equal(t, "7", info.PRID)
	assert.Equal(t, "Add feature", info.Title)
	assert.Equal(t, "Implements the feature", info.Description)
	assert.Equal(t, "octocat", info.Author)
	assert.Equal(t, types.PRStatusMerged, info.Status)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), info.CreatedAt.UTC())

	assert.Equal(t, "feature", info.SourceBranch)
	assert.Equal(t, "main", info.TargetBranch)
	assert.Equal(t, "basesha", info.BaseCommit)
	assert.Equal(t, "headsha", info.HeadCommit)

	assert.Equal(t, pullRequestDiff, info.DiffText)
	assert.Equal(t, []string{"README.md", "new.go", "moved.go", "old.txt"}, info.ChangedFiles)
	assert.Equal(t, []string{"new.go"}, info.FilesAdded)
	assert.Equal(t, []string{"README.md"}, info.FilesModified)
	assert.Equal(t, []string{"old.txt"}, info.FilesDeleted)

	assert.Equal(t, 10, info.Additions)
	assert.Equal(t, 2, info.Deletions)
	assert.Equal(t, 12, info.ChangedLines)

	assert.Equal(t, types.PlatformGitHub, info.Platform)
	assert.Equal(t, "https://github.com/acme/demo/pull/7", info.WebURL)
	assert.Equal(t, []string{"enhancement"}, info.Labels)
	assert.Equal(t, []string{"alice"}, info.Assignees)
	assert.Equal(t, []string{"bob", "carol"}, info.Reviewers)

	assert.Equal(t, true, info.Metadata["mergeable"])
	assert.Equal(t, "maintainer", info.Metadata["merged_by"])
	assert.Equal(t, 3, info.Metadata["comments"])
	assert.Equal(t, 4, info.Metadata["review_comments"])
	assert.Equal(t, 2, info.Metadata["commits"])
	assert.False(t, info.IsFallback())
}

func TestClient_GetPullRequest_OpenAndClosed(t *testing.T) {
	for state, expected := range map[string]types.PRStatus{
		"open":   types.PRStatusOpen,
		"closed": types.PRStatusClosed,
	} {
		t.Run(state, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/repos/acme/demo/pulls/1", func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Accept") == "application/vnd.github.v3.diff" {
					return
				}
				_, _ = fmt.Fprintf(w, `{"number": 1, "state": %q, "merged": false}`, state)
			})
			mux.HandleFunc("/repos/acme/demo/pulls/1/files", func(w http.ResponseWriter, r *http.Request) {
				_, _ = fmt.Fprint(w, `[]`)
			})
			mux.HandleFunc("/repos/acme/demo/pulls/1/reviews", func(w http.ResponseWriter, r *http.Request) {
				_, _ = fmt.Fprint(w, `[]`)
			})

			info, err := newTestClient(t, mux).GetPullRequest(context.Background(), "acme", "demo", 1)
			require.NoError(t, err)
			assert.Equal(t, expected, info.Status)
			assert.Nil(t, info.Metadata["mergeable"])
			assert.Nil(t, info.Metadata["merged_by"])
			assert.Empty(t, info.ChangedFiles)
			assert.Empty(t, info.Reviewers)
		})
	}
}

func TestClient_GetPullRequest_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"message": "Not Found"}`)
	}))

	_, err := client.GetPullRequest(context.Background(), "acme", "demo", 99)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Contains(t, err.Error(), "acme/demo#99")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_GetPullRequest_RetriesServerErrors(t *testing.T) {
	var calls int32
	inner := pullRequestHandler(t)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = fmt.Fprint(w, `{"message": "bad gateway"}`)
			return
		}
		inner.ServeHTTP(w, r)
	}))

	info, err := client.GetPullRequest(context.Background(), "acme", "demo", 7)
	require.NoError(t, err)
	assert.Equal(t, "Add feature", info.Title)
}

func TestClient_GetPullRequest_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetPullRequest(context.Background(), "acme", "demo", 7)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRemoteOperation))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_GetPullRequest_Unauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"message": "Bad credentials"}`)
	}))

	_, err := client.GetPullRequest(context.Background(), "acme", "demo", 7)
	require.Error(t, err)
	assert.False(t, errors.IsRecoverable(err))
	assert.NotEmpty(t, errors.GetSuggestions(err))
}

func TestClient_ContextCancellation(t *testing.T) {
	client := newTestClient(t, pullRequestHandler(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetPullRequest(ctx, "acme", "demo", 7)
	assert.ErrorIs(t, err, context.Canceled)
}
