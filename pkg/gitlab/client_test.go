package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/errors"
)

const mergeRequestJSON = `{
	"id": 100,
	"iid": 3,
	"project_id": 42,
	"title": "Fix bug",
	"description": "Fixes the bug",
	"state": "merged",
	"author": {"username": "dev"},
	"created_at": "2026-01-02T03:04:05Z",
	"updated_at": "2026-01-03T03:04:05Z",
	"source_branch": "fix",
	"target_branch": "main",
	"diff_refs": {"base_sha": "basesha", "head_sha": "headsha", "start_sha": "startsha"},
	"web_url": "https://gitlab.com/acme/demo/-/merge_requests/3",
	"labels": ["bug"],
	"assignees": [{"username": "alice"}],
	"reviewers": [{"username": "bob"}],
	"merge_status": "can_be_merged",
	"draft": true,
	"milestone": {"title": "v1.0"}
}`

const mergeRequestDiffsJSON = `[
	{"old_path": "a.go", "new_path": "a.go", "diff": "@@ -1 +1 @@\n-old\n+new\n"},
	{"old_path": "b.go", "new_path": "c.go", "diff": "@@ -0,0 +1 @@\n+x", "renamed_file": true}
]`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v4/projects/acme/demo/merge_requests/3":
			assert.Equal(t, "secret", r.Header.Get("PRIVATE-TOKEN"))
			_, _ = fmt.Fprint(w, mergeRequestJSON)
		case "/api/v4/projects/acme/demo/merge_requests/3/diffs":
			_, _ = fmt.Fprint(w, mergeRequestDiffsJSON)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprint(w, `{"message": "404 Not Found"}`)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(ClientOptions{})
	require.NoError(t, err)
	assert.False(t, client.IsAuthenticated())
	assert.Equal(t, DefaultBaseURL+"/", client.apiClient.BaseURL().String())

	client, err = NewClient(ClientOptions{Token: "secret", BaseURL: "https://gitlab.example.com/api/v4"})
	require.NoError(t, err)
	assert.True(t, client.IsAuthenticated())
	assert.Equal(t, "gitlab.example.com", client.apiClient.BaseURL().Host)
}

func TestClient_GetMergeRequest(t *testing.T) {
	server := newTestServer(t)
	client, err := NewClient(ClientOptions{Token: "secret", BaseURL: server.URL + "/api/v4"})
	require.NoError(t, err)

	info, err := client.GetMergeRequest(context.Background(), "acme/demo", 3)
	require.NoError(t, err)

	assert.Equal(t, "3", info.PRID)
	assert.Equal(t, "Fix bug", info.Title)
	assert.Equal(t, "Fixes the bug", info.Description)
	assert.Equal(t, "dev", info.Author)
	assert.Equal(t, types.PRStatusMerged, info.Status)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), info.CreatedAt.UTC())

	assert.Equal(t, "fix", info.SourceBranch)
	assert.Equal(t, "main", info.TargetBranch)
	assert.Equal(t, "basesha", info.BaseCommit)
	assert.Equal(t, "headsha", info.HeadCommit)

	assert.Equal(t, []string{"a.go", "c.go"}, info.ChangedFiles)
	assert.Empty(t, info.FilesAdded)
	assert.Empty(t, info.FilesModified)
	assert.Empty(t, info.FilesDeleted)

	expectedDiff := "diff --git a/a.go b/a.go\n--- a/a.go\n+++ b/a.go\n@@ -1 +1 @@\n-old\n+new\n" +
		"diff --git a/b.go b/c.go\n--- a/b.go\n+++ b/c.go\n@@ -0,0 +1 @@\n+x\n"
	assert.Equal(t, expectedDiff, info.DiffText)
	assert.Equal(t, 2, info.Additions)
	assert.Equal(t, 1, info.Deletions)
	assert.Equal(t, 3, info.ChangedLines)

	assert.Equal(t, types.PlatformGitLab, info.Platform)
	assert.Equal(t, "https://gitlab.com/acme/demo/-/merge_requests/3", info.WebURL)
	assert.Equal(t, server.URL+"/api/v4/projects/42/merge_requests/3", info.APIURL)
	assert.Equal(t, []string{"bug"}, info.Labels)
	assert.Equal(t, []string{"alice"}, info.Assignees)
	assert.Equal(t, []string{"bob"}, info.Reviewers)

	assert.Equal(t, true, info.Metadata["mergeable"])
	assert.Equal(t, true, info.Metadata["work_in_progress"])
	assert.Equal(t, "v1.0", info.Metadata["milestone"])
}

func TestClient_GetMergeRequest_NotFound(t *testing.T) {
	server := newTestServer(t)
	client, err := NewClient(ClientOptions{Token: "secret", BaseURL: server.URL + "/api/v4"})
	require.NoError(t, err)

	_, err = client.GetMergeRequest(context.Background(), "acme/demo", 99)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Contains(t, err.Error(), "acme/demo!99")
}

func TestClient_GetMergeRequest_Forbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = fmt.Fprint(w, `{"message": "403 Forbidden"}`)
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{BaseURL: server.URL + "/api/v4"})
	require.NoError(t, err)

	_, err = client.GetMergeRequest(context.Background(), "acme/private", 1)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRemoteOperation))
	assert.NotEmpty(t, errors.GetSuggestions(err))
}

func TestClient_GetMergeRequest_Canceled(t *testing.T) {
	server := newTestServer(t)
	client, err := NewClient(ClientOptions{Token: "secret", BaseURL: server.URL + "/api/v4"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.GetMergeRequest(ctx, "acme/demo", 3)
	assert.ErrorIs(t, err, context.Canceled)
}
