package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/errors"
)

func TestTreeWatcher_ReprofilesOnChange(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"README.md": "# demo\n"})

	analyzer := NewAnalyzer(DefaultAnalyzerConfig(), NewProfileCache(time.Hour, nil), nil)
	watcher := NewTreeWatcher(analyzer, 20*time.Millisecond, nil)

	profiles := make(chan *types.ProjectLanguageProfile, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watcher.Watch(ctx, root, func(p *types.ProjectLanguageProfile, err error) {
			if err == nil {
				profiles <- p
			}
		})
	}()

	select {
	case p := <-profiles:
		assert.Equal(t, types.UnknownLanguage, p.PrimaryLanguage)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial profile")
	}

	writeTree(t, root, map[string]string{"main.go": "package main\n"})

	deadline := time.After(5 * time.Second)
	for found := false; !found; {
		select {
		case p := <-profiles:
			found = p.PrimaryLanguage == "Go"
		case <-deadline:
			t.Fatal("tree change was not re-profiled")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestTreeWatcher_MissingRoot(t *testing.T) {
	watcher := NewTreeWatcher(NewAnalyzer(DefaultAnalyzerConfig(), nil, nil), 0, nil)

	err := watcher.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), func(*types.ProjectLanguageProfile, error) {})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestWatchIgnored(t *testing.T) {
	root := string(os.PathSeparator) + "repo"

	assert.True(t, watchIgnored(root, filepath.Join(root, "node_modules", "x.js")))
	assert.True(t, watchIgnored(root, filepath.Join(root, ".git", "index")))
	assert.True(t, watchIgnored(root, filepath.Join(root, "src", ".hidden.py")))
	assert.False(t, watchIgnored(root, filepath.Join(root, "src", "main.go")))
	assert.False(t, watchIgnored(root, root))
}
