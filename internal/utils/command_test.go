package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, dir, name string) string {
	path := filepath.Join(dir, name)
	// #nosec G306 - test script must be executable
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755))
	return path
}

func TestResolveCommand_Override(t *testing.T) {
	dir := t.TempDir()
	bin := writeExecutable(t, dir, "my-semgrep")

	path, err := ResolveCommand("semgrep", bin)
	require.NoError(t, err)
	assert.Equal(t, bin, path)
}

func TestResolveCommand_OverrideNotExecutable(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "not-a-binary")
	require.NoError(t, os.WriteFile(plain, []byte("data"), 0600))

	_, err := ResolveCommand("semgrep", plain)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not executable")
}

func TestResolveCommand_FromPath(t *testing.T) {
	dir := t.TempDir()
	bin := writeExecutable(t, dir, "reposcan-fake-tool")
	t.Setenv("PATH", dir)

	path, err := ResolveCommand("reposcan-fake-tool", "")
	require.NoError(t, err)
	assert.Equal(t, bin, path)
}

func TestResolveCommand_NotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	_, err := ResolveCommand("reposcan-tool-that-does-not-exist", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
