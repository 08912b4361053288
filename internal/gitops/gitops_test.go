package gitops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuthor = Author{Name: "Test Author", Email: "test@example.com"}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func TestInit(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	require.NoError(t, Init(context.Background(), dir))

	_, err := os.Stat(filepath.Join(dir, ".git"))
	require.NoError(t, err, ".git directory should exist")
}

func TestIsRepo(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	assert.False(t, IsRepo(dir), "empty dir should not be a repo")

	require.NoError(t, Init(context.Background(), dir))
	assert.True(t, IsRepo(dir), "initialized dir should be a repo")
}

func TestCommitAll(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Init(ctx, dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("hello"), 0o644))

	hash, err := CommitAll(ctx, dir, "export: january", testAuthor)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	log := exec.Command("git", "log", "--format=%s", "-1")
	log.Dir = dir
	out, err := log.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "export: january")

	authorLog := exec.Command("git", "log", "--format=%an <%ae>", "-1")
	authorLog.Dir = dir
	out, err = authorLog.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "Test Author <test@example.com>")
}

func TestCommitAll_NothingToCommit(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Init(ctx, dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	_, err := CommitAll(ctx, dir, "first", testAuthor)
	require.NoError(t, err)

	_, err = CommitAll(ctx, dir, "second", testAuthor)
	assert.ErrorIs(t, err, ErrNothingToCommit)
}

func TestClean(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Init(ctx, dir))

	clean, err := Clean(ctx, dir)
	require.NoError(t, err)
	assert.True(t, clean)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	clean, err = Clean(ctx, dir)
	require.NoError(t, err)
	assert.False(t, clean)
}
