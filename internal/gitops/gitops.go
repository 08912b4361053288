// Package gitops runs the git commands that version an exported books directory.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNothingToCommit is returned by CommitAll when the working tree is clean.
var ErrNothingToCommit = errors.New("nothing to commit")

// Author identifies who commits exported books.
type Author struct {
	Name  string
	Email string
}

func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

func git(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return out, nil
}

// Init initializes a new git repository at dir.
func Init(ctx context.Context, dir string) error {
	_, err := git(ctx, dir, "init", "--quiet")
	return err
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Clean reports whether the working tree has no changes, untracked files included.
func Clean(ctx context.Context, dir string) (bool, error) {
	out, err := git(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return len(strings.TrimSpace(string(out))) == 0, nil
}

// CommitAll stages all files and creates a commit. Returns the short commit hash.
func CommitAll(ctx context.Context, dir, message string, author Author) (string, error) {
	if _, err := git(ctx, dir, "add", "-A"); err != nil {
		return "", err
	}
	clean, err := Clean(ctx, dir)
	if err != nil {
		return "", err
	}
	if clean {
		return "", ErrNothingToCommit
	}

	// Committer identity comes from the environment so commits work without global git config.
	cmd := exec.CommandContext(ctx, "git", "commit", "--quiet", "-m", message, "--author", author.String())
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_COMMITTER_NAME="+author.Name,
		"GIT_COMMITTER_EMAIL="+author.Email,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git commit: %s: %w", strings.TrimSpace(string(out)), err)
	}

	out, err := git(ctx, dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
