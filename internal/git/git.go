// Package git reads the repository name and working-tree diff that lint
// requests are built from.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrGitNotInstalled is returned when the git binary cannot be found.
var ErrGitNotInstalled = errors.New("git is not installed or not in PATH")

// GetRoot returns the root directory of the git repository containing the
// current directory.
func GetRoot() (string, error) {
	return GetRootIn(context.Background(), "")
}

// GetRootIn returns the root of the repository containing dir. An empty dir
// means the current directory.
func GetRootIn(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		if errors.Is(err, ErrGitNotInstalled) {
			return "", err
		}
		return "", fmt.Errorf("not inside a git repository: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// GetProjectName returns the base name of the repository root for dir.
func GetProjectName(ctx context.Context, dir string) (string, error) {
	root, err := GetRootIn(ctx, dir)
	if err != nil {
		return "", err
	}
	name := filepath.Base(root)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("cannot derive a project name from %q", root)
	}
	return name, nil
}

// GetDiff returns the changes in the working tree against HEAD. With a
// non-empty file only that path is diffed.
func GetDiff(ctx context.Context, dir, file string) (string, error) {
	args := []string{"diff", "HEAD"}
	if file != "" {
		if strings.HasPrefix(file, "-") {
			return "", fmt.Errorf("invalid path %q: must not start with -", file)
		}
		args = append(args, "--", file)
	}
	out, err := run(ctx, dir, args...)
	if err != nil {
		return "", fmt.Errorf("failed to get diff: %w", err)
	}
	return out, nil
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return "", ErrGitNotInstalled
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %s", args[0], msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}
