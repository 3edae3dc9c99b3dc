// gitinfo.go reads Git metadata to stamp run logs.
package gitinfo

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Head returns the commit checked out in dir and whether the worktree is dirty.
// An empty dir means the current working directory.
func Head(ctx context.Context, dir string) (commit string, dirty bool, err error) {
	output, err := git(ctx, dir, "rev-parse", "HEAD").Output()
	if err != nil {
		return "", false, err
	}
	commit = strings.TrimSpace(string(output))
	statusOut, err := git(ctx, dir, "status", "--porcelain").Output()
	if err != nil {
		return commit, false, fmt.Errorf("git status: %w", err)
	}
	dirty = len(strings.TrimSpace(string(statusOut))) > 0
	return commit, dirty, nil
}

func git(ctx context.Context, dir string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd
}
