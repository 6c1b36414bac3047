package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// WorkingTreeStatus describes the state of one working clone.
type WorkingTreeStatus struct {
	Branch    string
	Staged    int
	Modified  int
	Untracked int
}

// Status inspects the working tree at repoPath and returns the current
// branch plus staged/modified/untracked counts.
func Status(ctx context.Context, repoPath string) (*WorkingTreeStatus, error) {
	branch, err := CurrentBranch(ctx, repoPath)
	if err != nil {
		return nil, err
	}

	output, err := run(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get git status: %s", strings.TrimSpace(output))
	}

	status := &WorkingTreeStatus{Branch: branch}
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 2 {
			continue
		}

		index := line[0]
		worktree := line[1]

		if index == '?' && worktree == '?' {
			status.Untracked++
			continue
		}
		if index != ' ' && index != '?' {
			status.Staged++
		}
		if worktree != ' ' && worktree != '?' {
			status.Modified++
		}
	}

	return status, nil
}

// CurrentBranch returns the checked-out branch name. A detached HEAD is
// reported as "(detached at <short-sha>)".
func CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	output, err := run(ctx, repoPath, "branch", "--show-current")
	if err != nil {
		return "", eris.Wrapf(err, "failed to get current branch: %s", strings.TrimSpace(output))
	}

	branch := strings.TrimSpace(output)
	if branch != "" {
		return branch, nil
	}

	// Detached HEAD: fall back to the commit we are parked on
	output, err = run(ctx, repoPath, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "(detached)", nil
	}

	return fmt.Sprintf("(detached at %s)", strings.TrimSpace(output)), nil
}
