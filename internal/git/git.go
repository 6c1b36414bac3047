package git

import (
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrRemoteUnreachable marks a git failure caused by the network or
// authentication rather than local state. Callers distinguish it with
// eris.Is; network failures are surfaced, never retried automatically.
var ErrRemoteUnreachable = eris.New("remote unreachable")

// IsRemoteUnreachable reports whether err stems from a network or auth
// failure rather than local repository state.
func IsRemoteUnreachable(err error) bool {
	return eris.Is(err, ErrRemoteUnreachable)
}

// networkFailureMarkers are substrings of git stderr that indicate the
// remote could not be reached or refused authentication.
var networkFailureMarkers = []string{
	"Could not resolve host",
	"unable to access",
	"Connection refused",
	"Connection timed out",
	"Operation timed out",
	"Could not read from remote repository",
	"Permission denied (publickey",
	"Authentication failed",
	"The requested URL returned error: 403",
	"Repository not found",
}

// classifyRemoteErr wraps err as ErrRemoteUnreachable when the git output
// indicates a network or auth failure, otherwise wraps it plainly.
func classifyRemoteErr(err error, output, operation string) error {
	for _, marker := range networkFailureMarkers {
		if strings.Contains(output, marker) {
			return eris.Wrapf(ErrRemoteUnreachable, "%s: %s", operation, strings.TrimSpace(output))
		}
	}
	return eris.Wrapf(err, "%s: %s", operation, strings.TrimSpace(output))
}

// run executes git with the given working directory and returns combined output
func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.CombinedOutput()
	return string(output), err
}
