// Package shell launches the interactive session used by enter and create.
// The session itself is external; grove only sets up the environment.
package shell

import (
	"os"
	"os/exec"

	"github.com/rotisserie/eris"

	"github.com/grove-sh/grove/internal/models"
	"github.com/grove-sh/grove/internal/workspace"
)

// Enter spawns the user's shell inside the workspace directory with the
// workspace id exported, and blocks until the shell exits.
func Enter(ws *models.Workspace) error {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell)
	cmd.Dir = ws.Directory
	cmd.Env = append(os.Environ(), workspace.WorkspaceIDEnv+"="+ws.ID)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return nil // shell exited non-zero, not our failure
		}
		return eris.Wrapf(err, "failed to spawn shell: %s", shell)
	}

	return nil
}
