// Package execx runs external commands with captured output, the process
// boundary behind the apply runner.
package execx

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/rotisserie/eris"
)

// Result is the complete outcome of one subprocess invocation
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Run executes a command in dir with extraEnv appended to the inherited
// environment. Stdout and stderr are buffered separately and returned in
// full. A non-zero exit is reported through Result.ExitCode, not as an
// error; an error means the process could not be run at all.
func Run(ctx context.Context, name string, args []string, dir string, extraEnv []string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), extraEnv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if eris.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, eris.Wrapf(err, "failed to run command: %s", name)
	}

	return result, nil
}
