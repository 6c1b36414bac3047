// Package apply fans a single command or script invocation out across
// every repository clone in a workspace, attributing output per repository
// and aggregating exit results.
package apply

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/grove-sh/grove/internal/execx"
	"github.com/grove-sh/grove/internal/models"
	"github.com/grove-sh/grove/internal/workspace"
)

// ErrNotExecutable marks a script target without the executable bit. It is
// a per-repository failure and never affects other repositories.
var ErrNotExecutable = eris.New("script is not executable")

// ErrNoCommand is returned when apply is invoked with nothing to run
var ErrNoCommand = eris.New("no command provided for apply")

// RepoNameEnv exposes the clone's owner/repo name to the invoked command
const RepoNameEnv = "GROVE_REPO"

// Runner executes one command per repository clone with bounded
// concurrency. Each repository's output is buffered in full and flushed to
// Out as a single labeled block once that repository finishes, so blocks
// from concurrent repositories never interleave.
type Runner struct {
	store   *workspace.Store
	workers int

	// Out receives the labeled output blocks as repositories complete.
	// Nil disables streaming; output stays available on the results.
	Out io.Writer

	mu sync.Mutex // guards Out
}

// New creates a runner. workers bounds the concurrency of execution.
func New(store *workspace.Store, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{store: store, workers: workers}
}

// Apply runs argv once per repository clone, with the clone directory as
// the working directory. Results preserve canonical clone order; a
// non-zero exit or spawn failure in one repository never cancels the
// others.
func (r *Runner) Apply(ctx context.Context, ws *models.Workspace, argv []string) (*models.ApplySummary, error) {
	if len(argv) == 0 {
		return nil, ErrNoCommand
	}
	return r.run(ctx, ws, argv, false)
}

// ApplyScript runs an executable script once per repository clone. The
// script path is resolved to an absolute path first so it works from every
// clone's working directory.
func (r *Runner) ApplyScript(ctx context.Context, ws *models.Workspace, scriptPath string, args []string) (*models.ApplySummary, error) {
	absPath, err := filepath.Abs(scriptPath)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid script path: %s", scriptPath)
	}
	return r.run(ctx, ws, append([]string{absPath}, args...), true)
}

func (r *Runner) run(ctx context.Context, ws *models.Workspace, argv []string, script bool) (*models.ApplySummary, error) {
	clones, err := r.store.Clones(ws)
	if err != nil {
		return nil, eris.Wrap(err, "failed to enumerate repository clones")
	}

	results := make([]models.ApplyResult, len(clones))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, clone := range clones {
		g.Go(func() error {
			results[i] = r.runOne(gctx, clone, argv, script)
			r.flush(results[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "apply pool failed")
	}

	summary := &models.ApplySummary{Results: results}
	for _, result := range results {
		if result.Failed() {
			summary.AnyFailed = true
			break
		}
	}

	return summary, nil
}

// runOne executes argv in one clone, buffering its complete output
func (r *Runner) runOne(ctx context.Context, clone models.RepositoryClone, argv []string, script bool) models.ApplyResult {
	result := models.ApplyResult{RepoName: clone.Name}

	if script {
		if err := checkExecutable(argv[0]); err != nil {
			result.Err = err
			return result
		}
	}

	env := []string{RepoNameEnv + "=" + clone.Name}
	res, err := execx.Run(ctx, argv[0], argv[1:], clone.LocalPath, env)
	if err != nil {
		result.Err = err
		return result
	}

	result.ExitCode = res.ExitCode
	result.Stdout = res.Stdout
	result.Stderr = res.Stderr
	return result
}

// flush writes one repository's labeled output block atomically
func (r *Runner) flush(result models.ApplyResult) {
	if r.Out == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.Out, "==> %s <==\n", result.RepoName)
	if result.Stdout != "" {
		io.WriteString(r.Out, result.Stdout) //nolint:errcheck
		if result.Stdout[len(result.Stdout)-1] != '\n' {
			io.WriteString(r.Out, "\n") //nolint:errcheck
		}
	}
	if result.Stderr != "" {
		io.WriteString(r.Out, result.Stderr) //nolint:errcheck
		if result.Stderr[len(result.Stderr)-1] != '\n' {
			io.WriteString(r.Out, "\n") //nolint:errcheck
		}
	}
	switch {
	case result.Err != nil:
		fmt.Fprintf(r.Out, "error: %v\n", result.Err)
	case result.ExitCode != 0:
		fmt.Fprintf(r.Out, "exit status %d\n", result.ExitCode)
	}
	fmt.Fprintln(r.Out)
}

// checkExecutable verifies the target exists and carries an executable bit
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return eris.Wrapf(err, "invalid script path: %s", path)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return eris.Wrapf(ErrNotExecutable, "%s", path)
	}
	return nil
}

