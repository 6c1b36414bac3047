// Package status concurrently inspects every repository clone in a
// workspace and merges the results into one deterministic report.
package status

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/grove-sh/grove/internal/git"
	"github.com/grove-sh/grove/internal/models"
	"github.com/grove-sh/grove/internal/workspace"
)

// Collector computes workspace-wide status reports
type Collector struct {
	store   *workspace.Store
	workers int
}

// New creates a collector. workers bounds the concurrency of status
// inspection.
func New(store *workspace.Store, workers int) *Collector {
	if workers < 1 {
		workers = 1
	}
	return &Collector{store: store, workers: workers}
}

// Collect computes the status of every clone in the workspace. Clones are
// inspected concurrently; each result is tagged with its canonical index
// at dispatch, so the final report is in clone order regardless of
// completion order. A clone that cannot be inspected yields an entry with
// Err set and never aborts the rest.
func (c *Collector) Collect(ctx context.Context, ws *models.Workspace) (*models.WorkspaceStatus, error) {
	clones, err := c.store.Clones(ws)
	if err != nil {
		return nil, eris.Wrap(err, "failed to enumerate repository clones")
	}

	entries := make([]models.StatusReport, len(clones))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, clone := range clones {
		g.Go(func() error {
			entries[i] = inspect(gctx, clone)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "status pool failed")
	}

	result := &models.WorkspaceStatus{
		Total:   len(entries),
		Entries: entries,
	}
	for _, entry := range entries {
		if entry.Err == nil && !entry.HasChanges() {
			result.Clean++
		}
	}

	return result, nil
}

// inspect produces the report for one clone; failures become an error
// marker on the entry.
func inspect(ctx context.Context, clone models.RepositoryClone) models.StatusReport {
	report := models.StatusReport{RepoName: clone.Name}

	wts, err := git.Status(ctx, clone.LocalPath)
	if err != nil {
		report.Err = err
		return report
	}

	report.Branch = wts.Branch
	report.Staged = wts.Staged
	report.Modified = wts.Modified
	report.Untracked = wts.Untracked
	return report
}
