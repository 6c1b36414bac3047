// Package provision guarantees fast local working clones: it refreshes the
// shared mirror cache, then clones locally into the workspace, never from
// the network.
package provision

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/grove-sh/grove/internal/cache"
	"github.com/grove-sh/grove/internal/gh"
	"github.com/grove-sh/grove/internal/git"
	"github.com/grove-sh/grove/internal/models"
	"github.com/grove-sh/grove/internal/workspace"
)

// ErrPartialFailure marks a batch where at least one repository failed
// while the rest succeeded. Per-repository errors live in the results.
var ErrPartialFailure = eris.New("one or more repositories failed")

// Provisioner creates working clones from the mirror cache
type Provisioner struct {
	cache   *cache.Manager
	store   *workspace.Store
	host    string
	workers int

	// RemoteURL overrides clone URL construction for a repository name.
	// The default asks gh for the configured protocol on github.com.
	RemoteURL func(ctx context.Context, name string) string
}

// New creates a provisioner. workers bounds the concurrency of batch
// provisioning.
func New(cacheManager *cache.Manager, store *workspace.Store, workers int) *Provisioner {
	if workers < 1 {
		workers = 1
	}
	return &Provisioner{
		cache:   cacheManager,
		store:   store,
		host:    "github.com",
		workers: workers,
	}
}

// Provision ensures a working clone of name exists in the workspace.
// Idempotent: an existing clone is a cheap existence check, not a
// re-clone. Returns Skipped=true in that case.
func (p *Provisioner) Provision(ctx context.Context, ws *models.Workspace, name string) (*models.ProvisionResult, error) {
	result, err := p.provisionOne(ctx, ws, name)
	if err != nil {
		return nil, err
	}

	if !result.Skipped {
		if err := p.store.RecordClone(ws, name); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// ProvisionAll provisions a batch of repositories with bounded
// concurrency. Each repository's outcome is independent; a failure is
// attached to its result instead of aborting the batch. Results preserve
// the order of names, and successful clones are recorded in that order.
// The returned error is ErrPartialFailure when any repository failed.
func (p *Provisioner) ProvisionAll(ctx context.Context, ws *models.Workspace, names []string) ([]models.ProvisionResult, error) {
	results := make([]models.ProvisionResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, name := range names {
		g.Go(func() error {
			result, err := p.provisionOne(gctx, ws, name)
			if err != nil {
				results[i] = models.ProvisionResult{Name: name, Err: err}
				return nil // isolate per-repository failures
			}
			results[i] = *result
			return nil
		})
	}

	// Workers never return errors; Wait just drains the pool
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "provisioning pool failed")
	}

	// Workers do not touch the workspace record; the coordinator writes it
	// once the batch is done, in canonical order.
	for _, result := range results {
		if result.Err == nil && !result.Skipped {
			if err := p.store.RecordClone(ws, result.Name); err != nil {
				return nil, err
			}
		}
	}

	for _, result := range results {
		if result.Err != nil {
			return results, ErrPartialFailure
		}
	}

	return results, nil
}

// Refresh re-validates the mirror behind every clone in the workspace,
// fetching only where the remote moved. The repository key and remote URL
// are derived from each clone's origin, so clones added by hand are
// covered too. Per-clone failures are isolated like in ProvisionAll.
func (p *Provisioner) Refresh(ctx context.Context, ws *models.Workspace) ([]models.ProvisionResult, error) {
	clones, err := p.store.Clones(ws)
	if err != nil {
		return nil, eris.Wrap(err, "failed to enumerate repository clones")
	}

	results := make([]models.ProvisionResult, len(clones))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, clone := range clones {
		g.Go(func() error {
			results[i] = p.refreshOne(gctx, clone)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "refresh pool failed")
	}

	for _, result := range results {
		if result.Err != nil {
			return results, ErrPartialFailure
		}
	}

	return results, nil
}

// refreshOne reads the clone's origin and freshens the mirror behind it
func (p *Provisioner) refreshOne(ctx context.Context, clone models.RepositoryClone) models.ProvisionResult {
	result := models.ProvisionResult{Name: clone.Name, Clone: &clone}

	remoteURL, err := git.GetRemoteURL(ctx, clone.LocalPath)
	if err != nil {
		result.Err = err
		return result
	}

	host, owner, repo, err := git.ParseRemoteURL(remoteURL)
	if err != nil {
		result.Err = err
		return result
	}

	key := models.RepoKey{Host: host, Owner: owner, Repo: repo}
	if _, err := p.cache.EnsureFresh(ctx, key, remoteURL); err != nil {
		result.Err = err
	}

	return result
}

// provisionOne does the cache refresh and local clone without touching the
// workspace record, so pool workers share no mutable state.
func (p *Provisioner) provisionOne(ctx context.Context, ws *models.Workspace, name string) (*models.ProvisionResult, error) {
	if err := gh.ValidateRepoName(name); err != nil {
		return nil, err
	}

	clonePath := workspace.ClonePath(ws, name)
	clone := &models.RepositoryClone{
		Name:        name,
		WorkspaceID: ws.ID,
		LocalPath:   clonePath,
	}

	if dirExists(clonePath) {
		return &models.ProvisionResult{Name: name, Clone: clone, Skipped: true}, nil
	}

	key := keyFor(p.host, name)
	remoteURL := ""
	if p.RemoteURL != nil {
		remoteURL = p.RemoteURL(ctx, name)
	} else {
		remoteURL = gh.ProtocolFor(ctx, p.host).CloneURL(p.host, name)
	}

	entry, err := p.cache.EnsureFresh(ctx, key, remoteURL)
	if err != nil {
		return nil, err
	}

	if err := p.cloneFromMirror(ctx, entry, clonePath, remoteURL); err != nil {
		return nil, err
	}

	return &models.ProvisionResult{Name: name, Clone: clone}, nil
}

// cloneFromMirror performs the local clone and points origin back at the
// real remote so later fetches inside the clone go to the network, not
// the cache.
func (p *Provisioner) cloneFromMirror(ctx context.Context, entry *models.CacheEntry, clonePath, remoteURL string) error {
	if err := os.MkdirAll(filepath.Dir(clonePath), 0o755); err != nil {
		return eris.Wrapf(err, "failed to create clone parent directory: %s", clonePath)
	}

	if err := git.CloneLocal(ctx, entry.MirrorPath, clonePath); err != nil {
		_ = os.RemoveAll(clonePath) // never leave a half-cloned working copy
		return err
	}

	// A clone whose origin still points at the cache is half-provisioned;
	// remove it so the next attempt starts clean instead of skipping.
	if err := git.SetRemoteURL(ctx, clonePath, remoteURL); err != nil {
		_ = os.RemoveAll(clonePath)
		return err
	}

	return nil
}

func keyFor(host, name string) models.RepoKey {
	parts := strings.SplitN(name, "/", 2)
	return models.RepoKey{Host: host, Owner: parts[0], Repo: parts[1]}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
