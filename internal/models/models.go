package models

import (
	"path/filepath"
	"time"
)

// Workspace represents an isolated directory tree holding a set of
// repository clones for one unit of cross-repository work.
type Workspace struct {
	ID          string    `json:"id" yaml:"id"`                   // UUIDv7, lexically sortable by creation time
	Description string    `json:"description" yaml:"description"` // Free-form text supplied at creation
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	Directory   string    `json:"directory" yaml:"-"` // Absolute path to the workspace directory
}

// RepoKey identifies a remote repository across all workspaces.
type RepoKey struct {
	Host  string `json:"host"`  // e.g., "github.com"
	Owner string `json:"owner"` // e.g., "golang"
	Repo  string `json:"repo"`  // e.g., "go"
}

// FullName returns the owner/repo form used in workspace paths and labels.
func (k RepoKey) FullName() string {
	return k.Owner + "/" + k.Repo
}

// String returns the host/owner/repo form used for cache paths and lock keys.
func (k RepoKey) String() string {
	return filepath.Join(k.Host, k.Owner, k.Repo)
}

// CacheEntry is a shared bare mirror of a remote repository. Exactly one
// entry exists per RepoKey; it is mutated only by the cache manager under
// a per-entry exclusive lock.
type CacheEntry struct {
	Key            RepoKey    `json:"key"`
	MirrorPath     string     `json:"mirror_path"`
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"` // Last successful freshness check
}

// RepositoryClone is a workspace-owned working copy cloned locally from a
// cache mirror. Edits inside it never propagate back to the cache.
type RepositoryClone struct {
	Name        string `json:"name"` // owner/repo
	WorkspaceID string `json:"workspace_id"`
	LocalPath   string `json:"local_path"`
}

// StatusReport holds the working-tree state of one clone. Err is set when
// the clone could not be inspected; the counts are then meaningless.
type StatusReport struct {
	RepoName  string `json:"repo_name"`
	Branch    string `json:"branch"`
	Staged    int    `json:"staged"`
	Modified  int    `json:"modified"`
	Untracked int    `json:"untracked"`
	Err       error  `json:"-"`
}

// HasChanges reports whether the clone carries any uncommitted work.
func (r StatusReport) HasChanges() bool {
	return r.Staged > 0 || r.Modified > 0 || r.Untracked > 0
}

// WorkspaceStatus aggregates per-clone reports in canonical order.
type WorkspaceStatus struct {
	Total   int            `json:"total"`
	Clean   int            `json:"clean"`
	Entries []StatusReport `json:"entries"`
}

// ApplyResult is the outcome of running a command in one clone. Stdout and
// Stderr hold the complete buffered output; output is never interleaved
// across repositories.
type ApplyResult struct {
	RepoName string `json:"repo_name"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Err      error  `json:"-"`
}

// Failed reports whether the invocation failed to run or exited non-zero.
func (r ApplyResult) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// ApplySummary aggregates apply results in canonical order.
type ApplySummary struct {
	Results   []ApplyResult `json:"results"`
	AnyFailed bool          `json:"any_failed"`
}

// ProvisionResult is the outcome of provisioning one repository within a
// batch import. Failures are isolated per repository.
type ProvisionResult struct {
	Name    string           `json:"name"`
	Clone   *RepositoryClone `json:"clone,omitempty"`
	Skipped bool             `json:"skipped"` // Working clone already existed
	Err     error            `json:"-"`
}
