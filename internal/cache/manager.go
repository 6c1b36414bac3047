package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/grove-sh/grove/internal/db"
	"github.com/grove-sh/grove/internal/git"
	"github.com/grove-sh/grove/internal/models"
)

// ErrMirrorCorrupt marks an on-disk mirror that failed integrity
// validation. The manager recovers by rebuilding the mirror; the sentinel
// only escapes when the rebuild itself fails.
var ErrMirrorCorrupt = eris.New("mirror corrupt")

// Manager maintains one bare mirror per remote repository, shared across
// all workspaces. Mutation of a mirror only happens under that mirror's
// exclusive advisory lock; a known-fresh mirror is read without locking.
type Manager struct {
	cacheRoot string
	database  *sql.DB
}

// NewManager creates a cache manager rooted at cacheRoot, using database
// for freshness bookkeeping.
func NewManager(cacheRoot string, database *sql.DB) *Manager {
	return &Manager{cacheRoot: cacheRoot, database: database}
}

// MirrorPath returns the on-disk location of the mirror for a repository
func (m *Manager) MirrorPath(key models.RepoKey) string {
	return filepath.Join(m.cacheRoot, key.Host, key.Owner, key.Repo+".git")
}

func (m *Manager) lockPath(key models.RepoKey) string {
	name := strings.Join([]string{key.Host, key.Owner, key.Repo}, "_") + ".lock"
	return filepath.Join(m.cacheRoot, ".locks", name)
}

// EnsureFresh guarantees an up-to-date mirror exists for the repository and
// returns its cache entry. A missing mirror is cloned, a stale mirror is
// fetched, a fresh mirror is a no-op, and a corrupt mirror is rebuilt from
// scratch. Concurrent callers for the same key serialize on the mirror lock.
func (m *Manager) EnsureFresh(ctx context.Context, key models.RepoKey, remoteURL string) (*models.CacheEntry, error) {
	refs, err := git.ListRemoteRefs(ctx, remoteURL)
	if err != nil {
		return nil, eris.Wrapf(err, "freshness check failed for %s", key)
	}
	digest := digestRefs(refs)

	// Fast path: mirror on disk, digest unchanged since the last check.
	// This read requires no lock.
	mirrorPath := m.MirrorPath(key)
	if entry, stored, err := db.GetCacheEntry(m.database, key); err == nil && stored == digest {
		if dirExists(mirrorPath) {
			if err := db.TouchCacheEntry(m.database, key); err != nil {
				return nil, err
			}
			return entry, nil
		}
	}

	lock, err := acquireLock(m.lockPath(key))
	if err != nil {
		return nil, err
	}
	defer lock.release() //nolint:errcheck

	// Re-check under the lock: a concurrent caller may have done the work
	// while we waited.
	if entry, stored, err := db.GetCacheEntry(m.database, key); err == nil && stored == digest && dirExists(mirrorPath) {
		if err := db.TouchCacheEntry(m.database, key); err != nil {
			return nil, err
		}
		return entry, nil
	}

	if !dirExists(mirrorPath) {
		if err := m.createMirror(ctx, key, remoteURL, mirrorPath); err != nil {
			return nil, err
		}
	} else {
		if err := git.VerifyMirror(ctx, mirrorPath); err != nil {
			// Corrupt mirror: rebuild rather than propagate. No working
			// clone is harmed, clones are independent copies.
			if err := m.rebuildMirror(ctx, key, remoteURL, mirrorPath); err != nil {
				return nil, err
			}
		} else if err := git.UpdateMirror(ctx, mirrorPath); err != nil {
			return nil, eris.Wrapf(err, "fetch failed for %s", key)
		}
	}

	if err := db.UpsertCacheEntry(m.database, key, mirrorPath, digest); err != nil {
		return nil, err
	}

	entry, _, err := db.GetCacheEntry(m.database, key)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// createMirror clones a fresh bare mirror into place. The clone lands in a
// temporary sibling first so an interrupted clone never leaves a
// half-written mirror at the final path.
func (m *Manager) createMirror(ctx context.Context, key models.RepoKey, remoteURL, mirrorPath string) error {
	if err := os.MkdirAll(filepath.Dir(mirrorPath), 0o755); err != nil {
		return eris.Wrapf(err, "failed to create cache directory for %s", key)
	}

	tmpPath := mirrorPath + ".tmp"
	if err := os.RemoveAll(tmpPath); err != nil {
		return eris.Wrapf(err, "failed to clear stale temporary mirror for %s", key)
	}

	if err := git.CloneMirror(ctx, remoteURL, tmpPath); err != nil {
		_ = os.RemoveAll(tmpPath)
		return eris.Wrapf(err, "mirror clone failed for %s", key)
	}

	if err := os.Rename(tmpPath, mirrorPath); err != nil {
		_ = os.RemoveAll(tmpPath)
		return eris.Wrapf(err, "failed to move mirror into place for %s", key)
	}

	return nil
}

// rebuildMirror deletes a corrupt mirror and clones it again
func (m *Manager) rebuildMirror(ctx context.Context, key models.RepoKey, remoteURL, mirrorPath string) error {
	if err := os.RemoveAll(mirrorPath); err != nil {
		return eris.Wrapf(ErrMirrorCorrupt, "failed to remove corrupt mirror for %s: %v", key, err)
	}
	if err := db.DeleteCacheEntry(m.database, key); err != nil {
		return err
	}
	if err := m.createMirror(ctx, key, remoteURL, mirrorPath); err != nil {
		return eris.Wrapf(ErrMirrorCorrupt, "rebuild failed for %s: %v", key, err)
	}
	return nil
}

// digestRefs hashes an ls-remote listing into a comparable fingerprint
func digestRefs(refs string) string {
	sum := sha256.Sum256([]byte(refs))
	return hex.EncodeToString(sum[:])
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
