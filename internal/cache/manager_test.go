package cache

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/grove-sh/grove/internal/db"
	"github.com/grove-sh/grove/internal/models"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
}

func runGitOrFatal(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

// makeUpstream creates a local repository with one commit to stand in for
// a remote.
func makeUpstream(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	runGitOrFatal(t, dir, "init", "-b", "main")
	runGitOrFatal(t, dir, "config", "user.email", "test@example.com")
	runGitOrFatal(t, dir, "config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	runGitOrFatal(t, dir, "add", ".")
	runGitOrFatal(t, dir, "commit", "-m", "initial commit")

	return dir
}

func commitFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("content\n"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	runGitOrFatal(t, dir, "add", ".")
	runGitOrFatal(t, dir, "commit", "-m", "add "+name)
}

func revParse(t *testing.T, dir, rev string) string {
	t.Helper()
	cmd := exec.Command("git", "rev-parse", rev)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("git rev-parse failed in %s: %v", dir, err)
	}
	return string(out)
}

func newTestManager(t *testing.T) (*Manager, *sql.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.InitDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.RunMigrations(database); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return NewManager(t.TempDir(), database), database
}

var testRepoKey = models.RepoKey{Host: "github.com", Owner: "acme", Repo: "api"}

// snapshotMirror records the modification time of every file in the
// mirror. An untouched mirror yields an identical snapshot.
func snapshotMirror(t *testing.T, dir string) map[string]time.Time {
	t.Helper()

	snapshot := make(map[string]time.Time)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		snapshot[path] = info.ModTime()
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to snapshot mirror: %v", err)
	}
	return snapshot
}

// assertNoFetch fails if the mirror shows traces of a fetch. A mirror
// clone never writes FETCH_HEAD; only a later fetch does.
func assertNoFetch(t *testing.T, mirrorPath string) {
	t.Helper()
	if _, err := os.Stat(filepath.Join(mirrorPath, "FETCH_HEAD")); !os.IsNotExist(err) {
		t.Error("FETCH_HEAD exists, so a fetch ran against the mirror")
	}
}

func TestEnsureFreshCreatesMirror(t *testing.T) {
	requireGit(t)

	upstream := makeUpstream(t)
	manager, _ := newTestManager(t)
	ctx := context.Background()

	entry, err := manager.EnsureFresh(ctx, testRepoKey, upstream)
	if err != nil {
		t.Fatalf("EnsureFresh() failed: %v", err)
	}

	mirrorPath := manager.MirrorPath(testRepoKey)
	if entry.MirrorPath != mirrorPath {
		t.Errorf("MirrorPath = %q, want %q", entry.MirrorPath, mirrorPath)
	}
	if info, err := os.Stat(mirrorPath); err != nil || !info.IsDir() {
		t.Fatalf("mirror was not created at %s: %v", mirrorPath, err)
	}
	if got, want := revParse(t, mirrorPath, "main"), revParse(t, upstream, "main"); got != want {
		t.Errorf("mirror main = %s, upstream main = %s", got, want)
	}
}

func TestEnsureFreshIsIdempotent(t *testing.T) {
	requireGit(t)

	upstream := makeUpstream(t)
	manager, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.EnsureFresh(ctx, testRepoKey, upstream); err != nil {
		t.Fatalf("EnsureFresh() failed: %v", err)
	}

	mirrorPath := manager.MirrorPath(testRepoKey)
	before := snapshotMirror(t, mirrorPath)

	if _, err := manager.EnsureFresh(ctx, testRepoKey, upstream); err != nil {
		t.Fatalf("second EnsureFresh() failed: %v", err)
	}

	// The second call must take the lock-free fast path: zero fetches,
	// not a single file in the mirror touched.
	assertNoFetch(t, mirrorPath)
	after := snapshotMirror(t, mirrorPath)
	if len(after) != len(before) {
		t.Fatalf("mirror file count changed: %d -> %d", len(before), len(after))
	}
	for path, mtime := range before {
		got, ok := after[path]
		if !ok {
			t.Errorf("mirror file disappeared: %s", path)
			continue
		}
		if !got.Equal(mtime) {
			t.Errorf("mirror file was rewritten by a fresh no-op: %s", path)
		}
	}

	if got, want := revParse(t, mirrorPath, "main"), revParse(t, upstream, "main"); got != want {
		t.Errorf("mirror main = %s, upstream main = %s", got, want)
	}
}

func TestEnsureFreshPicksUpUpstreamChanges(t *testing.T) {
	requireGit(t)

	upstream := makeUpstream(t)
	manager, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.EnsureFresh(ctx, testRepoKey, upstream); err != nil {
		t.Fatalf("EnsureFresh() failed: %v", err)
	}

	commitFile(t, upstream, "feature.go")

	if _, err := manager.EnsureFresh(ctx, testRepoKey, upstream); err != nil {
		t.Fatalf("EnsureFresh() after upstream change failed: %v", err)
	}

	if got, want := revParse(t, manager.MirrorPath(testRepoKey), "main"), revParse(t, upstream, "main"); got != want {
		t.Errorf("mirror main = %s, upstream main = %s (fetch did not happen)", got, want)
	}
}

func TestEnsureFreshRebuildsCorruptMirror(t *testing.T) {
	requireGit(t)

	upstream := makeUpstream(t)
	manager, database := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.EnsureFresh(ctx, testRepoKey, upstream); err != nil {
		t.Fatalf("EnsureFresh() failed: %v", err)
	}

	// Gut the mirror and forget the bookkeeping so the next call has to
	// look at the directory again.
	mirrorPath := manager.MirrorPath(testRepoKey)
	if err := os.RemoveAll(mirrorPath); err != nil {
		t.Fatalf("Failed to remove mirror contents: %v", err)
	}
	if err := os.MkdirAll(mirrorPath, 0o755); err != nil {
		t.Fatalf("Failed to recreate empty mirror dir: %v", err)
	}
	if err := db.DeleteCacheEntry(database, testRepoKey); err != nil {
		t.Fatalf("DeleteCacheEntry() failed: %v", err)
	}

	if _, err := manager.EnsureFresh(ctx, testRepoKey, upstream); err != nil {
		t.Fatalf("EnsureFresh() on corrupt mirror failed: %v", err)
	}

	if got, want := revParse(t, mirrorPath, "main"), revParse(t, upstream, "main"); got != want {
		t.Errorf("rebuilt mirror main = %s, upstream main = %s", got, want)
	}
}

func TestEnsureFreshUnreachableRemote(t *testing.T) {
	requireGit(t)

	manager, _ := newTestManager(t)

	missing := filepath.Join(t.TempDir(), "no-such-repo")
	if _, err := manager.EnsureFresh(context.Background(), testRepoKey, missing); err == nil {
		t.Fatal("EnsureFresh() should fail for an unreachable remote")
	}

	if dirExists(manager.MirrorPath(testRepoKey)) {
		t.Error("no mirror should exist after a failed freshness check")
	}
}

func TestEnsureFreshConcurrentSameKey(t *testing.T) {
	requireGit(t)

	upstream := makeUpstream(t)
	manager, database := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = manager.EnsureFresh(ctx, testRepoKey, upstream)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("concurrent EnsureFresh() #%d failed: %v", i, err)
		}
	}

	// Exactly one caller clones; the rest re-check under the lock and do
	// nothing. A second clone would fail the rename onto the existing
	// mirror, and any fetch would leave FETCH_HEAD behind.
	mirrorPath := manager.MirrorPath(testRepoKey)
	assertNoFetch(t, mirrorPath)
	if _, err := os.Stat(mirrorPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("a temporary mirror was left behind by a racing clone")
	}

	entries, err := db.GetAllCacheEntries(database)
	if err != nil {
		t.Fatalf("GetAllCacheEntries() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("cache has %d entries, want exactly 1", len(entries))
	}

	if got, want := revParse(t, mirrorPath, "main"), revParse(t, upstream, "main"); got != want {
		t.Errorf("mirror main = %s, upstream main = %s", got, want)
	}
}
