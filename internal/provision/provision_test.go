package provision

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rotisserie/eris"

	"github.com/grove-sh/grove/internal/cache"
	"github.com/grove-sh/grove/internal/db"
	"github.com/grove-sh/grove/internal/git"
	"github.com/grove-sh/grove/internal/models"
	"github.com/grove-sh/grove/internal/status"
	"github.com/grove-sh/grove/internal/workspace"
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

// testEnv wires a store, cache manager, and provisioner against local
// upstream repositories instead of github.com.
type testEnv struct {
	store       *workspace.Store
	manager     *cache.Manager
	provisioner *Provisioner
	upstreams   map[string]string // owner/repo -> local path
}

func newTestEnv(t *testing.T, workers int, repos ...string) *testEnv {
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

	env := &testEnv{
		store:     workspace.NewStore(t.TempDir()),
		upstreams: make(map[string]string, len(repos)),
	}
	for _, name := range repos {
		env.upstreams[name] = makeUpstream(t)
	}

	env.manager = cache.NewManager(t.TempDir(), database)
	env.provisioner = New(env.manager, env.store, workers)
	env.provisioner.RemoteURL = func(_ context.Context, name string) string {
		return env.upstreams[name]
	}

	return env
}

func (e *testEnv) createWorkspace(t *testing.T) *models.Workspace {
	t.Helper()
	ws, err := e.store.Create("test")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return ws
}

func remoteURL(t *testing.T, dir string) string {
	t.Helper()
	url, err := git.GetRemoteURL(context.Background(), dir)
	if err != nil {
		t.Fatalf("GetRemoteURL() failed in %s: %v", dir, err)
	}
	return url
}

func TestProvisionCreatesClone(t *testing.T) {
	requireGit(t)

	env := newTestEnv(t, 2, "acme/api")
	ws := env.createWorkspace(t)

	result, err := env.provisioner.Provision(context.Background(), ws, "acme/api")
	if err != nil {
		t.Fatalf("Provision() failed: %v", err)
	}
	if result.Skipped {
		t.Error("first Provision() should not be skipped")
	}

	clonePath := workspace.ClonePath(ws, "acme/api")
	if result.Clone.LocalPath != clonePath {
		t.Errorf("LocalPath = %q, want %q", result.Clone.LocalPath, clonePath)
	}
	if _, err := os.Stat(filepath.Join(clonePath, ".git")); err != nil {
		t.Fatalf("clone was not created: %v", err)
	}

	// Origin must point back at the real remote, not the mirror
	if got := remoteURL(t, clonePath); got != env.upstreams["acme/api"] {
		t.Errorf("origin = %q, want %q", got, env.upstreams["acme/api"])
	}

	clones, err := env.store.Clones(ws)
	if err != nil {
		t.Fatalf("Clones() failed: %v", err)
	}
	if len(clones) != 1 || clones[0].Name != "acme/api" {
		t.Errorf("Clones() = %v, want [acme/api]", clones)
	}
}

func TestProvisionIsIdempotent(t *testing.T) {
	requireGit(t)

	env := newTestEnv(t, 2, "acme/api")
	ws := env.createWorkspace(t)
	ctx := context.Background()

	if _, err := env.provisioner.Provision(ctx, ws, "acme/api"); err != nil {
		t.Fatalf("Provision() failed: %v", err)
	}

	result, err := env.provisioner.Provision(ctx, ws, "acme/api")
	if err != nil {
		t.Fatalf("second Provision() failed: %v", err)
	}
	if !result.Skipped {
		t.Error("second Provision() should be skipped")
	}
}

func TestProvisionInvalidName(t *testing.T) {
	env := newTestEnv(t, 2)
	ws := env.createWorkspace(t)

	if _, err := env.provisioner.Provision(context.Background(), ws, "no-slash"); err == nil {
		t.Error("Provision() should reject a name without owner/repo form")
	}
}

func TestProvisionAllOrderAndIsolation(t *testing.T) {
	requireGit(t)

	env := newTestEnv(t, 4, "acme/api", "acme/web")
	ws := env.createWorkspace(t)

	// The middle repository has no upstream, so its clone fails while the
	// others succeed.
	names := []string{"acme/api", "acme/broken", "acme/web"}
	results, err := env.provisioner.ProvisionAll(context.Background(), ws, names)
	if !eris.Is(err, ErrPartialFailure) {
		t.Fatalf("ProvisionAll() error = %v, want ErrPartialFailure", err)
	}
	if len(results) != len(names) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(names))
	}

	for i, name := range names {
		if results[i].Name != name {
			t.Errorf("results[%d].Name = %s, want %s", i, results[i].Name, name)
		}
	}
	if results[0].Err != nil {
		t.Errorf("acme/api should succeed, got: %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Error("acme/broken should fail")
	}
	if results[2].Err != nil {
		t.Errorf("acme/web should succeed, got: %v", results[2].Err)
	}

	// Only the successes are recorded, in batch order.
	clones, err := env.store.Clones(ws)
	if err != nil {
		t.Fatalf("Clones() failed: %v", err)
	}
	wantOrder := []string{"acme/api", "acme/web"}
	if len(clones) != len(wantOrder) {
		t.Fatalf("Clones() returned %d entries, want %d", len(clones), len(wantOrder))
	}
	for i, want := range wantOrder {
		if clones[i].Name != want {
			t.Errorf("Clones()[%d].Name = %s, want %s", i, clones[i].Name, want)
		}
	}
}

func TestProvisionAllSharedMirrorAcrossWorkspaces(t *testing.T) {
	requireGit(t)

	env := newTestEnv(t, 2, "acme/api")
	ctx := context.Background()

	first := env.createWorkspace(t)
	second := env.createWorkspace(t)

	if _, err := env.provisioner.Provision(ctx, first, "acme/api"); err != nil {
		t.Fatalf("Provision() into first workspace failed: %v", err)
	}
	if _, err := env.provisioner.Provision(ctx, second, "acme/api"); err != nil {
		t.Fatalf("Provision() into second workspace failed: %v", err)
	}

	// Editing one clone must not leak into the other.
	marker := filepath.Join(workspace.ClonePath(first, "acme/api"), "local-only.txt")
	if err := os.WriteFile(marker, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write marker file: %v", err)
	}
	other := filepath.Join(workspace.ClonePath(second, "acme/api"), "local-only.txt")
	if _, err := os.Stat(other); !os.IsNotExist(err) {
		t.Error("edit in one workspace leaked into another")
	}
}

func TestCloneFromMirrorCleansUpOnSetURLFailure(t *testing.T) {
	requireGit(t)

	upstream := makeUpstream(t)
	mirror := filepath.Join(t.TempDir(), "api.git")
	runGitOrFatal(t, ".", "clone", "--mirror", upstream, mirror)

	clonePath := filepath.Join(t.TempDir(), "acme", "api")
	entry := &models.CacheEntry{MirrorPath: mirror}

	// A leading dash makes set-url reject the URL after the clone landed
	p := New(nil, nil, 1)
	if err := p.cloneFromMirror(context.Background(), entry, clonePath, "--not-a-url"); err == nil {
		t.Fatal("cloneFromMirror() should fail when origin cannot be repointed")
	}

	if _, err := os.Stat(clonePath); !os.IsNotExist(err) {
		t.Error("a clone whose origin still points at the cache must not be left behind")
	}
}

func TestRefreshPicksUpUpstreamChanges(t *testing.T) {
	requireGit(t)

	env := newTestEnv(t, 2, "acme/api")
	ws := env.createWorkspace(t)
	ctx := context.Background()

	if _, err := env.provisioner.Provision(ctx, ws, "acme/api"); err != nil {
		t.Fatalf("Provision() failed: %v", err)
	}

	upstream := env.upstreams["acme/api"]
	commitFile(t, upstream, "feature.go")

	results, err := env.provisioner.Refresh(ctx, ws)
	if err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("Refresh() results = %+v, want one success", results)
	}

	// The key Refresh derives from the clone's origin must now hold the
	// new upstream head.
	host, owner, repo, err := git.ParseRemoteURL(upstream)
	if err != nil {
		t.Fatalf("ParseRemoteURL() failed: %v", err)
	}
	mirror := env.manager.MirrorPath(models.RepoKey{Host: host, Owner: owner, Repo: repo})
	if got, want := revParse(t, mirror, "main"), revParse(t, upstream, "main"); got != want {
		t.Errorf("mirror main = %s, upstream main = %s (refresh did not fetch)", got, want)
	}
}

func TestRefreshIsolatesBrokenClone(t *testing.T) {
	requireGit(t)

	env := newTestEnv(t, 2, "acme/api")
	ws := env.createWorkspace(t)
	ctx := context.Background()

	if _, err := env.provisioner.Provision(ctx, ws, "acme/api"); err != nil {
		t.Fatalf("Provision() failed: %v", err)
	}

	// A directory with a bare .git marker has no origin to read from.
	broken := workspace.ClonePath(ws, "acme/broken")
	if err := os.MkdirAll(filepath.Join(broken, ".git"), 0o755); err != nil {
		t.Fatalf("Failed to create broken clone: %v", err)
	}
	if err := env.store.RecordClone(ws, "acme/broken"); err != nil {
		t.Fatalf("RecordClone() failed: %v", err)
	}

	results, err := env.provisioner.Refresh(ctx, ws)
	if !eris.Is(err, ErrPartialFailure) {
		t.Fatalf("Refresh() error = %v, want ErrPartialFailure", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("acme/api should refresh cleanly, got: %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Error("acme/broken should carry a refresh error")
	}
}

func TestProvisionConcurrentAcrossWorkspaces(t *testing.T) {
	requireGit(t)

	env := newTestEnv(t, 4, "acme/api")
	ctx := context.Background()

	first := env.createWorkspace(t)
	second := env.createWorkspace(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, ws := range []*models.Workspace{first, second} {
		wg.Add(1)
		go func(i int, ws *models.Workspace) {
			defer wg.Done()
			_, errs[i] = env.provisioner.Provision(ctx, ws, "acme/api")
		}(i, ws)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("concurrent Provision() #%d failed: %v", i, err)
		}
	}
	for _, ws := range []*models.Workspace{first, second} {
		if _, err := os.Stat(filepath.Join(workspace.ClonePath(ws, "acme/api"), ".git")); err != nil {
			t.Errorf("clone missing in workspace %s: %v", ws.ID, err)
		}
	}
}

func TestProvisionThenStatus(t *testing.T) {
	requireGit(t)

	env := newTestEnv(t, 4, "org/x", "org/y")
	ws := env.createWorkspace(t)
	ctx := context.Background()

	if _, err := env.provisioner.ProvisionAll(ctx, ws, []string{"org/x", "org/y"}); err != nil {
		t.Fatalf("ProvisionAll() failed: %v", err)
	}

	// Dirty org/x with an untracked file; org/y stays clean.
	untracked := filepath.Join(workspace.ClonePath(ws, "org/x"), "scratch.txt")
	if err := os.WriteFile(untracked, []byte("wip\n"), 0o644); err != nil {
		t.Fatalf("Failed to write untracked file: %v", err)
	}

	report, err := status.New(env.store, 4).Collect(ctx, ws)
	if err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}

	if report.Total != 2 {
		t.Errorf("Total = %d, want 2", report.Total)
	}
	if report.Clean != 1 {
		t.Errorf("Clean = %d, want 1", report.Clean)
	}
	if len(report.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(report.Entries))
	}
	if report.Entries[0].RepoName != "org/x" || report.Entries[1].RepoName != "org/y" {
		t.Errorf("entry order = [%s, %s], want [org/x, org/y]",
			report.Entries[0].RepoName, report.Entries[1].RepoName)
	}
	if report.Entries[0].Untracked != 1 {
		t.Errorf("org/x untracked = %d, want 1", report.Entries[0].Untracked)
	}
	if report.Entries[1].HasChanges() {
		t.Error("org/y should be clean")
	}
}
