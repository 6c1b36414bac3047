package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/grove-sh/grove/internal/models"
)

// WorkspaceIDEnv carries the active workspace id into shells spawned by
// enter, so resolution works from any directory inside the session.
const WorkspaceIDEnv = "GROVE_WORKSPACE_ID"

const metadataDir = ".grove"
const metadataFile = "workspace.yaml"

var (
	// ErrNotInWorkspace is returned when no workspace id was given and the
	// current directory is not inside one.
	ErrNotInWorkspace = eris.New("not in a workspace")

	// ErrWorkspaceNotFound is returned when an explicit workspace id does
	// not resolve to an existing workspace directory.
	ErrWorkspaceNotFound = eris.New("workspace not found")

	// ErrAlreadyInWorkspace guards create/enter from nesting sessions.
	ErrAlreadyInWorkspace = eris.New("already in a workspace")
)

// Store creates, lists, and resolves workspaces under one data root.
// Each workspace exclusively owns its directory tree; the store never
// touches the shared mirror cache.
type Store struct {
	dataRoot string
}

// NewStore creates a workspace store rooted at dataRoot
func NewStore(dataRoot string) *Store {
	return &Store{dataRoot: dataRoot}
}

// DataRoot returns the directory containing all workspace directories
func (s *Store) DataRoot() string {
	return s.dataRoot
}

// metadata is the persisted per-workspace record
type metadata struct {
	ID          string    `yaml:"id"`
	Description string    `yaml:"description"`
	CreatedAt   time.Time `yaml:"created_at"`
	Repos       []string  `yaml:"repos,omitempty"` // owner/repo names in import order
}

// Create makes a new workspace directory with a fresh time-ordered id and
// writes its metadata record. Creation is fully local.
func (s *Store) Create(description string) (*models.Workspace, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, eris.Wrap(err, "failed to generate workspace id")
	}

	ws := &models.Workspace{
		ID:          id.String(),
		Description: description,
		CreatedAt:   time.Now(),
		Directory:   filepath.Join(s.dataRoot, id.String()),
	}

	if err := os.MkdirAll(filepath.Join(ws.Directory, metadataDir), 0o755); err != nil {
		return nil, eris.Wrapf(err, "failed to create workspace directory: %s", ws.Directory)
	}

	meta := metadata{ID: ws.ID, Description: ws.Description, CreatedAt: ws.CreatedAt}
	if err := s.writeMetadata(ws.Directory, &meta); err != nil {
		return nil, err
	}

	return ws, nil
}

// Get loads a workspace by id
func (s *Store) Get(id string) (*models.Workspace, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, eris.Wrapf(ErrWorkspaceNotFound, "invalid workspace id: %s", id)
	}

	dir := filepath.Join(s.dataRoot, id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, eris.Wrapf(ErrWorkspaceNotFound, "no workspace directory for id: %s", id)
	}

	meta, err := s.readMetadata(dir)
	if err != nil {
		// A directory with a valid id but unreadable metadata is still a
		// workspace; fall back to what the path tells us.
		meta = &metadata{ID: id, Description: "(missing description)"}
	}

	return &models.Workspace{
		ID:          id,
		Description: meta.Description,
		CreatedAt:   meta.CreatedAt,
		Directory:   dir,
	}, nil
}

// List returns all workspaces, newest first. Ordering is derived purely
// from the lexical ordering of ids.
func (s *Store) List() ([]*models.Workspace, error) {
	entries, err := os.ReadDir(s.dataRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "failed to read data directory: %s", s.dataRoot)
	}

	var workspaces []*models.Workspace
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}
		ws, err := s.Get(entry.Name())
		if err != nil {
			continue
		}
		workspaces = append(workspaces, ws)
	}

	sort.Slice(workspaces, func(i, j int) bool {
		return workspaces[i].ID > workspaces[j].ID
	})

	return workspaces, nil
}

// Resolve returns the workspace for an explicit id, or infers the active
// workspace from the environment and the current working directory.
func (s *Store) Resolve(explicitID string) (*models.Workspace, error) {
	if explicitID != "" {
		return s.Get(explicitID)
	}

	if id := os.Getenv(WorkspaceIDEnv); id != "" {
		return s.Get(id)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, eris.Wrap(err, "failed to get current working directory")
	}

	if id, ok := s.workspaceIDFromPath(cwd); ok {
		return s.Get(id)
	}

	return nil, eris.Wrapf(ErrNotInWorkspace,
		"working directory: %s, data directory: %s", cwd, s.dataRoot)
}

// Entered reports whether the caller is already inside a workspace
func (s *Store) Entered() bool {
	_, err := s.Resolve("")
	return err == nil
}

// workspaceIDFromPath walks upward from path looking for an enclosing
// workspace directory under the data root.
func (s *Store) workspaceIDFromPath(path string) (string, bool) {
	rel, err := filepath.Rel(s.dataRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") || rel == "." {
		return "", false
	}

	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) == 0 {
		return "", false
	}
	if _, err := uuid.Parse(parts[0]); err != nil {
		return "", false
	}
	return parts[0], true
}

// Delete removes the workspace directory tree. It never touches the
// shared mirror cache; clones are independent copies.
func (s *Store) Delete(id string) error {
	ws, err := s.Get(id)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(ws.Directory); err != nil {
		return eris.Wrapf(err, "failed to delete workspace directory: %s", ws.Directory)
	}

	return nil
}

// RecordClone appends a repository name to the workspace's import order.
// Recording twice is a no-op, keeping provisioning idempotent.
func (s *Store) RecordClone(ws *models.Workspace, name string) error {
	meta, err := s.readMetadata(ws.Directory)
	if err != nil {
		return err
	}

	for _, existing := range meta.Repos {
		if existing == name {
			return nil
		}
	}

	meta.Repos = append(meta.Repos, name)
	return s.writeMetadata(ws.Directory, meta)
}

func (s *Store) readMetadata(dir string) (*metadata, error) {
	path := filepath.Join(dir, metadataDir, metadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read workspace metadata: %s", path)
	}

	var meta metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, eris.Wrapf(err, "failed to parse workspace metadata: %s", path)
	}

	return &meta, nil
}

func (s *Store) writeMetadata(dir string, meta *metadata) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return eris.Wrap(err, "failed to marshal workspace metadata")
	}

	path := filepath.Join(dir, metadataDir, metadataFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "failed to write workspace metadata: %s", path)
	}

	return nil
}
