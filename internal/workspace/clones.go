package workspace

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/grove-sh/grove/internal/models"
)

// Repository clones live at <workspace>/<owner>/<repo>, so a .git entry is
// never deeper than this below the workspace directory.
const maxCloneSearchDepth = 3

// ClonePath returns where a repository's working clone lives inside the workspace
func ClonePath(ws *models.Workspace, name string) string {
	return filepath.Join(ws.Directory, filepath.FromSlash(name))
}

// Clones enumerates the repository clones of a workspace in canonical
// order: the recorded import order first, then any clones found on disk
// that predate the record, sorted by name.
func (s *Store) Clones(ws *models.Workspace) ([]models.RepositoryClone, error) {
	found, err := findClones(ws.Directory)
	if err != nil {
		return nil, err
	}

	onDisk := make(map[string]bool, len(found))
	for _, name := range found {
		onDisk[name] = true
	}

	var ordered []string
	if meta, err := s.readMetadata(ws.Directory); err == nil {
		for _, name := range meta.Repos {
			if onDisk[name] {
				ordered = append(ordered, name)
				delete(onDisk, name)
			}
		}
	}

	var rest []string
	for name := range onDisk {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	ordered = append(ordered, rest...)

	clones := make([]models.RepositoryClone, 0, len(ordered))
	for _, name := range ordered {
		clones = append(clones, models.RepositoryClone{
			Name:        name,
			WorkspaceID: ws.ID,
			LocalPath:   ClonePath(ws, name),
		})
	}

	return clones, nil
}

// findClones walks the workspace directory looking for working clones,
// identified by a .git entry within the depth limit.
func findClones(dir string) ([]string, error) {
	var names []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if d.Name() == metadataDir {
			return filepath.SkipDir
		}

		depth := len(strings.Split(rel, string(filepath.Separator)))
		if depth > maxCloneSearchDepth {
			return filepath.SkipDir
		}

		if d.Name() == ".git" {
			parent := filepath.Dir(rel)
			names = append(names, filepath.ToSlash(parent))
			return filepath.SkipDir
		}

		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to scan workspace for clones: %s", dir)
	}

	sort.Strings(names)
	return names, nil
}
