package git

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// CloneMirror clones a remote repository as a bare mirror to destPath.
// Mirrors track every remote ref, so a later "remote update" keeps the
// cache in lockstep with the remote.
func CloneMirror(ctx context.Context, remoteURL, destPath string) error {
	output, err := run(ctx, "", "clone", "--mirror", remoteURL, destPath)
	if err != nil {
		return classifyRemoteErr(err, output, "failed to clone mirror")
	}
	return nil
}

// CloneLocal clones from a local source repository into destPath.
// Local clones hardlink objects where the filesystem allows, which is what
// makes provisioning from the cache cheap.
func CloneLocal(ctx context.Context, sourcePath, destPath string) error {
	output, err := run(ctx, "", "clone", "--local", sourcePath, destPath)
	if err != nil {
		return eris.Wrapf(err, "failed to clone from local source: %s", strings.TrimSpace(output))
	}
	return nil
}

// SetRemoteURL points origin of the repository at repoPath to remoteURL.
// Working clones are created from the cache, so origin must be reset to
// the real remote afterwards.
func SetRemoteURL(ctx context.Context, repoPath, remoteURL string) error {
	output, err := run(ctx, repoPath, "remote", "set-url", "origin", remoteURL)
	if err != nil {
		return eris.Wrapf(err, "failed to set remote URL: %s", strings.TrimSpace(output))
	}
	return nil
}

// GetRemoteURL retrieves the origin URL from a git repository
func GetRemoteURL(ctx context.Context, repoPath string) (string, error) {
	output, err := run(ctx, repoPath, "remote", "get-url", "origin")
	if err != nil {
		return "", eris.Wrapf(err, "failed to get remote URL: %s", strings.TrimSpace(output))
	}
	return strings.TrimSpace(output), nil
}

// ParseRemoteURL parses a git remote URL and extracts the host, organization, and repository name
// Supports both SSH and HTTPS URLs
// Examples:
//   - git@github.com:user/repo.git -> github.com, user, repo
//   - https://github.com/user/repo.git -> github.com, user, repo
//   - https://gitlab.com/org/subgroup/project.git -> gitlab.com, org/subgroup, project
func ParseRemoteURL(remoteURL string) (host, org, repo string, err error) {
	// Handle SSH URLs (git@host:path)
	if strings.HasPrefix(remoteURL, "git@") {
		parts := strings.SplitN(remoteURL, ":", 2)
		if len(parts) != 2 {
			return "", "", "", eris.Errorf("invalid SSH URL format: %s", remoteURL)
		}
		host = strings.TrimPrefix(parts[0], "git@")
		path := strings.TrimSuffix(parts[1], ".git")

		pathParts := strings.Split(path, "/")
		if len(pathParts) < 2 {
			return "", "", "", eris.Errorf("invalid repository path: %s", path)
		}
		repo = pathParts[len(pathParts)-1]
		org = strings.Join(pathParts[:len(pathParts)-1], "/")

		return host, org, repo, nil
	}

	// Handle HTTPS URLs
	parsedURL, err := url.Parse(remoteURL)
	if err != nil {
		return "", "", "", eris.Wrap(err, "failed to parse remote URL")
	}

	host = parsedURL.Host
	path := strings.TrimPrefix(parsedURL.Path, "/")
	path = strings.TrimSuffix(path, ".git")

	pathParts := strings.Split(path, "/")
	if len(pathParts) < 2 {
		return "", "", "", eris.Errorf("invalid repository path: %s", path)
	}

	repo = pathParts[len(pathParts)-1]
	org = strings.Join(pathParts[:len(pathParts)-1], "/")

	return host, org, repo, nil
}
