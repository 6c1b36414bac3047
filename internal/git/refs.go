package git

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// ListRemoteRefs lists the branch and tag refs of a remote as the raw
// ls-remote output (hash<TAB>refname lines). The output is stable for an
// unchanged remote, so comparing two listings answers "did anything move".
func ListRemoteRefs(ctx context.Context, remoteURL string) (string, error) {
	output, err := run(ctx, "", "ls-remote", "--heads", "--tags", remoteURL)
	if err != nil {
		return "", classifyRemoteErr(err, output, "failed to list remote refs")
	}
	return output, nil
}

// UpdateMirror fetches all remote changes into a bare mirror, pruning refs
// deleted upstream.
func UpdateMirror(ctx context.Context, mirrorPath string) error {
	output, err := run(ctx, mirrorPath, "remote", "update", "--prune")
	if err != nil {
		return classifyRemoteErr(err, output, "failed to update mirror")
	}
	return nil
}

// VerifyMirror performs a basic integrity check of an on-disk mirror.
// It confirms the directory is a bare repository whose object database is
// readable. An empty-but-valid mirror passes.
func VerifyMirror(ctx context.Context, mirrorPath string) error {
	output, err := run(ctx, mirrorPath, "rev-parse", "--is-bare-repository")
	if err != nil {
		return eris.Wrapf(err, "mirror is not a repository: %s", strings.TrimSpace(output))
	}
	if strings.TrimSpace(output) != "true" {
		return eris.Errorf("mirror is not a bare repository: %s", mirrorPath)
	}

	output, err = run(ctx, mirrorPath, "count-objects")
	if err != nil {
		return eris.Wrapf(err, "mirror object database unreadable: %s", strings.TrimSpace(output))
	}

	return nil
}
