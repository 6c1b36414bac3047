// Package gh is the boundary to GitHub: it resolves search queries into
// repository names and picks the clone protocol, both by shelling out to
// the gh CLI so grove reuses the operator's existing authentication.
package gh

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Protocol selects how clone URLs are built for a host
type Protocol string

const (
	ProtocolHTTPS Protocol = "https"
	ProtocolSSH   Protocol = "ssh"
)

// CloneURL builds a git clone URL for host and owner/repo
func (p Protocol) CloneURL(host, fullName string) string {
	if p == ProtocolSSH {
		return "git@" + host + ":" + fullName + ".git"
	}
	return "https://" + host + "/" + fullName + ".git"
}

// ProtocolFor returns the protocol configured in gh for the host, falling
// back to HTTPS when gh is unavailable or unconfigured.
func ProtocolFor(ctx context.Context, host string) Protocol {
	cmd := exec.CommandContext(ctx, "gh", "config", "get", "git_protocol", "-h", host)
	output, err := cmd.Output()
	if err != nil {
		return ProtocolHTTPS
	}

	switch strings.TrimSpace(string(output)) {
	case "ssh":
		return ProtocolSSH
	default:
		return ProtocolHTTPS
	}
}

// Resolver turns a repository search query into an ordered list of
// owner/repo names. The batch-import path is its only consumer.
type Resolver interface {
	Resolve(ctx context.Context, query string) ([]string, error)
}

// CLIResolver resolves queries through the gh CLI's search API
type CLIResolver struct {
	// Limit caps the number of results per query; gh's maximum applies
	// when zero.
	Limit int
}

// searchRepo is the JSON shape returned by gh search repos --json fullName
type searchRepo struct {
	FullName string `json:"fullName"`
}

// Resolve runs a GitHub repository search and returns the matching
// owner/repo names in the order the search API produced them.
func (r *CLIResolver) Resolve(ctx context.Context, query string) ([]string, error) {
	limit := "1000"
	if r.Limit > 0 {
		limit = strconv.Itoa(r.Limit)
	}

	cmd := exec.CommandContext(ctx, "gh", "search", "repos", "--json", "fullName", "--limit", limit, query)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, eris.Wrapf(err, "gh search failed: %s", string(exitErr.Stderr))
		}
		return nil, eris.Wrap(err, "failed to execute gh command")
	}

	var repos []searchRepo
	if err := json.Unmarshal(output, &repos); err != nil {
		return nil, eris.Wrap(err, "failed to parse gh search output")
	}

	names := make([]string, 0, len(repos))
	for _, repo := range repos {
		names = append(names, repo.FullName)
	}

	return names, nil
}

// ValidateRepoName checks that name looks like owner/repo
func ValidateRepoName(name string) error {
	parts := strings.Split(name, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return eris.Errorf("invalid repository name: %q (must look like owner/repo)", name)
	}
	return nil
}

