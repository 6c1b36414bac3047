package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/config"
	"github.com/grove-sh/grove/internal/workspace"
)

// completeWorkspaceIDs returns a completion function that provides
// workspace ids, newest first.
func completeWorkspaceIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	dataDir, err := config.GetDataDir()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	workspaces, err := workspace.NewStore(dataDir).List()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var ids []string
	for _, ws := range workspaces {
		ids = append(ids, ws.ID+"\t"+ws.Description)
	}

	return ids, cobra.ShellCompDirectiveNoFileComp
}
