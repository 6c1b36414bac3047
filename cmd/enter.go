package cmd

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/shell"
	"github.com/grove-sh/grove/internal/workspace"
)

var enterCmd = &cobra.Command{
	Use:   "enter <workspace-id>",
	Short: "Enter an existing workspace",
	Long: `Start a shell inside an existing workspace directory.

The workspace id is exported as GROVE_WORKSPACE_ID so other grove commands
resolve the workspace automatically from within the session.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeWorkspaceIDs,
	RunE:              runEnter,
}

func init() {
	rootCmd.AddCommand(enterCmd)
}

func runEnter(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	if eng.store.Entered() {
		return eris.Wrap(workspace.ErrAlreadyInWorkspace, "exit the current workspace before entering another one")
	}

	ws, err := eng.store.Get(args[0])
	if err != nil {
		return err
	}

	return shell.Enter(ws)
}
