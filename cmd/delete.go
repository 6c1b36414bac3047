package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/display"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <workspace-id>",
	Short: "Delete a workspace",
	Long: `Remove a workspace directory tree, including all of its repository
clones. The shared mirror cache is never touched, so repositories stay
cheap to import into other workspaces.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeWorkspaceIDs,
	RunE:              runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.store.Delete(args[0]); err != nil {
		return err
	}

	display.Default().Successf("deleted workspace %s", args[0])
	return nil
}
