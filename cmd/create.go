package cmd

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/display"
	"github.com/grove-sh/grove/internal/shell"
	"github.com/grove-sh/grove/internal/workspace"
)

var createDescription string

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new workspace and enter it",
	Long: `Create a new workspace with a fresh time-ordered id, then start a
shell inside it.

Workspace creation is fully local: no repository is cloned until you run
'grove import'.

Examples:
  grove create -d "dependency bump across services"`,
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "Workspace description")
	createCmd.MarkFlagRequired("description") //nolint:errcheck
}

func runCreate(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	if eng.store.Entered() {
		return eris.Wrap(workspace.ErrAlreadyInWorkspace, "exit the current workspace before creating a new one")
	}

	ws, err := eng.store.Create(createDescription)
	if err != nil {
		return eris.Wrap(err, "failed to create workspace")
	}

	out := display.Default()
	out.Successf("created workspace %s", ws.ID)
	out.Printf("  %s\n", ws.Directory)

	return shell.Enter(ws)
}
