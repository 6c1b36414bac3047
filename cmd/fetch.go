package cmd

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/display"
	"github.com/grove-sh/grove/internal/provision"
)

var fetchWorkspace string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Refresh the cached mirrors behind a workspace",
	Long: `Re-validate the shared mirror of every repository clone in the
workspace, fetching only those whose remote moved. The remote for each
repository is read from the clone's origin, so repositories cloned by hand
into the workspace are refreshed too.

The working clones themselves are never touched; run 'grove apply -- git
pull' to update them.

Examples:
  grove fetch
  grove fetch -w 018f2c7a-90cd-7def-8123-456789abcdef`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVarP(&fetchWorkspace, "workspace", "w", "", "Workspace id (defaults to the enclosing workspace)")
	fetchCmd.RegisterFlagCompletionFunc("workspace", completeWorkspaceIDs) //nolint:errcheck
}

func runFetch(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	ws, err := eng.store.Resolve(fetchWorkspace)
	if err != nil {
		return err
	}

	provisioner := provision.New(eng.cache, eng.store, eng.cfg.Workers)
	results, err := provisioner.Refresh(cmd.Context(), ws)
	if err != nil && !eris.Is(err, provision.ErrPartialFailure) {
		return err
	}

	out := display.Default()
	if len(results) == 0 {
		out.Println("No repositories found. Import some with 'grove import'.")
		return nil
	}

	succeeded, failed := 0, 0
	for _, result := range results {
		if result.Err != nil {
			failed++
			out.Errorf("%s: %v", result.Name, eris.Cause(result.Err))
			continue
		}
		succeeded++
		out.Successf("%s", result.Name)
	}

	if failed > 0 {
		out.Errorf("%d succeeded, %d failed", succeeded, failed)
		cmd.SilenceUsage = true
		return eris.Wrap(provision.ErrPartialFailure, "fetch incomplete")
	}

	out.Successf("%d mirror(s) refreshed", succeeded)
	return nil
}
