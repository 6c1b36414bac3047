package cmd

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/display"
	"github.com/grove-sh/grove/internal/status"
)

var statusWorkspace string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show aggregated git status across a workspace",
	Long: `Inspect every repository clone in the workspace concurrently and
report branch plus staged/modified/untracked counts per repository.

Without --workspace, the enclosing workspace of the current directory is
used.

Examples:
  grove status
  grove status -w 018f2c7a-90cd-7def-8123-456789abcdef`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusWorkspace, "workspace", "w", "", "Workspace id (defaults to the enclosing workspace)")
	statusCmd.RegisterFlagCompletionFunc("workspace", completeWorkspaceIDs) //nolint:errcheck
}

func runStatus(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	ws, err := eng.store.Resolve(statusWorkspace)
	if err != nil {
		return err
	}

	collector := status.New(eng.store, eng.cfg.Workers)
	result, err := collector.Collect(cmd.Context(), ws)
	if err != nil {
		return eris.Wrap(err, "failed to collect workspace status")
	}

	out := display.Default()
	out.Println("Workspace status:")
	out.Printf("  %d repositories total\n", result.Total)
	out.Printf("  %d clean, %d with changes\n\n", result.Clean, result.Total-result.Clean)

	if result.Total == 0 {
		out.Println("No repositories found. Import some with 'grove import'.")
		return nil
	}

	anyShown := false
	for _, entry := range result.Entries {
		if entry.Err != nil {
			out.Errorf("%s: %v", entry.RepoName, entry.Err)
			anyShown = true
			continue
		}
		if !entry.HasChanges() {
			continue
		}

		anyShown = true
		out.Printf("  %s (%s)\n", out.Bold(entry.RepoName), entry.Branch)
		if entry.Staged > 0 {
			out.Printf("    %d file(s) with staged changes\n", entry.Staged)
		}
		if entry.Modified > 0 {
			out.Printf("    %d file(s) with unstaged changes\n", entry.Modified)
		}
		if entry.Untracked > 0 {
			out.Printf("    %d untracked file(s)\n", entry.Untracked)
		}
		out.Println()
	}

	if !anyShown {
		out.Println("All repositories are clean.")
	}

	return nil
}
