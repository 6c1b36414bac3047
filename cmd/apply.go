package cmd

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/apply"
	"github.com/grove-sh/grove/internal/display"
	"github.com/grove-sh/grove/internal/models"
)

var (
	applyWorkspace string
	applyScript    string
)

var applyCmd = &cobra.Command{
	Use:   "apply [flags] -- <command> [args...]",
	Short: "Run a command or script in every repository clone",
	Long: `Execute the given command once per repository clone, concurrently,
with the clone directory as the working directory. Each repository's
output is printed as one contiguous labeled block; exit codes are
aggregated and a non-zero exit in one repository never cancels the others.

Everything after -- is passed verbatim to the invoked command. The clone's
owner/repo name is available to the command as $GROVE_REPO.

Examples:
  grove apply -- git pull --ff-only
  grove apply -w <id> -- make test
  grove apply --script ./scripts/fix-license.sh`,
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringVarP(&applyWorkspace, "workspace", "w", "", "Workspace id (defaults to the enclosing workspace)")
	applyCmd.Flags().StringVarP(&applyScript, "script", "s", "", "Path to an executable script to run instead of a command")
	applyCmd.RegisterFlagCompletionFunc("workspace", completeWorkspaceIDs) //nolint:errcheck
	// A flag after the command belongs to the command, not to grove
	applyCmd.Flags().SetInterspersed(false)
}

func runApply(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	ws, err := eng.store.Resolve(applyWorkspace)
	if err != nil {
		return err
	}

	runner := apply.New(eng.store, eng.cfg.Workers)
	runner.Out = os.Stdout

	var summary *models.ApplySummary
	if applyScript != "" {
		summary, err = runner.ApplyScript(cmd.Context(), ws, applyScript, args)
	} else {
		if len(args) == 0 {
			return eris.Wrap(apply.ErrNoCommand, "use 'grove apply -- <command>' or 'grove apply --script <path>'")
		}
		summary, err = runner.Apply(cmd.Context(), ws, args)
	}
	if err != nil {
		return err
	}

	out := display.Default()
	succeeded := 0
	for _, result := range summary.Results {
		if !result.Failed() {
			succeeded++
		}
	}

	if summary.AnyFailed {
		out.Errorf("%d succeeded, %d failed", succeeded, len(summary.Results)-succeeded)
		for _, result := range summary.Results {
			if result.Failed() {
				if result.Err != nil {
					out.Printf("  %s: %v\n", result.RepoName, result.Err)
				} else {
					out.Printf("  %s: exit status %d\n", result.RepoName, result.ExitCode)
				}
			}
		}
		// Non-zero process exit without masking which repositories succeeded
		cmd.SilenceUsage = true
		return eris.New("apply failed in one or more repositories")
	}

	if len(summary.Results) == 0 {
		out.Println("No repositories found in workspace")
		return nil
	}

	out.Successf("%d succeeded", succeeded)
	return nil
}
