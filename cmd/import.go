package cmd

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/display"
	"github.com/grove-sh/grove/internal/gh"
	"github.com/grove-sh/grove/internal/provision"
)

var (
	importWorkspace string
	importQuery     string
	importDryRun    bool
)

var importCmd = &cobra.Command{
	Use:   "import [flags] [owner/repo...]",
	Short: "Clone repositories into a workspace",
	Long: `Import repositories into the workspace, either by explicit
owner/repo names or by a GitHub search query resolved through the gh CLI.

Each repository is cloned once into the shared mirror cache, then cloned
locally into the workspace. Re-importing an already-present repository is
a cheap no-op. Imports run concurrently with bounded parallelism; one
repository's failure never aborts the rest.

Examples:
  grove import golang/go golang/tools
  grove import --query "org:myorg language:go archived:false"
  grove import --dry-run --query "org:myorg topic:service"`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importWorkspace, "workspace", "w", "", "Workspace id (defaults to the enclosing workspace)")
	importCmd.Flags().StringVarP(&importQuery, "query", "q", "", "GitHub repository search query")
	importCmd.Flags().BoolVarP(&importDryRun, "dry-run", "n", false, "Print resolved repository names without cloning")
	importCmd.RegisterFlagCompletionFunc("workspace", completeWorkspaceIDs) //nolint:errcheck
}

func runImport(cmd *cobra.Command, args []string) error {
	if importQuery != "" && len(args) > 0 {
		return eris.New("use --query or positional owner/repo arguments, but not both")
	}
	if importQuery == "" && len(args) == 0 {
		return eris.New("provide a --query or positional owner/repo arguments")
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	ws, err := eng.store.Resolve(importWorkspace)
	if err != nil {
		return err
	}

	names := args
	if importQuery != "" {
		resolver := &gh.CLIResolver{}
		names, err = resolver.Resolve(cmd.Context(), importQuery)
		if err != nil {
			return eris.Wrap(err, "failed to resolve repository query")
		}
	}

	for _, name := range names {
		if err := gh.ValidateRepoName(name); err != nil {
			return err
		}
	}

	if importDryRun {
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	provisioner := provision.New(eng.cache, eng.store, eng.cfg.Workers)
	results, err := provisioner.ProvisionAll(cmd.Context(), ws, names)
	if err != nil && !eris.Is(err, provision.ErrPartialFailure) {
		return err
	}

	out := display.Default()
	succeeded, failed := 0, 0
	for _, result := range results {
		switch {
		case result.Err != nil:
			failed++
			out.Errorf("%s: %v", result.Name, eris.Cause(result.Err))
		case result.Skipped:
			succeeded++
			out.Printf("  %s (already present)\n", result.Name)
		default:
			succeeded++
			out.Successf("%s", result.Name)
		}
	}

	if failed > 0 {
		out.Errorf("%d succeeded, %d failed", succeeded, failed)
		cmd.SilenceUsage = true
		return eris.Wrap(provision.ErrPartialFailure, "import incomplete")
	}

	out.Successf("%d repositories imported", succeeded)
	return nil
}
