package cmd

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "grove",
	Short: "Multi-repository workspace orchestrator",
	Long: `grove manages workspaces of related git repository clones and runs
the same operation across all of them.

Repositories are cloned once into a shared bare-mirror cache; every
workspace gets its own fast local clones from that cache.

Examples:
  grove create -d "upgrade CI"           # Create a workspace and enter it
  grove import -- owner/repo1 owner/repo2 # Clone repositories into it
  grove import --query "org:myorg language:go"
  grove status                           # Aggregate git status across clones
  grove apply -- git pull                # Run a command in every clone
  grove apply --script ./fix.sh          # Run a script in every clone`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", eris.ToString(err, true))
		os.Exit(1)
	}
}
