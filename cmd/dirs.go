package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/config"
)

var workspaceDirWorkspace string

var cacheDirCmd = &cobra.Command{
	Use:   "cache-dir",
	Short: "Print the mirror cache directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.GetCacheDir()
		if err != nil {
			return err
		}
		fmt.Println(dir)
		return nil
	},
}

var dataDirCmd = &cobra.Command{
	Use:   "data-dir",
	Short: "Print the data directory containing workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.GetDataDir()
		if err != nil {
			return err
		}
		fmt.Println(dir)
		return nil
	},
}

var workspaceDirCmd = &cobra.Command{
	Use:   "workspace-dir",
	Short: "Print a workspace directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		ws, err := eng.store.Resolve(workspaceDirWorkspace)
		if err != nil {
			return err
		}
		fmt.Println(ws.Directory)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheDirCmd)
	rootCmd.AddCommand(dataDirCmd)
	rootCmd.AddCommand(workspaceDirCmd)
	workspaceDirCmd.Flags().StringVarP(&workspaceDirWorkspace, "workspace", "w", "", "Workspace id (defaults to the enclosing workspace)")
	workspaceDirCmd.RegisterFlagCompletionFunc("workspace", completeWorkspaceIDs) //nolint:errcheck
}
