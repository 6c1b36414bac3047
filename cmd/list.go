package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/display"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces, newest first",
	Long: `Display all workspaces with their ids, creation times, and
descriptions. Ordering follows the ids, which sort by creation time.

Examples:
  grove list
  grove list --json`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
}

func runList(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	workspaces, err := eng.store.List()
	if err != nil {
		return eris.Wrap(err, "failed to list workspaces")
	}

	if listJSON {
		data, err := json.MarshalIndent(workspaces, "", "  ")
		if err != nil {
			return eris.Wrap(err, "failed to marshal workspaces")
		}
		fmt.Println(string(data))
		return nil
	}

	if len(workspaces) == 0 {
		fmt.Println("No workspaces found. Create one with 'grove create -d <description>'.")
		return nil
	}

	out := display.Default()
	for _, ws := range workspaces {
		out.Println(out.Bold(ws.ID))
		out.Printf("  created: %s (%s)\n", ws.CreatedAt.Format("2006-01-02 15:04:05"), formatTimeAgo(ws.CreatedAt))
		out.Printf("  %s\n\n", ws.Description)
	}

	return nil
}
