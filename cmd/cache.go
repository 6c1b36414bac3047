package cmd

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/db"
	"github.com/grove-sh/grove/internal/display"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "List the cached repository mirrors",
	Long: `Display every bare mirror in the shared cache with its location and
the time of its last successful freshness check, most recently verified
first.

Examples:
  grove cache`,
	RunE: runCache,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
}

func runCache(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	entries, err := db.GetAllCacheEntries(eng.database)
	if err != nil {
		return eris.Wrap(err, "failed to list cache entries")
	}

	out := display.Default()
	if len(entries) == 0 {
		out.Println("Cache is empty. Mirrors appear after 'grove import'.")
		return nil
	}

	for _, entry := range entries {
		verified := "never"
		if entry.LastVerifiedAt != nil {
			verified = formatTimeAgo(*entry.LastVerifiedAt)
		}

		out.Println(out.Bold(entry.Key.FullName()))
		out.Printf("  host: %s\n", entry.Key.Host)
		out.Printf("  mirror: %s\n", entry.MirrorPath)
		out.Printf("  verified: %s\n\n", verified)
	}

	return nil
}
