package cmd

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/config"
	"github.com/grove-sh/grove/internal/display"
)

var (
	configDataDir  string
	configCacheDir string
	configWorkers  int
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure grove settings",
	Long: `Persist grove settings to the config file.

With no flags, prints the resolved configuration.

Examples:
  grove config
  grove config --data-dir ~/work/grove
  grove config --cache-dir /mnt/ssd/grove-cache --workers 8`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVar(&configDataDir, "data-dir", "", "Set the workspace data directory")
	configCmd.Flags().StringVar(&configCacheDir, "cache-dir", "", "Set the mirror cache directory")
	configCmd.Flags().IntVar(&configWorkers, "workers", 0, "Set the worker pool size for batch operations")
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	out := display.Default()

	if configDataDir == "" && configCacheDir == "" && configWorkers == 0 {
		out.Printf("data_dir: %s\n", cfg.DataDir)
		out.Printf("cache_dir: %s\n", cfg.CacheDir)
		out.Printf("workers: %d\n", cfg.Workers)
		return nil
	}

	if configWorkers < 0 {
		return eris.Errorf("invalid workers: %d (must be positive)", configWorkers)
	}

	if configDataDir != "" {
		cfg.DataDir = configDataDir
		out.Successf("data directory set to %s", configDataDir)
	}
	if configCacheDir != "" {
		cfg.CacheDir = configCacheDir
		out.Successf("cache directory set to %s", configCacheDir)
	}
	if configWorkers > 0 {
		cfg.Workers = configWorkers
		out.Successf("workers set to %d", configWorkers)
	}

	return config.SaveConfig(cfg)
}
