package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suqdata/market-cli/internal/artifact"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the persistent artifact cache",
}

// openConfiguredStore opens the disk store named in config.
func openConfiguredStore() (*artifact.DiskStore, error) {
	if cfg.Cache.DiskPath == "" {
		return nil, eris.New("cache.disk_path is not configured")
	}
	return artifact.OpenDiskStore(cfg.Cache.DiskPath)
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show disk cache row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openConfiguredStore()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return writeJSONOutput(cmd, "", stats)
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired disk cache rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openConfiguredStore()
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.Purge(cmd.Context())
		if err != nil {
			return err
		}
		zap.L().Info("cache purged", zap.Int("removed", removed))
		return writeJSONOutput(cmd, "", map[string]int{"removed": removed})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every disk cache row",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openConfiguredStore()
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.Clear(cmd.Context())
		if err != nil {
			return err
		}
		zap.L().Info("cache cleared", zap.Int("removed", removed))
		return writeJSONOutput(cmd, "", map[string]int{"removed": removed})
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
