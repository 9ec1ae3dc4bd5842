package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suqdata/market-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "market-cli",
	Short: "Yemen commodity market integration analysis",
	Long:  "Normalizes region names, validates market geometry, assembles unified feature sets per commodity/period, and computes flow-network centrality and cluster efficiency.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
