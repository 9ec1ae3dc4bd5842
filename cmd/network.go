package main

import (
	"github.com/spf13/cobra"

	"github.com/suqdata/market-cli/internal/network"
	"github.com/suqdata/market-cli/internal/pipeline"
	"github.com/suqdata/market-cli/internal/region"
)

var networkOut string

type networkReport struct {
	Commodity  string                   `json:"commodity"`
	Period     string                   `json:"period"`
	Centrality map[region.ID]float64    `json:"centrality"`
	Clusters   []network.ClusterMetrics `json:"clusters"`
	Graph      pipeline.GraphSummary    `json:"graph"`
}

var networkCmd = &cobra.Command{
	Use:   "network <commodity> <period>",
	Short: "Compute flow-network centrality and cluster efficiency",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initAnalyzer(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Analyzer.Run(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		return writeJSONOutput(cmd, networkOut, networkReport{
			Commodity:  result.Commodity,
			Period:     result.Period,
			Centrality: result.Centrality,
			Clusters:   result.Clusters,
			Graph:      result.Graph,
		})
	},
}

func init() {
	networkCmd.Flags().StringVar(&networkOut, "out", "", "output file (default stdout)")
	rootCmd.AddCommand(networkCmd)
}
