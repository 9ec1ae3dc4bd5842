package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	assembleOut  string
	assembleFull bool
)

var assembleCmd = &cobra.Command{
	Use:   "assemble <commodity> <period>",
	Short: "Assemble the unified feature collection for a commodity/period",
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

		if len(result.Assembly.Unmatched) > 0 {
			zap.L().Warn("assemble: unmatched records",
				zap.Int("count", len(result.Assembly.Unmatched)),
			)
		}

		var out any = result.Assembly.FeatureCollection()
		if assembleFull {
			out = result
		}
		return writeJSONOutput(cmd, assembleOut, out)
	},
}

// writeJSONOutput marshals v and writes it to path, or stdout when path
// is empty.
func writeJSONOutput(cmd *cobra.Command, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal output")
	}
	data = append(data, '\n')

	if path == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "write output")
	}
	zap.L().Info("output written", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

func init() {
	assembleCmd.Flags().StringVar(&assembleOut, "out", "", "output file (default stdout)")
	assembleCmd.Flags().BoolVar(&assembleFull, "full", false, "emit the full analysis result instead of the feature collection")
	rootCmd.AddCommand(assembleCmd)
}
