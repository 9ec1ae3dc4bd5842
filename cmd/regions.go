package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/suqdata/market-cli/internal/region"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the canonical region gazetteer",
	RunE: func(cmd *cobra.Command, args []string) error {
		gaz, err := region.LoadGazetteer()
		if err != nil {
			return eris.Wrap(err, "load gazetteer")
		}
		return writeJSONOutput(cmd, "", map[string]any{
			"regions":   gaz.All(),
			"ambiguous": gaz.AmbiguousNames(),
			"count":     gaz.Len(),
		})
	},
}

var regionsResolveCmd = &cobra.Command{
	Use:   "resolve <name>...",
	Short: "Resolve raw region names to canonical identifiers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gaz, err := region.LoadGazetteer()
		if err != nil {
			return eris.Wrap(err, "load gazetteer")
		}
		normalizer := region.NewNormalizer(gaz,
			region.WithThreshold(cfg.Region.FuzzyThreshold),
			region.WithMaxCandidates(cfg.Region.MaxCandidates),
		)

		type resolution struct {
			Input string       `json:"input"`
			Match region.Match `json:"match"`
			Known bool         `json:"known"`
		}
		out := make([]resolution, 0, len(args))
		for _, raw := range args {
			match := normalizer.Resolve(raw)
			out = append(out, resolution{Input: raw, Match: match, Known: match.Known()})
		}
		return writeJSONOutput(cmd, "", out)
	},
}

func init() {
	regionsCmd.AddCommand(regionsResolveCmd)
	rootCmd.AddCommand(regionsCmd)
}
