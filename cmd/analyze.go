package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/siterisk/internal/analysis"
)

var (
	analyzeLat      float64
	analyzeLng      float64
	analyzeCategory string
	analyzeJSON     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score one location for one business category",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initAnalysis(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.Analyze(ctx, analysis.NewRequest(analyzeLat, analyzeLng, analyzeCategory))
		if err != nil {
			return err
		}

		if analyzeJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		writeAnalysis(cmd.OutOrStdout(), res)
		return nil
	},
}

// writeAnalysis prints a human-readable report.
func writeAnalysis(w io.Writer, res *analysis.Result) {
	loc := res.Location
	fmt.Fprintf(w, "%s at %.5f, %.5f (cell %s)\n", res.Category.Name, loc.Lat, loc.Lng, loc.Cell)
	if loc.Address != "" {
		fmt.Fprintf(w, "Address: %s\n", loc.Address)
	}
	fmt.Fprintf(w, "Risk: %.1f %s (area: %s, adjustment %+.0f)\n",
		res.Summary.Score, res.Summary.Level, res.Summary.AreaType, res.Summary.Adjustment)
	fmt.Fprintf(w, "\n%s\n", res.Interpretation.Summary)

	if len(res.RiskCards) > 0 {
		fmt.Fprintln(w, "\nTop risks:")
		for i, c := range res.RiskCards {
			fmt.Fprintf(w, "  %d. [%s] %s (%.1f)\n", i+1, c.Severity, c.Headline, c.Score)
			if c.FieldCheck != "" {
				fmt.Fprintf(w, "     check: %s\n", c.FieldCheck)
			}
		}
	}

	if len(res.DataQuality.Warnings) > 0 {
		fmt.Fprintf(w, "\nData quality: %s\n", strings.Join(res.DataQuality.Warnings, "; "))
	}
}

func init() {
	analyzeCmd.Flags().Float64Var(&analyzeLat, "lat", 0, "latitude (WGS84)")
	analyzeCmd.Flags().Float64Var(&analyzeLng, "lng", 0, "longitude (WGS84)")
	analyzeCmd.Flags().StringVar(&analyzeCategory, "category", "", "business category key")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full result as JSON")
	_ = analyzeCmd.MarkFlagRequired("lat")
	_ = analyzeCmd.MarkFlagRequired("lng")
	_ = analyzeCmd.MarkFlagRequired("category")
	rootCmd.AddCommand(analyzeCmd)
}
