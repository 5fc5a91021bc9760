package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/siterisk/internal/category"
	"github.com/sells-group/siterisk/internal/model"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the business categories and their weight profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry(cfg.CategoriesFile)
		if err != nil {
			return err
		}
		return writeCategories(cmd.OutOrStdout(), reg)
	},
}

func writeCategories(w io.Writer, reg *category.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tGROUP\tPEAK\tINVERSE\tCOMP\tTRAFFIC\tCOST\tSURVIVAL\tANCHOR")
	for _, c := range reg.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t", c.Key, c.Name, c.Group, c.PeakTime, c.InverseTraffic)
		for _, d := range model.Dimensions() {
			fmt.Fprintf(tw, "\t%.2f", c.Weights[d])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}
