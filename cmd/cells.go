package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/siterisk/internal/metric"
	"github.com/sells-group/siterisk/internal/spatial"
)

var (
	cellsLat     float64
	cellsLng     float64
	cellsRadius  float64
	cellsGeoJSON bool
)

var cellsCmd = &cobra.Command{
	Use:   "cells",
	Short: "List the grid cells covering a radius around a point",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cells"); err != nil {
			return err
		}
		ix := spatial.NewIndexer(cfg.Grid.Resolution)
		return writeCells(cmd.OutOrStdout(), ix, cellsLat, cellsLng, resolveRadius(cellsRadius, cfg.Grid.RadiusM), cellsGeoJSON)
	},
}

// resolveRadius picks the flag value, then the configured radius, then the
// scoring default.
func resolveRadius(flag, configured float64) float64 {
	switch {
	case flag > 0:
		return flag
	case configured > 0:
		return configured
	default:
		return metric.DefaultConfig().RadiusM
	}
}

func writeCells(w io.Writer, ix *spatial.Indexer, lat, lng, radiusM float64, asGeoJSON bool) error {
	cells, err := ix.CellsInRadius(lat, lng, radiusM)
	if err != nil {
		return eris.Wrap(err, "cells in radius")
	}

	if asGeoJSON {
		data, err := ix.CollectionGeoJSON(cells)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "# resolution %d, radius %.0f m, %d rings, %d cells\n",
		ix.Resolution(), radiusM, ix.RingCount(radiusM), len(cells))
	for _, c := range cells {
		fmt.Fprintln(w, c)
	}
	return nil
}

func init() {
	cellsCmd.Flags().Float64Var(&cellsLat, "lat", 0, "latitude (WGS84)")
	cellsCmd.Flags().Float64Var(&cellsLng, "lng", 0, "longitude (WGS84)")
	cellsCmd.Flags().Float64Var(&cellsRadius, "radius", 0, "radius in meters (default from config)")
	cellsCmd.Flags().BoolVar(&cellsGeoJSON, "geojson", false, "print cell boundaries as a GeoJSON FeatureCollection")
	_ = cellsCmd.MarkFlagRequired("lat")
	_ = cellsCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(cellsCmd)
}
