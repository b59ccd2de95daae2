package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/landscore/internal/layer"
	"github.com/sells-group/landscore/internal/overpass"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch vacant land parcels from Overpass",
	Long: `Queries the Overpass API for vacant, brownfield, greenfield and similar
land within a bounding box and writes the parcels as GeoJSON polygons.

A cached response is reused without touching the network.

Examples:
  fetch --bbox 55.5,-4.8,56.0,-2.8 --output lands.geojson
  fetch --print-query`,
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.String("bbox", "", "south,west,north,east (default from config)")
	f.String("output", "", "output GeoJSON path (default from config)")
	f.Bool("print-query", false, "print the Overpass QL query and exit")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("fetch"); err != nil {
		return err
	}

	bbox, err := bboxFlag(cmd)
	if err != nil {
		return err
	}
	if printQuery, _ := cmd.Flags().GetBool("print-query"); printQuery {
		fmt.Print(overpass.BuildQuery(bbox, cfg.Overpass.TimeoutSecs))
		return nil
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = cfg.Overpass.ParcelsPath
	}

	fetcher, closeCache, err := newFetcher(ctx, nil)
	if err != nil {
		return err
	}
	defer closeCache()

	l, err := fetcher.Fetch(ctx, bbox, cfg.Overpass.TimeoutSecs)
	if err != nil {
		return err
	}
	if err := layer.Write(output, l); err != nil {
		return err
	}

	zap.L().Info("parcels written", zap.String("path", output), zap.Int("features", len(l.Features)))
	fmt.Printf("Wrote %d parcels to %s\n", len(l.Features), output)
	return nil
}

func bboxFlag(cmd *cobra.Command) (overpass.BBox, error) {
	raw, _ := cmd.Flags().GetString("bbox")
	if raw == "" {
		raw = cfg.Overpass.BBox
	}
	return overpass.ParseBBox(raw)
}
