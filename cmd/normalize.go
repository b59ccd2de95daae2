package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/landscore/internal/layer"
	"github.com/sells-group/landscore/internal/normalize"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <input> [output]",
	Short: "Add normalized copies of every numeric zone property",
	Long: `Computes per-field statistics over every numeric property and writes a
"<prefix>_<field>" copy scaled to [0, 1].

Methods: minmax, robust (quantile window, clipped), zscore (sigmoid), quantile (rank).
The output defaults to <input>_normalized.geojson.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNormalize,
}

func init() {
	f := normalizeCmd.Flags()
	f.String("method", "", "minmax, robust, zscore or quantile (default from config)")
	f.Float64("q-low", -1, "lower quantile for robust scaling (default from config)")
	f.Float64("q-high", -1, "upper quantile for robust scaling (default from config)")
	f.String("prefix", "", "normalized field prefix (default from config)")
	f.StringSlice("exclude", nil, "fields to leave untouched (default from config)")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	if v, _ := f.GetString("method"); v != "" {
		cfg.Normalize.Method = v
	}
	if v, _ := f.GetFloat64("q-low"); v >= 0 {
		cfg.Normalize.QLow = v
	}
	if v, _ := f.GetFloat64("q-high"); v >= 0 {
		cfg.Normalize.QHigh = v
	}
	if v, _ := f.GetString("prefix"); v != "" {
		cfg.Normalize.Prefix = v
	}
	if f.Changed("exclude") {
		cfg.Normalize.Exclude, _ = f.GetStringSlice("exclude")
	}
	if err := cfg.Validate("normalize"); err != nil {
		return err
	}

	input := args[0]
	output := outputArg(args, input, "_normalized")

	l, err := layer.Read(input)
	if err != nil {
		return err
	}
	summary, err := normalize.Apply(l.Features, normalize.Options{
		Method:       normalize.Method(cfg.Normalize.Method),
		QuantileLow:  cfg.Normalize.QLow,
		QuantileHigh: cfg.Normalize.QHigh,
		Prefix:       cfg.Normalize.Prefix,
		Exclude:      cfg.Normalize.Exclude,
	})
	if err != nil {
		return err
	}
	if err := layer.Write(output, l); err != nil {
		return err
	}

	fmt.Printf("Normalized %d fields across %d features using %s\n", len(summary.Fields), len(l.Features), summary.Method)
	fmt.Printf("Saved to %s\n", output)
	return nil
}

// outputArg returns args[1] when given, else input with suffix inserted
// before the extension. Shapefile inputs produce GeoJSON output.
func outputArg(args []string, input, suffix string) string {
	if len(args) > 1 && args[1] != "" {
		return args[1]
	}
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)
	if strings.EqualFold(ext, ".shp") || ext == "" {
		ext = ".geojson"
	}
	return base + suffix + ext
}
