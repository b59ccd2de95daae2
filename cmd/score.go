package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/landscore/internal/dispatch"
	"github.com/sells-group/landscore/internal/pipeline"
	"github.com/sells-group/landscore/internal/scoring"
	"github.com/sells-group/landscore/internal/store"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score vacant land parcels against reference zones",
	Long: `Fetches (or loads from cache) vacant land parcels, buffers each parcel by
the walking distance, averages the normalized indicators of every reference
zone the buffer touches, and writes the scored parcels as GeoJSON.

The output carries the reference layer's CRS. Nothing is written when the
run fails.

Examples:
  score
  score --reference zones.geojson --output scored.geojson --workers 4
  score --walking-minutes 10 --save`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("bbox", "", "south,west,north,east (default from config)")
	f.String("reference", "", "normalized reference zones (default from config)")
	f.String("output", "", "scored GeoJSON path (default from config)")
	f.String("scheme", "", "scoring scheme YAML (default: built-in categories)")
	f.Int("workers", 0, "parallel workers (0 = config, then CPUs - 1)")
	f.Float64("walking-minutes", 0, "walking time budget (overrides config)")
	f.Float64("meters-per-minute", 0, "walking speed (overrides config)")
	f.Bool("save", false, "persist the run and scores to the store")
	f.Bool("allow-partial", false, "write successful chunks when some chunks fail")
	f.Bool("no-progress", false, "disable the progress bar")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applyScoreOverrides(cmd)
	if err := cfg.Validate("score"); err != nil {
		return err
	}

	bbox, err := bboxFlag(cmd)
	if err != nil {
		return err
	}
	scheme, err := loadScheme()
	if err != nil {
		return err
	}
	engine := scoring.NewEngine(scheme, scoring.Options{
		WalkingMinutes:  cfg.Scoring.WalkingMinutes,
		MetersPerMinute: cfg.Scoring.MetersPerMinute,
	})

	save, _ := cmd.Flags().GetBool("save")
	if cfg.Scoring.OutputPath == "" && !save {
		return eris.New("score: nothing to write; set scoring.output_path, --output or --save")
	}
	var (
		st   store.Store
		opts []pipeline.Option
	)
	if save || cfg.Overpass.Cache == "store" {
		st, err = initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
	}
	if save {
		opts = append(opts, pipeline.WithStore(st))
	}

	fetcher, closeCache, err := newFetcher(ctx, st)
	if err != nil {
		return err
	}
	defer closeCache()

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	allowPartial, _ := cmd.Flags().GetBool("allow-partial")

	var bar *progressbar.ProgressBar
	params := pipeline.Params{
		BBox:           bbox,
		TimeoutSecs:    cfg.Overpass.TimeoutSecs,
		ReferencePath:  cfg.Reference.Path,
		RequiredFields: cfg.Reference.RequiredFields,
		ParcelsPath:    cfg.Overpass.ParcelsPath,
		OutputPath:     cfg.Scoring.OutputPath,
		Workers:        cfg.Scoring.Workers,
		AllowPartial:   allowPartial,
	}
	if !noProgress {
		params.OnParcels = func(n int) {
			bar = newProgressBar(os.Stderr, n)
		}
		params.OnChunkDone = func(r dispatch.ChunkResult) {
			if bar != nil {
				_ = bar.Add(r.Chunk.Len())
			}
		}
	}

	zap.L().Info("scoring parcels",
		zap.String("bbox", bbox.String()),
		zap.String("reference", params.ReferencePath),
		zap.Float64("radius_m", engine.Options().Radius()),
	)

	res, err := pipeline.New(fetcher, engine, opts...).Run(ctx, params)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	printResult(os.Stdout, params.OutputPath, res)
	return nil
}

// printResult reports a finished run. The saved-file line only appears when
// an output path was written.
func printResult(w io.Writer, outputPath string, res *pipeline.Result) {
	if outputPath != "" {
		fmt.Fprintf(w, "Successfully saved scored lands to %s\n", outputPath)
	}
	fmt.Fprintf(w, "Total features: %d\n", len(res.Scored))
	if res.Partial != nil {
		fmt.Fprintf(w, "Warning: %s\n", res.Partial.Error())
	}
	if res.RunID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", res.RunID)
	}
	printSummary(w, res.Summary)
	fmt.Fprintf(w, "\nTotal processing time: %.2f seconds\n", res.Elapsed.Seconds())
}

func applyScoreOverrides(cmd *cobra.Command) {
	f := cmd.Flags()
	if v, _ := f.GetString("reference"); v != "" {
		cfg.Reference.Path = v
	}
	if v, _ := f.GetString("output"); v != "" {
		cfg.Scoring.OutputPath = v
	}
	if v, _ := f.GetString("scheme"); v != "" {
		cfg.Scoring.SchemePath = v
	}
	if v, _ := f.GetInt("workers"); v > 0 {
		cfg.Scoring.Workers = v
	}
	if v, _ := f.GetFloat64("walking-minutes"); v > 0 {
		cfg.Scoring.WalkingMinutes = v
	}
	if v, _ := f.GetFloat64("meters-per-minute"); v > 0 {
		cfg.Scoring.MetersPerMinute = v
	}
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Scoring parcels"),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}

func printSummary(w io.Writer, s scoring.Summary) {
	_, _ = fmt.Fprintln(w, "\nScore Statistics:")
	_, _ = fmt.Fprintf(w, "Parcels: %d\n", s.Count)
	_, _ = fmt.Fprintf(w, "Average Score: %.2f\n", s.Mean)
	_, _ = fmt.Fprintf(w, "Min Score: %.2f\n", s.Min)
	_, _ = fmt.Fprintf(w, "Max Score: %.2f\n", s.Max)
}
