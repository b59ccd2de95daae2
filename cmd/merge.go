package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/landscore/internal/enrich"
	"github.com/sells-group/landscore/internal/layer"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <zones> <table-folder> [output]",
	Short: "Merge indicator tables into the zone layer",
	Long: `Adds one property per .csv or .xlsx table in a folder, named after the
file. The first column is matched against the first join key
(enrich.join_keys) whose values it contains; the second column is the value.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetString("encoding"); v != "" {
			cfg.Enrich.Encoding = v
		}
		if err := cfg.Validate("merge"); err != nil {
			return err
		}

		l, err := layer.Read(args[0])
		if err != nil {
			return err
		}
		reports, err := enrich.MergeFolder(l, args[1], enrich.MergeOptions{
			JoinKeys: cfg.Enrich.JoinKeys,
			Charset:  cfg.Enrich.Encoding,
		})
		if err != nil {
			return err
		}

		output := outputArg(nil, args[0], "_enriched")
		if len(args) > 2 {
			output = args[2]
		}
		if err := layer.Write(output, l); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "FILE\tFIELD\tKEY\tMATCHED\tSKIPPED")
		for _, r := range reports {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.File, r.Field, r.MatchKey, r.Matched, r.Skipped)
		}
		_ = w.Flush()
		fmt.Printf("Saved to %s\n", output)
		return nil
	},
}

func init() {
	mergeCmd.Flags().String("encoding", "", "table charset, e.g. windows-1252 (default from config)")
	rootCmd.AddCommand(mergeCmd)
}
