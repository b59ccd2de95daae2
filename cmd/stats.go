package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/landscore/internal/layer"
	"github.com/sells-group/landscore/internal/scoring"
)

var statsCmd = &cobra.Command{
	Use:   "stats [scored]",
	Short: "Print min, mean and max overallScore of a scored layer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Scoring.OutputPath
		if len(args) > 0 {
			path = args[0]
		}
		l, err := layer.Read(path)
		if err != nil {
			return err
		}
		printSummary(os.Stdout, scoring.SummarizeLayer(l))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
