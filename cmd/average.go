package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/landscore/internal/enrich"
)

var averageCmd = &cobra.Command{
	Use:   "average <table> [output]",
	Short: "Average a value column per group",
	Long:  "Writes the mean of --value for each distinct --group, sorted by group.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		group, _ := cmd.Flags().GetString("group")
		value, _ := cmd.Flags().GetString("value")

		t, err := enrich.ReadTable(args[0], cfg.Enrich.Encoding)
		if err != nil {
			return err
		}
		means, err := enrich.Averages(t, group, value)
		if err != nil {
			return err
		}

		output := outputArg(args, args[0], "_averages")
		if err := enrich.WriteAverages(output, means, group, value); err != nil {
			return err
		}
		fmt.Printf("Wrote %d group averages to %s\n", len(means), output)
		return nil
	},
}

func init() {
	averageCmd.Flags().String("group", "Name", "grouping column")
	averageCmd.Flags().String("value", "Value", "numeric column to average")
	rootCmd.AddCommand(averageCmd)
}
