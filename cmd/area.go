package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/landscore/internal/enrich"
	"github.com/sells-group/landscore/internal/layer"
)

var areaCmd = &cobra.Command{
	Use:   "area <input> [output]",
	Short: "Add sequential ids and areas in square meters",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := layer.Read(args[0])
		if err != nil {
			return err
		}
		enrich.AddIDAndArea(l)

		output := outputArg(args, args[0], "_area")
		if err := layer.Write(output, l); err != nil {
			return err
		}
		fmt.Printf("Added id and area to %d features in %s\n", len(l.Features), output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(areaCmd)
}
