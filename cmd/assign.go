package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/landscore/internal/layer"
	"github.com/sells-group/landscore/internal/spatialjoin"
)

var assignCmd = &cobra.Command{
	Use:   "assign <zones> <councils> [output]",
	Short: "Assign each data zone the council it lies in",
	Long: `Copies a council attribute (local_auth by default) onto every data zone.
Zones inside a council take its value; the rest take the council nearest
to their centroid. An existing value is kept as <attribute>_original.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		attr, _ := cmd.Flags().GetString("attribute")

		zones, err := layer.Read(args[0])
		if err != nil {
			return err
		}
		councils, err := layer.Read(args[1])
		if err != nil {
			return err
		}

		res, err := spatialjoin.Assign(zones, councils, spatialjoin.Options{Attribute: attr})
		if err != nil {
			return err
		}

		output := outputArg(nil, args[0], "_with_"+attrOrDefault(attr))
		if len(args) > 2 {
			output = args[2]
		}
		if err := layer.Write(output, zones); err != nil {
			return err
		}

		fmt.Printf("Within a council: %d\n", res.Within)
		fmt.Printf("Nearest council: %d\n", res.Nearest)
		if res.Unassigned > 0 {
			fmt.Printf("Unassigned: %d\n", res.Unassigned)
		}
		fmt.Printf("Saved to %s\n", output)
		return nil
	},
}

func init() {
	assignCmd.Flags().String("attribute", "local_auth", "council attribute to copy")
	rootCmd.AddCommand(assignCmd)
}

func attrOrDefault(attr string) string {
	if attr == "" {
		return "local_auth"
	}
	return attr
}
