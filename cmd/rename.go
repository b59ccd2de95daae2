package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/landscore/internal/enrich"
	"github.com/sells-group/landscore/internal/layer"
)

var renameCmd = &cobra.Command{
	Use:   "rename <input> [output]",
	Short: "Rename and drop zone properties",
	Long: `Applies the configured rename map (rename.fields, "old=new" pairs) and drop
list. With no configuration, Name becomes 2011Zones, local_auth becomes
CouncilArea and the census bookkeeping columns are dropped.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("rename"); err != nil {
			return err
		}
		opts, err := renameOptions()
		if err != nil {
			return err
		}

		l, err := layer.Read(args[0])
		if err != nil {
			return err
		}
		res := enrich.Rename(l, opts)

		output := outputArg(args, args[0], "_removed")
		if err := layer.Write(output, l); err != nil {
			return err
		}

		fmt.Printf("Renamed: %v\n", res.Renamed)
		fmt.Printf("Dropped: %v\n", res.Dropped)
		if len(res.Missing) > 0 {
			fmt.Printf("Not present: %v\n", res.Missing)
		}
		fmt.Printf("Saved to %s\n", output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renameCmd)
}

func renameOptions() (enrich.RenameOptions, error) {
	opts := enrich.DefaultRename()
	if len(cfg.Rename.Fields) > 0 {
		m, err := cfg.Rename.Mapping()
		if err != nil {
			return enrich.RenameOptions{}, err
		}
		opts.Fields = m
	}
	if len(cfg.Rename.Drop) > 0 {
		opts.Drop = cfg.Rename.Drop
	}
	return opts, nil
}
