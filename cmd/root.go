package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/landscore/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "landscore",
	Short: "Vacant land scoring pipeline",
	Long: `Prepares demographic reference zones and scores vacant land parcels from
OpenStreetMap against the zones within walking distance.

Data preparation: assign, rename, merge, average, area, normalize.
Scoring: fetch, score, stats. Results: runs, serve.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
