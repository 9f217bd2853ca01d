// Package cli implements missionctl, the operator CLI for HeroMissions.
package cli

import (
	"github.com/meltforce/heromissions/internal/catalog"
	"github.com/meltforce/heromissions/internal/mission"
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "missionctl",
	Short: "missionctl: inspect exercises and replay HeroMissions recordings",
	Long: `missionctl works with HeroMissions exercise catalogs and recordings.

Recordings are JSON lines of classifier output, one {"label","confidence"}
object per frame. They can be replayed locally against a catalog, or sent to
a running server. Local replays are kept in a SQLite journal.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("catalog", "", "exercise catalog YAML (default: built-in catalog)")
	rootCmd.PersistentFlags().Float64("min-confidence", mission.DefaultMinConfidence, "default classifier confidence threshold")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(exercisesCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(mcpCmd)
}

// loadCatalog loads the catalog named by --catalog, or the built-in one.
func loadCatalog(cmd *cobra.Command) (*catalog.Catalog, error) {
	path, _ := cmd.Flags().GetString("catalog")
	minConf, _ := cmd.Flags().GetFloat64("min-confidence")
	opts := []catalog.Option{catalog.WithDefaultMinConfidence(minConf)}
	if path == "" {
		return catalog.Default(opts...)
	}
	return catalog.Load(path, opts...)
}
