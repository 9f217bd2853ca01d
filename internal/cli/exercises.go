package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/meltforce/heromissions/internal/catalog"
	"github.com/spf13/cobra"
)

var exercisesCmd = &cobra.Command{
	Use:   "exercises",
	Short: "List the exercises in a catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog(cmd)
		if err != nil {
			return err
		}
		return printExercises(cmd, cat.List())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <catalog.yaml>",
	Short: "Check a catalog file and any classifier models it references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minConf, _ := cmd.Flags().GetFloat64("min-confidence")
		cat, err := catalog.Load(args[0], catalog.WithDefaultMinConfidence(minConf))
		if err != nil {
			return fmt.Errorf("invalid catalog: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d exercises OK\n", args[0], cat.Len())
		return nil
	},
}

func printExercises(cmd *cobra.Command, list []*catalog.Exercise) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTAGES\tGOAL\tSTARS\tMIN CONF\tCLASSIFIER")
	for _, ex := range list {
		stars := make([]string, len(ex.StarThresholds))
		for i, s := range ex.StarThresholds {
			stars[i] = fmt.Sprint(s)
		}
		classifier := "-"
		if ex.HasClassifier {
			classifier = string(ex.Features)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.2f\t%s\n",
			ex.ID, strings.Join(ex.Stages, " > "), ex.Goal, strings.Join(stars, ","), ex.MinConfidence, classifier)
	}
	return w.Flush()
}
