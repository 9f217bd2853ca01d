package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/meltforce/heromissions/internal/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the local replay journal",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journaled missions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		j, err := journal.Open(dir)
		if err != nil {
			return err
		}
		defer j.Close()

		entries, err := j.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "journal is empty")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tEXERCISE\tREPS\tSTARS\tGOAL\tDURATION\tSOURCE")
		for _, e := range entries {
			src := e.Source
			if len(src) > 12 {
				src = src[:12]
			}
			fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%t\t%s\t%s\n",
				e.StartedAt.Local().Format("2006-01-02 15:04"), e.Exercise, e.Repetitions, e.Goal,
				e.Stars, e.GoalReached, e.Duration().Round(time.Second), src)
		}
		return w.Flush()
	},
}

func init() {
	journalListCmd.Flags().String("dir", "", "journal directory")
	journalListCmd.Flags().Int("limit", 20, "maximum entries to show (0 for all)")
	journalListCmd.Flags().Bool("json", false, "print entries as JSON")
	journalListCmd.MarkFlagRequired("dir")

	journalCmd.AddCommand(journalListCmd)
}
