package arg

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tempo-bot/internal/utils"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List tracked users and their accumulated time",
	RunE: withEnv(func(cmd *cobra.Command, e *env) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATE\tPAUSES\tTOTAL\tLINKED TO")
		for _, u := range e.tracker.Users() {
			linked := "-"
			if u.LinkedTo != nil {
				linked = u.LinkedTo.AdminName
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				u.ID, u.DisplayName, u.State, u.PauseCount, utils.FormatDuration(e.tracker.TotalTime(u.ID)), linked)
		}
		return w.Flush()
	}),
}

var resetTimesCmd = &cobra.Command{
	Use:   "reset-times",
	Short: "Reset accumulated time of every tracked user",
	RunE: withEnv(func(cmd *cobra.Command, e *env) error {
		n := e.tracker.ResetAll()
		fmt.Fprintf(cmd.OutOrStdout(), "Reset time of %d users\n", n)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(resetTimesCmd)
}
