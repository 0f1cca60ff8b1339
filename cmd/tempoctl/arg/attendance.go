package arg

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show attendance counters of every admin",
	RunE: withEnv(func(cmd *cobra.Command, e *env) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTODAY\tWEEK\tBONUS\tTOTAL")
		for _, r := range e.ledger.Records() {
			info := e.ledger.Info(r.ID)
			fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d/%d\t%d\t%d\n",
				r.ID, r.DisplayName, info.Daily, e.ledger.DailyCap(), info.Weekly, e.ledger.WeeklyCap(), r.ManualWeeklyBonus, info.Total)
		}
		return w.Flush()
	}),
}

var resetAttendanceCmd = &cobra.Command{
	Use:   "reset-attendance",
	Short: "Delete all attendance records",
	RunE: withEnv(func(cmd *cobra.Command, e *env) error {
		n := e.ledger.ResetAll()
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d attendance records\n", n)
		return nil
	}),
}

var resetWeeklyBonusCmd = &cobra.Command{
	Use:   "reset-weekly-bonus",
	Short: "Clear manual weekly attendance bonuses",
	RunE: withEnv(func(cmd *cobra.Command, e *env) error {
		n := e.ledger.ResetWeeklyBonus()
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared weekly bonus of %d admins\n", n)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	rootCmd.AddCommand(resetAttendanceCmd)
	rootCmd.AddCommand(resetWeeklyBonusCmd)
}
