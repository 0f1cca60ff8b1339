package arg

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tempo-bot/internal/utils"
)

var preregistrationsCmd = &cobra.Command{
	Use:   "preregistrations",
	Short: "List pending preregistrations",
	RunE: withEnv(func(cmd *cobra.Command, e *env) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tREGISTERED BY\tREGISTERED AT")
		for _, p := range e.queue.Entries() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.DisplayName, p.RegisteredByName, utils.FormatTimestamp(p.RegisteredAt, e.loc))
		}
		return w.Flush()
	}),
}

var cleanPreregistrationsCmd = &cobra.Command{
	Use:   "clean-preregistrations",
	Short: "Drop every pending preregistration",
	RunE: withEnv(func(cmd *cobra.Command, e *env) error {
		n := e.queue.CleanExpired()
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d preregistrations\n", n)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(preregistrationsCmd)
	rootCmd.AddCommand(cleanPreregistrationsCmd)
}
