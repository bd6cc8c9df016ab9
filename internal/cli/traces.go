package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newTracesCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "traces",
		Short: "List recent calls recorded in the trace database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.kit.RecentTraces(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "TIME\tOPERATION\tBACKEND\tMODEL\tSTATUS\tATTEMPTS\tDURATION\tERROR")
			for _, r := range records {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					r.Timestamp.Local().Format(time.DateTime),
					r.Operation, r.Backend, r.Model, r.Status, r.Attempts,
					time.Duration(r.DurationMs)*time.Millisecond, r.ErrorType)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	return cmd
}
