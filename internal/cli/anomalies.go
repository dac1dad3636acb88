package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAnomaliesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "anomalies",
		Short: "Run attendance anomaly detection over the last 30 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closeFn, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			reports, err := l.Attendance.Anomalies(ctxOf(cmd))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(reports) == 0 {
				fmt.Fprintln(w, "No anomalies found.")
				return nil
			}
			for _, r := range reports {
				fmt.Fprintf(w, "%s  %-14s %s\n",
					paint(w, severityColor(r.Severity), fmt.Sprintf("%-6s", r.Severity)),
					r.Kind,
					r.Message,
				)
			}
			fmt.Fprintf(w, "\n%d anomalies\n", len(reports))
			return nil
		},
	}
}
