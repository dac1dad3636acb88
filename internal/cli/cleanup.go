package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd(o *options) *cobra.Command {
	var (
		force  bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove events and location logs older than the retention cutoff",
		Long: `Runs the retention cleanup if it is due (7 days after the previous one).
Use --force to run it regardless, or --dry-run to see what would be removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if force && dryRun {
				return fmt.Errorf("--force and --dry-run are mutually exclusive")
			}

			l, closeFn, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			ctx := ctxOf(cmd)
			w := cmd.OutOrStdout()

			if dryRun {
				st, err := l.Retention.Status(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Cutoff:         %s\n", st.Cutoff.In(o.loc).Format("2006-01-02"))
				fmt.Fprintf(w, "Events:         %d stored, %d would be removed\n", st.CurrentEvents, st.OldEvents)
				fmt.Fprintf(w, "Location logs:  %d stored, %d would be removed\n", st.CurrentLogs, st.OldLogs)
				fmt.Fprintf(w, "Next cleanup:   %s\n", when(st.NextCleanup, o.loc))
				return nil
			}

			if !force {
				ran, res, err := l.Retention.RunIfDue(ctx)
				if err != nil {
					return err
				}
				if !ran {
					fmt.Fprintln(w, "Cleanup not due yet; use --force to run it anyway.")
					return nil
				}
				fmt.Fprintf(w, "Removed %d events and %d location logs older than %s.\n",
					res.RemovedEvents, res.RemovedLogs, res.Cutoff.In(o.loc).Format("2006-01-02"))
				return nil
			}

			res, err := l.Retention.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Removed %d events and %d location logs older than %s.\n",
				res.RemovedEvents, res.RemovedLogs, res.Cutoff.In(o.loc).Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "run even if the last cleanup was less than 7 days ago")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only report what would be removed")
	return cmd
}
