package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

func newAuditCmd(o *options) *cobra.Command {
	var (
		limit int
		level string
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the audit trail, oldest first",
		Example: `  shiftledgerctl audit --limit 20
  shiftledgerctl audit --level error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if level != "" && !types.Level(level).Valid() {
				return fmt.Errorf("unknown level %q (want info, success, warning or error)", level)
			}
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}

			l, closeFn, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := l.Audit.Entries(ctxOf(cmd))
			if err != nil {
				return err
			}

			var shown []types.AuditEntry
			for _, e := range entries {
				if level == "" || e.Level == types.Level(level) {
					shown = append(shown, e)
				}
			}
			if limit > 0 && limit < len(shown) {
				shown = shown[len(shown)-limit:]
			}

			w := cmd.OutOrStdout()
			if len(shown) == 0 {
				fmt.Fprintln(w, "No audit entries.")
				return nil
			}
			fmt.Fprintf(w, "%-19s %-8s %-12s %-22s %s\n", "Time", "Level", "Category", "Action", "Details")
			rule(w, 90)
			for _, e := range shown {
				fmt.Fprintf(w, "%-19s %s %-12s %-22s %s\n",
					e.Timestamp.In(o.loc).Format("2006-01-02 15:04:05"),
					paint(w, levelColor(e.Level), fmt.Sprintf("%-8s", e.Level)),
					truncate(e.Category, 12),
					truncate(e.Action, 22),
					truncate(string(e.Details), 60),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "show only the newest N entries (0 = all)")
	cmd.Flags().StringVar(&level, "level", "", "show only entries at this level")
	return cmd
}
