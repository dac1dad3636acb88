package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store"
)

// writeTimes is implemented by byte stores that track per-key write times.
type writeTimes interface {
	UpdatedAt(ctx context.Context, key string) (time.Time, bool, error)
}

// statusKeys are the keys whose last write time status reports.
var statusKeys = []string{
	store.KeyAttendanceRecords,
	store.KeyLocationLogs,
	store.KeyAuditLogs,
	store.KeySecuritySettings,
}

func newStatusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show attendance status and stored data counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closeFn, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			ctx := ctxOf(cmd)

			st, err := l.Attendance.Status(ctx)
			if err != nil {
				return err
			}
			events, err := l.Attendance.Events(ctx)
			if err != nil {
				return err
			}
			logs, err := l.Location.Logs(ctx)
			if err != nil {
				return err
			}
			entries, err := l.Audit.Entries(ctx)
			if err != nil {
				return err
			}
			last, err := l.Retention.LastCleanup(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			state := "checked out"
			if st.CheckedIn {
				state = paint(w, colorGreen, "checked in")
			}
			fmt.Fprintf(w, "Status:          %s\n", state)
			fmt.Fprintf(w, "Worked today:    %dh %02dm\n", st.TodayMinutes/60, st.TodayMinutes%60)
			if n := len(events); n > 0 {
				lastEv := events[n-1]
				fmt.Fprintf(w, "Last event:      %s at %s\n", lastEv.Kind, when(lastEv.Timestamp, o.loc))
			}
			fmt.Fprintf(w, "Events stored:   %d\n", len(events))
			fmt.Fprintf(w, "Location logs:   %d\n", len(logs))
			fmt.Fprintf(w, "Audit entries:   %d\n", len(entries))
			if last != nil {
				fmt.Fprintf(w, "Last cleanup:    %s\n", when(*last, o.loc))
			} else {
				fmt.Fprintf(w, "Last cleanup:    never\n")
			}

			if wt, ok := l.KV.(writeTimes); ok {
				return printWriteTimes(ctx, w, wt, o.loc)
			}
			return nil
		},
	}
}

func printWriteTimes(ctx context.Context, w io.Writer, wt writeTimes, loc *time.Location) error {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Last written:")
	for _, key := range statusKeys {
		at, ok, err := wt.UpdatedAt(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			at = time.Time{}
		}
		fmt.Fprintf(w, "  %-30s %s\n", key, when(at, loc))
	}
	return nil
}
