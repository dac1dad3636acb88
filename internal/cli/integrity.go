package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

// errIntegrityFailed makes the process exit non-zero when a check fails.
var errIntegrityFailed = errors.New("integrity check failed")

func newIntegrityCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "integrity",
		Short: "Run the integrity check and print each result",
		Long: `Checks that the installation secret is present, that every stored
collection decodes and matches its checksum, and that the audit trail is not
empty.  Exits non-zero when any check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closeFn, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := l.Integrity.Run(ctxOf(cmd))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, c := range report.Checks {
				fmt.Fprintf(w, "%s  %-28s %s\n",
					paint(w, checkColor(c.Status), fmt.Sprintf("%-7s", c.Status)),
					c.Name,
					c.Message,
				)
			}
			rule(w, 60)
			fmt.Fprintf(w, "Overall: %s\n", paint(w, checkColor(report.Overall), string(report.Overall)))

			if report.Overall == types.CheckFail {
				return errIntegrityFailed
			}
			return nil
		},
	}
}
