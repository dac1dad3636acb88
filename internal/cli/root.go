// Package cli implements shiftledgerctl, the operator tool for inspecting and
// maintaining a ledger database.
package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/shiftledger/internal/config"
	"github.com/BrandonDHaskell/shiftledger/internal/db"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/service"
)

type options struct {
	configPath string
	dbPath     string

	// loc is set by open from the configured timezone.
	loc *time.Location
}

// NewRootCmd builds the full command tree.  Each call returns independent
// state, so tests can build as many as they like.
func NewRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "shiftledgerctl",
		Short: "Inspect and maintain a shiftledger database",
		Long: `shiftledgerctl works directly on the ledger database used by
shiftledger-server.  It can show the current attendance status, read the
audit trail, run integrity checks and anomaly detection, trigger a retention
cleanup and change the security settings.

Examples:
  shiftledgerctl status
  shiftledgerctl audit --limit 20 --level warning
  shiftledgerctl integrity
  shiftledgerctl cleanup --force
  shiftledgerctl settings set --encryption=false`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SuggestionsMinimumDistance = 2

	root.PersistentFlags().StringVar(&o.configPath, "config", "", "config file (default: ./configs/config.yaml or ./config.yaml)")
	root.PersistentFlags().StringVar(&o.dbPath, "db", "", "database path (overrides db_path from config)")

	root.AddCommand(
		newStatusCmd(o),
		newAuditCmd(o),
		newIntegrityCmd(o),
		newAnomaliesCmd(o),
		newCleanupCmd(o),
		newSettingsCmd(o),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// open loads the configuration and opens the ledger it points at.  Warnings
// and errors the ledger logs go to the command's stderr.
func (o *options) open(cmd *cobra.Command) (*ledger.Ledger, func(), error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	o.loc = loc

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	return ledger.Open(ctxOf(cmd), db.Config{Path: cfg.DBPath, Env: cfg.Env}, ledger.Options{
		Logger:   logger,
		Location: loc,
		Policy: service.AttendancePolicy{
			RequireLocation:           cfg.RequireLocation,
			RequireVerifiedCredential: cfg.RequireVerifiedCredential,
		},
		AuditContext: map[string]string{"tool": "shiftledgerctl"},
	})
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
