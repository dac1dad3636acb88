// Package ledger wires the secure ledger components over a single byte store.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/audit"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/secure"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/service"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

// Options configures New.  The zero value is usable.
type Options struct {
	Logger *slog.Logger

	// Location decides local hour-of-day and calendar days.  Defaults to
	// time.Local.
	Location *time.Location

	Policy service.AttendancePolicy

	// Now overrides the clock.  Defaults to time.Now.
	Now func() time.Time

	// AuditContext is attached to every audit entry.
	AuditContext map[string]string

	// Cipher defaults to secure.XORCipher.
	Cipher secure.Cipher
}

type Ledger struct {
	KV         store.KV
	Keys       *secure.KeyStore
	Records    *secure.RecordStore
	Audit      *audit.Trail
	Settings   *service.SettingsService
	Attendance *service.AttendanceService
	Location   *service.LocationService
	Integrity  *service.IntegrityService
	Retention  *service.RetentionManager
}

func New(kv store.KV, opts Options) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cipher := opts.Cipher
	if cipher == nil {
		cipher = secure.XORCipher{}
	}

	keys := secure.NewKeyStore(kv)
	trail := audit.New(kv, logger, audit.Config{Now: now, Context: opts.AuditContext})
	records := secure.NewRecordStore(kv, keys, cipher, trail, logger)
	settings := service.NewSettingsService(kv, trail, logger)
	collections := service.NewCollectionLock()
	settings.OnChange(func(s types.SecuritySettings) {
		records.SetEncryptionEnabled(s.EncryptionEnabled)
		trail.SetRoutineEnabled(s.AuditLoggingEnabled)
	})

	return &Ledger{
		KV:       kv,
		Keys:     keys,
		Records:  records,
		Audit:    trail,
		Settings: settings,
		Attendance: service.NewAttendanceService(kv, records, trail, settings, service.AttendanceConfig{
			Policy:   opts.Policy,
			Location: opts.Location,
			Now:      now,
			Lock:     collections,
		}, logger),
		Location:  service.NewLocationService(kv, records, trail, settings, collections, now, logger),
		Integrity: service.NewIntegrityService(keys, records, trail, now),
		Retention: service.NewRetentionManager(kv, records, trail, service.RetentionConfig{
			Location: opts.Location,
			Now:      now,
			Lock:     collections,
		}, logger),
	}
}

// Init applies the stored settings, makes sure the installation secret
// exists and migrates plaintext collections left by older clients.
func (l *Ledger) Init(ctx context.Context) error {
	if _, err := l.Settings.Apply(ctx); err != nil {
		return err
	}
	if _, err := l.Keys.Secret(ctx); err != nil {
		return err
	}
	return l.Attendance.MigrateLegacy(ctx)
}

// SecurityCheck runs the integrity check followed by attendance anomaly
// detection.  Both parts run even if the first fails.
func (l *Ledger) SecurityCheck(ctx context.Context) (types.IntegrityReport, []types.AnomalyReport, error) {
	report, ierr := l.Integrity.Run(ctx)
	anomalies, aerr := l.Attendance.Anomalies(ctx)
	return report, anomalies, errors.Join(ierr, aerr)
}
