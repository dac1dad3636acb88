package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/audit"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/secure"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/service"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store/memory"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable clock shared by every component of a harness.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	kv        *memory.Store
	clock     *fakeClock
	keys      *secure.KeyStore
	trail     *audit.Trail
	records   *secure.RecordStore
	settings  *service.SettingsService
	attend    *service.AttendanceService
	location  *service.LocationService
	integrity *service.IntegrityService
	retention *service.RetentionManager
}

func newHarness(t *testing.T, policy service.AttendancePolicy) *harness {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)}
	logger := silentLogger()
	kv := memory.New()

	keys := secure.NewKeyStore(kv)
	trail := audit.New(kv, logger, audit.Config{Now: clock.Now})
	records := secure.NewRecordStore(kv, keys, secure.XORCipher{}, trail, logger)
	settings := service.NewSettingsService(kv, trail, logger)
	settings.OnChange(func(s types.SecuritySettings) {
		records.SetEncryptionEnabled(s.EncryptionEnabled)
		trail.SetRoutineEnabled(s.AuditLoggingEnabled)
	})

	collections := service.NewCollectionLock()

	return &harness{
		kv:       kv,
		clock:    clock,
		keys:     keys,
		trail:    trail,
		records:  records,
		settings: settings,
		attend: service.NewAttendanceService(kv, records, trail, settings, service.AttendanceConfig{
			Policy:   policy,
			Location: time.UTC,
			Now:      clock.Now,
			Lock:     collections,
		}, logger),
		location:  service.NewLocationService(kv, records, trail, settings, collections, clock.Now, logger),
		integrity: service.NewIntegrityService(keys, records, trail, clock.Now),
		retention: service.NewRetentionManager(kv, records, trail, service.RetentionConfig{
			Location: time.UTC,
			Now:      clock.Now,
			Lock:     collections,
		}, logger),
	}
}

// actions returns "category/action" for every entry at level.
func (h *harness) actions(t *testing.T, level types.Level) []string {
	t.Helper()
	entries, err := h.trail.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	var out []string
	for _, e := range entries {
		if e.Level == level {
			out = append(out, e.Category+"/"+e.Action)
		}
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
