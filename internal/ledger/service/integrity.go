package service

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/secure"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

// SecretProbe reports whether the installation secret is persisted.
type SecretProbe interface {
	Present(ctx context.Context) (bool, error)
}

// IntegrityService verifies that the stored state is readable and consistent.
type IntegrityService struct {
	keys    SecretProbe
	records Records
	audit   AuditTrail
	now     Clock

	mu        sync.RWMutex
	last      *types.IntegrityReport
	listeners []func(types.IntegrityReport)
}

func NewIntegrityService(keys SecretProbe, r Records, a AuditTrail, now Clock) *IntegrityService {
	return &IntegrityService{keys: keys, records: r, audit: a, now: now.orDefault()}
}

// OnReport registers fn to receive every completed report.
func (s *IntegrityService) OnReport(fn func(types.IntegrityReport)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Last returns the most recent report, if any run has completed.
func (s *IntegrityService) Last() (types.IntegrityReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return types.IntegrityReport{}, false
	}
	return *s.last, true
}

// Run performs every check and records the overall result.  It is safe to
// call at any time; each call is independent.
func (s *IntegrityService) Run(ctx context.Context) (types.IntegrityReport, error) {
	report := types.IntegrityReport{Timestamp: s.now().UTC()}

	report.Checks = append(report.Checks, s.checkSecret(ctx))
	for _, key := range []string{store.KeyAttendanceRecords, store.KeyLocationLogs} {
		c, err := s.checkCollection(ctx, key)
		if err != nil {
			return report, err
		}
		report.Checks = append(report.Checks, c)
	}
	report.Checks = append(report.Checks, s.checkAudit(ctx))

	report.Overall = Overall(report.Checks)
	appendAudit(ctx, s.audit, "security", "integrity_check", auditLevel(report.Overall), map[string]any{
		"overall": report.Overall,
		"checks":  len(report.Checks),
	})

	s.mu.Lock()
	s.last = &report
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(report)
	}
	return report, nil
}

func (s *IntegrityService) checkSecret(ctx context.Context) types.IntegrityCheck {
	c := types.IntegrityCheck{Name: "installation_secret"}
	ok, err := s.keys.Present(ctx)
	switch {
	case err != nil:
		c.Status, c.Message = types.CheckFail, fmt.Sprintf("secret lookup failed: %v", err)
	case !ok:
		c.Status, c.Message = types.CheckFail, "installation secret not found"
	default:
		c.Status, c.Message = types.CheckPass, "installation secret present"
	}
	return c
}

// checkCollection returns an error only when the secret is unavailable.
func (s *IntegrityService) checkCollection(ctx context.Context, key string) (types.IntegrityCheck, error) {
	c := types.IntegrityCheck{Name: key}

	var v any
	res, err := s.records.Load(ctx, key, &v)
	if err != nil {
		return c, err
	}

	switch {
	case res.Outcome == secure.OutcomeFailed:
		c.Status, c.Message = types.CheckWarning, fmt.Sprintf("collection unreadable: %v", res.Err)
	case res.Mismatch():
		c.Status, c.Message = types.CheckWarning, "checksum mismatch"
	case res.Outcome == secure.OutcomeMissing:
		c.Status, c.Message = types.CheckPass, "no data stored"
	default:
		c.Status, c.Message = types.CheckPass, "checksum verified"
	}
	return c, nil
}

func (s *IntegrityService) checkAudit(ctx context.Context) types.IntegrityCheck {
	c := types.IntegrityCheck{Name: "audit_trail"}
	entries, err := s.audit.Entries(ctx)
	switch {
	case err != nil:
		c.Status, c.Message = types.CheckFail, fmt.Sprintf("audit trail unreadable: %v", err)
	case len(entries) == 0:
		c.Status, c.Message = types.CheckWarning, "audit trail is empty"
	default:
		c.Status, c.Message = types.CheckPass, fmt.Sprintf("%d audit entries recorded", len(entries))
	}
	return c
}

// Overall folds individual results: any fail wins, then any warning.
func Overall(checks []types.IntegrityCheck) types.CheckStatus {
	out := types.CheckPass
	for _, c := range checks {
		switch c.Status {
		case types.CheckFail:
			return types.CheckFail
		case types.CheckWarning:
			out = types.CheckWarning
		}
	}
	return out
}

func auditLevel(s types.CheckStatus) types.Level {
	switch s {
	case types.CheckFail:
		return types.LevelError
	case types.CheckWarning:
		return types.LevelWarning
	default:
		return types.LevelSuccess
	}
}
