package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/anomaly"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/checksum"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/secure"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

// DefaultPlaceLabel is used when the host supplies no place label.
const DefaultPlaceLabel = "unknown"

// AttendancePolicy holds the host-configured preconditions for a toggle.
type AttendancePolicy struct {
	RequireLocation           bool
	RequireVerifiedCredential bool
}

// AttendanceConfig holds the parameters for NewAttendanceService.
type AttendanceConfig struct {
	Policy AttendancePolicy

	// Location decides local hour-of-day and "today".  Defaults to time.Local.
	Location *time.Location

	Now Clock

	// Lock is shared with every other writer of the stored collections.
	// A nil Lock gives the service a private one.
	Lock *CollectionLock
}

// ToggleRequest is the host's intent to check in or out.  The direction is
// never supplied; it follows from the current status.
type ToggleRequest struct {
	Location   *types.LocationSample `json:"location,omitempty"`
	PlaceLabel string                `json:"area,omitempty"`
	Credential *types.Credential     `json:"credential,omitempty"`
}

type ToggleResult struct {
	Event     types.AttendanceEvent `json:"event"`
	Status    types.Status          `json:"status"`
	Anomalies []types.AnomalyReport `json:"anomalies,omitempty"`
}

type AttendanceService struct {
	kv       store.KV
	records  Records
	audit    AuditTrail
	settings *SettingsService
	logger   *slog.Logger
	cfg      AttendanceConfig
}

func NewAttendanceService(kv store.KV, r Records, a AuditTrail, settings *SettingsService, cfg AttendanceConfig, logger *slog.Logger) *AttendanceService {
	cfg.Now = cfg.Now.orDefault()
	cfg.Location = locationOrLocal(cfg.Location)
	cfg.Lock = lockOrNew(cfg.Lock)
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceService{
		kv:       kv,
		records:  r,
		audit:    a,
		settings: settings,
		logger:   logger,
		cfg:      cfg,
	}
}

// Events returns the stored attendance events in stored order.
func (s *AttendanceService) Events(ctx context.Context) ([]types.AttendanceEvent, error) {
	events, _, err := loadList[types.AttendanceEvent](ctx, s.records, store.KeyAttendanceRecords)
	return events, err
}

// Status derives the current status from the stored events.
func (s *AttendanceService) Status(ctx context.Context) (types.Status, error) {
	events, err := s.Events(ctx)
	if err != nil {
		return types.Status{}, err
	}
	return DeriveStatus(events, s.cfg.Now(), s.cfg.Location), nil
}

// Toggle records the opposite of the current status.
func (s *AttendanceService) Toggle(ctx context.Context, req ToggleRequest) (ToggleResult, error) {
	if req.Location == nil && s.cfg.Policy.RequireLocation {
		appendAudit(ctx, s.audit, "attendance", "failed_no_location", types.LevelWarning, nil)
		return ToggleResult{}, ErrLocationRequired
	}
	if req.Credential == nil && s.cfg.Policy.RequireVerifiedCredential {
		appendAudit(ctx, s.audit, "attendance", "failed_not_verified", types.LevelWarning, nil)
		return ToggleResult{}, ErrCredentialRequired
	}
	if req.Location != nil {
		if err := validateSample(*req.Location); err != nil {
			return ToggleResult{}, err
		}
	}

	defer s.cfg.Lock.lock()()

	events, err := s.Events(ctx)
	if err != nil {
		return ToggleResult{}, err
	}

	now := s.cfg.Now().UTC()
	status := DeriveStatus(events, now, s.cfg.Location)
	kind := types.CheckIn
	if status.CheckedIn {
		kind = types.CheckOut
	}

	settings := currentSettings(ctx, s.settings, s.logger)

	var reports []types.AnomalyReport
	if req.Location != nil && settings.AnomalyDetectionEnabled && anomaly.IsSpoofed(*req.Location) {
		reports = append(reports, anomaly.SpoofingReport(*req.Location))
		appendAudit(ctx, s.audit, "attendance", "suspicious_location", types.LevelWarning, map[string]any{
			"accuracy": req.Location.Accuracy,
			"kind":     kind,
		})
	}

	ev := types.AttendanceEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		Timestamp:  now,
		Location:   req.Location,
		PlaceLabel: strings.TrimSpace(req.PlaceLabel),
		Credential: credentialInfo(req.Credential),
	}
	if ev.PlaceLabel == "" {
		ev.PlaceLabel = DefaultPlaceLabel
	}
	ev.Fingerprint = EventFingerprint(ev)

	events = append(events, ev)
	if err := s.records.Save(ctx, store.KeyAttendanceRecords, events); err != nil {
		appendAudit(ctx, s.audit, "attendance", "save_failed", types.LevelError, err.Error())
		return ToggleResult{}, err
	}

	appendAudit(ctx, s.audit, "attendance", string(kind), types.LevelSuccess, map[string]any{
		"id":       ev.ID,
		"area":     ev.PlaceLabel,
		"verified": ev.Credential.Verified,
	})

	return ToggleResult{
		Event:     ev,
		Status:    DeriveStatus(events, now, s.cfg.Location),
		Anomalies: reports,
	}, nil
}

// Anomalies runs the attendance rules over the stored events.  It returns
// nothing when anomaly detection is disabled.
func (s *AttendanceService) Anomalies(ctx context.Context) ([]types.AnomalyReport, error) {
	settings := currentSettings(ctx, s.settings, s.logger)
	if !settings.AnomalyDetectionEnabled {
		return nil, nil
	}

	events, err := s.Events(ctx)
	if err != nil {
		return nil, err
	}

	reports := anomaly.Detect(events, s.cfg.Now(), s.cfg.Location)
	if len(reports) > 0 {
		appendAudit(ctx, s.audit, "attendance", "anomaly_detected", types.LevelWarning, map[string]int{"count": len(reports)})
	}
	return reports, nil
}

// MigrateLegacy moves the plaintext collections written by older clients
// into the secure keys.  A collection is migrated only while its secure key
// is still absent.
func (s *AttendanceService) MigrateLegacy(ctx context.Context) error {
	type move struct {
		from, to, name string
	}
	moves := []move{
		{store.KeyLegacyAttendanceRecords, store.KeyAttendanceRecords, "attendance_records"},
		{store.KeyLegacyLocationLogs, store.KeyLocationLogs, "location_logs"},
	}

	defer s.cfg.Lock.lock()()

	for _, m := range moves {
		if err := s.migrate(ctx, m.from, m.to, m.name); err != nil {
			appendAudit(ctx, s.audit, "migration", "secure_storage", types.LevelError, err.Error())
			return err
		}
	}
	return nil
}

func (s *AttendanceService) migrate(ctx context.Context, from, to, name string) error {
	raw, ok, err := s.kv.Get(ctx, from)
	if err != nil || !ok || raw == "" {
		return err
	}
	if _, exists, err := s.kv.Get(ctx, to); err != nil || exists {
		return err
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return fmt.Errorf("%w: %s: %v", secure.ErrSerialization, from, err)
	}

	if err := s.records.Save(ctx, to, items); err != nil {
		return err
	}
	if err := s.kv.Remove(ctx, from); err != nil {
		s.logger.Warn("legacy collection not removed", "key", from, "error", err)
	}

	appendAudit(ctx, s.audit, "migration", name, types.LevelSuccess, map[string]int{"count": len(items)})
	return nil
}

// DeriveStatus computes the status from the events that fall on the local
// calendar day of now: checked in when the last of them is a check-in, and
// the rounded total of closed check-in/check-out intervals.
func DeriveStatus(events []types.AttendanceEvent, now time.Time, loc *time.Location) types.Status {
	loc = locationOrLocal(loc)
	y, m, d := now.In(loc).Date()

	var today []types.AttendanceEvent
	for _, e := range events {
		ey, em, ed := e.Timestamp.In(loc).Date()
		if ey == y && em == m && ed == d {
			today = append(today, e)
		}
	}
	sort.SliceStable(today, func(i, j int) bool { return today[i].Timestamp.Before(today[j].Timestamp) })

	var (
		total time.Duration
		open  *time.Time
	)
	for i := range today {
		e := today[i]
		switch e.Kind {
		case types.CheckIn:
			ts := e.Timestamp
			open = &ts
		case types.CheckOut:
			if open != nil {
				total += e.Timestamp.Sub(*open)
				open = nil
			}
		}
	}

	st := types.Status{TodayMinutes: int(total.Round(time.Minute).Minutes())}
	if n := len(today); n > 0 {
		st.CheckedIn = today[n-1].Kind == types.CheckIn
	}
	return st
}

// EventFingerprint is the hex fingerprint over the semantic fields of e.
func EventFingerprint(e types.AttendanceEvent) string {
	fp, err := checksum.Of(struct {
		Kind         types.EventKind       `json:"kind"`
		Timestamp    time.Time             `json:"timestamp"`
		Location     *types.LocationSample `json:"location"`
		CredentialID string                `json:"credential_id"`
	}{e.Kind, e.Timestamp, e.Location, e.Credential.SubjectID})
	if err != nil {
		return "hash_error"
	}
	return fp
}

func credentialInfo(c *types.Credential) types.CredentialInfo {
	if c == nil {
		return types.CredentialInfo{Verified: false, Reason: "not_authenticated"}
	}
	at := c.VerifiedAt
	return types.CredentialInfo{
		Verified:          true,
		SubjectID:         c.SubjectID,
		VerificationLevel: c.VerificationLevel,
		Nullifier:         c.Nullifier,
		VerifiedAt:        &at,
	}
}

func validateSample(s types.LocationSample) error {
	if s.Latitude < -90 || s.Latitude > 90 || s.Longitude < -180 || s.Longitude > 180 || s.Accuracy < 0 {
		return ErrInvalidSample
	}
	return nil
}
