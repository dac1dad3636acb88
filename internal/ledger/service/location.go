package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/anomaly"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

const (
	// LocationLogInterval is the minimum spacing between persisted fixes.
	LocationLogInterval = 5 * time.Minute

	// MaxLocationLogs caps the stored collection; oldest entries go first.
	MaxLocationLogs = 1000
)

type LocationRequest struct {
	Sample     types.LocationSample `json:"sample"`
	PlaceLabel string               `json:"area,omitempty"`
}

type LocationResult struct {
	Logged    bool                  `json:"logged"`
	Log       *types.LocationLog    `json:"log,omitempty"`
	Check     anomaly.LocationCheck `json:"check"`
	Anomalies []types.AnomalyReport `json:"anomalies,omitempty"`
}

type LocationService struct {
	kv       store.KV
	records  Records
	audit    AuditTrail
	settings *SettingsService
	logger   *slog.Logger
	now      Clock
	lock     *CollectionLock
}

// NewLocationService creates the service.  lock must be the one shared with
// the other collection writers; nil gives the service a private lock.
func NewLocationService(kv store.KV, r Records, a AuditTrail, settings *SettingsService, lock *CollectionLock, now Clock, logger *slog.Logger) *LocationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationService{
		kv:       kv,
		records:  r,
		audit:    a,
		settings: settings,
		logger:   logger,
		now:      now.orDefault(),
		lock:     lockOrNew(lock),
	}
}

// Logs returns the stored location logs.
func (s *LocationService) Logs(ctx context.Context) ([]types.LocationLog, error) {
	logs, _, err := loadList[types.LocationLog](ctx, s.records, store.KeyLocationLogs)
	return logs, err
}

// Record checks a fix against the previous stored one and persists it if
// LocationLogInterval has passed since the last persisted fix.
func (s *LocationService) Record(ctx context.Context, req LocationRequest) (LocationResult, error) {
	sample := req.Sample
	if err := validateSample(sample); err != nil {
		return LocationResult{}, err
	}
	now := s.now().UTC()
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}

	defer s.lock.lock()()

	logs, err := s.Logs(ctx)
	if err != nil {
		return LocationResult{}, err
	}

	var res LocationResult
	settings := currentSettings(ctx, s.settings, s.logger)
	if settings.AnomalyDetectionEnabled {
		res.Check, res.Anomalies = s.inspect(ctx, logs, sample)
	}

	if !s.due(ctx, now) {
		return res, nil
	}

	entry := types.LocationLog{
		ID:         uuid.NewString(),
		Timestamp:  sample.Timestamp,
		PlaceLabel: strings.TrimSpace(req.PlaceLabel),
		Latitude:   sample.Latitude,
		Longitude:  sample.Longitude,
		Accuracy:   sample.Accuracy,
	}
	if entry.PlaceLabel == "" {
		entry.PlaceLabel = DefaultPlaceLabel
	}

	logs = append(logs, entry)
	if over := len(logs) - MaxLocationLogs; over > 0 {
		logs = logs[over:]
	}
	if err := s.records.Save(ctx, store.KeyLocationLogs, logs); err != nil {
		return res, err
	}
	if err := s.kv.Set(ctx, store.KeyLastLocationLog, now.Format(time.RFC3339Nano)); err != nil {
		s.logger.Warn("last location log time not saved", "error", err)
	}

	res.Logged = true
	res.Log = &entry
	return res, nil
}

func (s *LocationService) inspect(ctx context.Context, logs []types.LocationLog, sample types.LocationSample) (anomaly.LocationCheck, []types.AnomalyReport) {
	var reports []types.AnomalyReport

	if anomaly.IsSpoofed(sample) {
		reports = append(reports, anomaly.SpoofingReport(sample))
		appendAudit(ctx, s.audit, "location", "spoofing_suspected", types.LevelWarning, map[string]float64{
			"accuracy": sample.Accuracy,
		})
	}

	if len(logs) == 0 {
		return anomaly.LocationCheck{}, reports
	}

	last := logs[len(logs)-1]
	prev := types.LocationSample{
		Latitude:  last.Latitude,
		Longitude: last.Longitude,
		Accuracy:  last.Accuracy,
		Timestamp: last.Timestamp,
	}
	check := anomaly.CheckLocation(&prev, &sample, sample.Timestamp.Sub(prev.Timestamp))
	if check.IsAnomalous {
		reports = append(reports, anomaly.SpeedReport(check))
		appendAudit(ctx, s.audit, "location", "speed_anomaly", types.LevelWarning, map[string]any{
			"distance_km": check.DistanceKm,
			"elapsed_ms":  check.Elapsed.Milliseconds(),
			"speed_kmh":   check.SpeedKmh,
		})
	}
	return check, reports
}

// due reports whether enough time has passed since the last persisted fix.
// An unreadable marker counts as due.
func (s *LocationService) due(ctx context.Context, now time.Time) bool {
	raw, ok, err := s.kv.Get(ctx, store.KeyLastLocationLog)
	if err != nil || !ok {
		return true
	}
	last, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return true
	}
	return now.Sub(last) >= LocationLogInterval
}
