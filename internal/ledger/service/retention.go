package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

const (
	// CleanupInterval is the minimum wall-clock spacing between cleanups.
	CleanupInterval = 7 * 24 * time.Hour

	// RetentionMonths is how many whole calendar months before the current
	// one are kept.
	RetentionMonths = 3
)

// removalPruner is implemented by byte stores that keep a removal history.
type removalPruner interface {
	PruneRemovalsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ShouldClean reports whether a cleanup is due.
func ShouldClean(now time.Time, last *time.Time) bool {
	return last == nil || now.Sub(*last) >= CleanupInterval
}

// Cutoff returns midnight on the first day of the month RetentionMonths
// before now, in loc.
func Cutoff(now time.Time, loc *time.Location) time.Time {
	local := now.In(locationOrLocal(loc))
	return time.Date(local.Year(), local.Month()-RetentionMonths, 1, 0, 0, 0, 0, local.Location())
}

// CleanResult is the outcome of Clean.  Status is re-derived from the kept
// events since pruning can remove the event it was based on.
type CleanResult struct {
	Cutoff        time.Time               `json:"cutoff"`
	KeptEvents    []types.AttendanceEvent `json:"-"`
	KeptLogs      []types.LocationLog     `json:"-"`
	RemovedEvents int                     `json:"removed_events"`
	RemovedLogs   int                     `json:"removed_logs"`
	Status        types.Status            `json:"status"`
}

// Clean keeps the items timestamped at or after the cutoff.
func Clean(events []types.AttendanceEvent, logs []types.LocationLog, now time.Time, loc *time.Location) CleanResult {
	cutoff := Cutoff(now, loc)
	res := CleanResult{
		Cutoff:     cutoff,
		KeptEvents: make([]types.AttendanceEvent, 0, len(events)),
		KeptLogs:   make([]types.LocationLog, 0, len(logs)),
	}

	for _, e := range events {
		if !e.Timestamp.Before(cutoff) {
			res.KeptEvents = append(res.KeptEvents, e)
		}
	}
	for _, l := range logs {
		if !l.Timestamp.Before(cutoff) {
			res.KeptLogs = append(res.KeptLogs, l)
		}
	}

	res.RemovedEvents = len(events) - len(res.KeptEvents)
	res.RemovedLogs = len(logs) - len(res.KeptLogs)
	res.Status = DeriveStatus(res.KeptEvents, now, loc)
	return res
}

// RetentionConfig holds the parameters for NewRetentionManager.
type RetentionConfig struct {
	Location *time.Location
	Now      Clock

	// Lock is shared with the attendance and location services.
	Lock *CollectionLock
}

type RetentionManager struct {
	kv      store.KV
	records Records
	audit   AuditTrail
	logger  *slog.Logger
	loc     *time.Location
	now     Clock
	lock    *CollectionLock
}

func NewRetentionManager(kv store.KV, r Records, a AuditTrail, cfg RetentionConfig, logger *slog.Logger) *RetentionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionManager{
		kv:      kv,
		records: r,
		audit:   a,
		logger:  logger,
		loc:     locationOrLocal(cfg.Location),
		now:     cfg.Now.orDefault(),
		lock:    lockOrNew(cfg.Lock),
	}
}

// LastCleanup returns the recorded time of the last cleanup.  An unparsable
// value is treated as never.
func (m *RetentionManager) LastCleanup(ctx context.Context) (*time.Time, error) {
	raw, ok, err := m.kv.Get(ctx, store.KeyLastCleanup)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		m.logger.Warn("last cleanup time unreadable", "value", raw, "error", err)
		return nil, nil
	}
	return &t, nil
}

// Run prunes both collections and records the cleanup time, whether or not
// anything was removed.
func (m *RetentionManager) Run(ctx context.Context) (CleanResult, error) {
	res, err := m.run(ctx)
	if err != nil {
		appendAudit(ctx, m.audit, "maintenance", "auto_cleanup", types.LevelError, err.Error())
	}
	return res, err
}

func (m *RetentionManager) run(ctx context.Context) (CleanResult, error) {
	defer m.lock.lock()()
	now := m.now()

	events, _, err := loadList[types.AttendanceEvent](ctx, m.records, store.KeyAttendanceRecords)
	if err != nil {
		return CleanResult{}, err
	}
	logs, _, err := loadList[types.LocationLog](ctx, m.records, store.KeyLocationLogs)
	if err != nil {
		return CleanResult{}, err
	}

	res := Clean(events, logs, now, m.loc)

	if res.RemovedEvents > 0 || res.RemovedLogs > 0 {
		if err := m.records.Save(ctx, store.KeyAttendanceRecords, res.KeptEvents); err != nil {
			return res, err
		}
		if err := m.records.Save(ctx, store.KeyLocationLogs, res.KeptLogs); err != nil {
			return res, err
		}
		appendAudit(ctx, m.audit, "maintenance", "auto_cleanup", types.LevelSuccess, map[string]any{
			"records_deleted":   res.RemovedEvents,
			"logs_deleted":      res.RemovedLogs,
			"cutoff":            res.Cutoff.UTC().Format(time.RFC3339),
			"remaining_records": len(res.KeptEvents),
			"remaining_logs":    len(res.KeptLogs),
		})
	} else {
		appendAudit(ctx, m.audit, "maintenance", "auto_cleanup", types.LevelInfo, "no_data_to_delete")
	}

	if p, ok := m.kv.(removalPruner); ok {
		if n, err := p.PruneRemovalsOlderThan(ctx, res.Cutoff); err != nil {
			m.logger.Warn("removal history not pruned", "error", err)
		} else if n > 0 {
			m.logger.Info("removal history pruned", "rows", n)
		}
	}

	if err := m.kv.Set(ctx, store.KeyLastCleanup, now.UTC().Format(time.RFC3339Nano)); err != nil {
		return res, fmt.Errorf("retention: record cleanup time: %w", err)
	}
	return res, nil
}

// RunIfDue runs a cleanup when ShouldClean says so.  It reports whether a
// cleanup ran.
func (m *RetentionManager) RunIfDue(ctx context.Context) (bool, CleanResult, error) {
	last, err := m.LastCleanup(ctx)
	if err != nil {
		return false, CleanResult{}, err
	}
	if !ShouldClean(m.now(), last) {
		return false, CleanResult{}, nil
	}
	res, err := m.Run(ctx)
	return true, res, err
}

// Status reports what the next cleanup would remove and when it is due.
func (m *RetentionManager) Status(ctx context.Context) (types.RetentionStatus, error) {
	now := m.now()

	events, _, err := loadList[types.AttendanceEvent](ctx, m.records, store.KeyAttendanceRecords)
	if err != nil {
		return types.RetentionStatus{}, err
	}
	logs, _, err := loadList[types.LocationLog](ctx, m.records, store.KeyLocationLogs)
	if err != nil {
		return types.RetentionStatus{}, err
	}
	last, err := m.LastCleanup(ctx)
	if err != nil {
		return types.RetentionStatus{}, err
	}

	res := Clean(events, logs, now, m.loc)
	st := types.RetentionStatus{
		Cutoff:        res.Cutoff,
		CurrentEvents: len(events),
		CurrentLogs:   len(logs),
		OldEvents:     res.RemovedEvents,
		OldLogs:       res.RemovedLogs,
		LastCleanup:   last,
		NextCleanup:   now,
	}
	if last != nil {
		st.NextCleanup = last.Add(CleanupInterval)
	}
	return st, nil
}
