// Package service implements the ledger operations the host calls: toggling
// attendance, logging locations, integrity checks, settings and retention.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/secure"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

var (
	ErrLocationRequired   = errors.New("a location fix is required")
	ErrCredentialRequired = errors.New("a verified credential is required")
	ErrInvalidSample      = errors.New("invalid location sample")
	ErrInvalidSettings    = errors.New("invalid security settings")

	// ErrSchedule wraps a failed background run.
	ErrSchedule = errors.New("scheduled task failed")

	// ErrCollectionUnreadable is returned when a stored collection cannot be
	// decoded and overwriting it would destroy data.
	ErrCollectionUnreadable = errors.New("stored collection unreadable")
)

// Records is the secure persistence used for event and log collections.
type Records interface {
	Save(ctx context.Context, key string, v any) error
	Load(ctx context.Context, key string, out any) (secure.LoadResult, error)
}

// AuditTrail is the audit log as seen by the services.
type AuditTrail interface {
	Append(ctx context.Context, category, action string, level types.Level, details any) (types.AuditEntry, error)
	Entries(ctx context.Context) ([]types.AuditEntry, error)
}

// CollectionLock serialises every load-modify-save of the attendance event
// and location log collections.  Services that rewrite either collection
// must share one lock.
type CollectionLock struct {
	mu sync.Mutex
}

func NewCollectionLock() *CollectionLock { return &CollectionLock{} }

func (l *CollectionLock) lock() func() {
	l.mu.Lock()
	return l.mu.Unlock
}

func lockOrNew(l *CollectionLock) *CollectionLock {
	if l == nil {
		return NewCollectionLock()
	}
	return l
}

// currentSettings loads the security settings, logging a store failure.
// Load falls back to the defaults on error, so callers always get usable
// flags.
func currentSettings(ctx context.Context, s *SettingsService, logger *slog.Logger) types.SecuritySettings {
	st, err := s.Load(ctx)
	if err != nil {
		logger.Warn("security settings unavailable, using defaults", "error", err)
	}
	return st
}

// Clock returns the current time.
type Clock func() time.Time

func (c Clock) orDefault() Clock {
	if c == nil {
		return time.Now
	}
	return c
}

func locationOrLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

// loadList reads a JSON array collection.  A missing key yields an empty
// list; an unreadable one yields ErrCollectionUnreadable.
func loadList[T any](ctx context.Context, r Records, key string) ([]T, secure.LoadResult, error) {
	var out []T
	res, err := r.Load(ctx, key, &out)
	if err != nil {
		return nil, res, err
	}
	if res.Outcome == secure.OutcomeFailed {
		return nil, res, errors.Join(ErrCollectionUnreadable, res.Err)
	}
	return out, res, nil
}

func appendAudit(ctx context.Context, a AuditTrail, category, action string, level types.Level, details any) {
	if a == nil {
		return
	}
	// Append reports its own store failures through the logger.
	_, _ = a.Append(ctx, category, action, level, details)
}
