// Package audit keeps the bounded, append-only trail of security events.
//
// The trail is stored as a plaintext JSON array under store.KeyAuditLogs so
// that it stays readable when encryption is broken.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

// MaxEntries is the trail capacity; older entries are evicted first.
const MaxEntries = 500

var ErrInvalidLevel = errors.New("invalid audit level")

// Config holds the optional parameters for New.
type Config struct {
	// Now overrides the clock.  Defaults to time.Now.
	Now func() time.Time

	// Context is copied onto every entry (host name, process, version).
	Context map[string]string
}

type Trail struct {
	kv      store.KV
	logger  *slog.Logger
	now     func() time.Time
	context map[string]string

	// Serialises read-modify-write of the persisted array within this
	// process.  Other processes sharing the store may still interleave.
	mu sync.Mutex

	// routine controls whether info/success entries are recorded.
	routine atomic.Bool
}

func New(kv store.KV, logger *slog.Logger, cfg Config) *Trail {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Trail{
		kv:      kv,
		logger:  logger,
		now:     now,
		context: cfg.Context,
	}
	t.routine.Store(true)
	return t
}

// SetRoutineEnabled toggles recording of info and success entries.
// Warnings and errors are always recorded.
func (t *Trail) SetRoutineEnabled(enabled bool) {
	t.routine.Store(enabled)
}

// Append records one entry and returns it.  A suppressed routine entry
// returns the zero AuditEntry and a nil error.
func (t *Trail) Append(ctx context.Context, category, action string, level types.Level, details any) (types.AuditEntry, error) {
	if !level.Valid() {
		return types.AuditEntry{}, fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}

	if level == types.LevelWarning || level == types.LevelError {
		t.echo(category, action, level, details)
	} else if !t.routine.Load() {
		return types.AuditEntry{}, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	entry := types.AuditEntry{
		ID:        id.String(),
		Timestamp: t.now().UTC(),
		Category:  category,
		Action:    action,
		Level:     level,
		Details:   encodeDetails(details),
		Context:   t.context,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := t.load(ctx)
	if err != nil {
		return entry, err
	}

	entries = append(entries, entry)
	if over := len(entries) - MaxEntries; over > 0 {
		entries = entries[over:]
	}

	b, err := json.Marshal(entries)
	if err != nil {
		return entry, fmt.Errorf("audit: marshal: %w", err)
	}
	if err := t.kv.Set(ctx, store.KeyAuditLogs, string(b)); err != nil {
		t.logger.Error("audit trail not persisted", "category", category, "action", action, "error", err)
		return entry, fmt.Errorf("audit: persist: %w", err)
	}
	return entry, nil
}

// Entries returns the trail in insertion order.
func (t *Trail) Entries(ctx context.Context) ([]types.AuditEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

// load reads the persisted array.  Corrupt data yields an empty trail; only a
// failing byte store is reported.
func (t *Trail) load(ctx context.Context) ([]types.AuditEntry, error) {
	raw, ok, err := t.kv.Get(ctx, store.KeyAuditLogs)
	if err != nil {
		return nil, fmt.Errorf("audit: load: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var entries []types.AuditEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		t.logger.Warn("audit trail unreadable, starting empty", "error", err)
		return nil, nil
	}
	return entries, nil
}

func (t *Trail) echo(category, action string, level types.Level, details any) {
	slogLevel := slog.LevelWarn
	if level == types.LevelError {
		slogLevel = slog.LevelError
	}
	t.logger.Log(context.Background(), slogLevel, "security event",
		"category", category,
		"action", action,
		"details", details,
	)
}

func encodeDetails(details any) json.RawMessage {
	if details == nil {
		return nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		b, _ = json.Marshal(fmt.Sprint(details))
	}
	return b
}
