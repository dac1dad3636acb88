package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

// SettingsService owns the persisted security feature flags.  The flags are
// stored in plaintext so they can be read before the secret exists.
type SettingsService struct {
	kv       store.KV
	audit    AuditTrail
	logger   *slog.Logger
	validate *validator.Validate

	mu        sync.Mutex
	listeners []func(types.SecuritySettings)
}

func NewSettingsService(kv store.KV, a AuditTrail, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{
		kv:       kv,
		audit:    a,
		logger:   logger,
		validate: validator.New(),
	}
}

// OnChange registers fn to be called with the new settings after every
// successful Update.
func (s *SettingsService) OnChange(fn func(types.SecuritySettings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load returns the stored settings.  Missing or corrupt data yields the
// defaults.
func (s *SettingsService) Load(ctx context.Context) (types.SecuritySettings, error) {
	raw, ok, err := s.kv.Get(ctx, store.KeySecuritySettings)
	if err != nil {
		return types.DefaultSecuritySettings(), err
	}
	if !ok || raw == "" {
		return types.DefaultSecuritySettings(), nil
	}

	// Start from the defaults so keys absent from older payloads keep them.
	out := types.DefaultSecuritySettings()
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Warn("security settings unreadable, using defaults", "error", err)
		return types.DefaultSecuritySettings(), nil
	}
	return out, nil
}

// Update merges patch into the stored settings and persists the result.
func (s *SettingsService) Update(ctx context.Context, patch types.SettingsPatch) (types.SecuritySettings, error) {
	if err := s.validate.Struct(patch); err != nil {
		return types.SecuritySettings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.Load(ctx)
	if err != nil {
		return cur, err
	}

	var changed []string
	if patch.EncryptionEnabled != nil {
		cur.EncryptionEnabled = *patch.EncryptionEnabled
		changed = append(changed, "encryption_enabled")
	}
	if patch.AnomalyDetectionEnabled != nil {
		cur.AnomalyDetectionEnabled = *patch.AnomalyDetectionEnabled
		changed = append(changed, "anomaly_detection_enabled")
	}
	if patch.AuditLoggingEnabled != nil {
		cur.AuditLoggingEnabled = *patch.AuditLoggingEnabled
		changed = append(changed, "audit_logging_enabled")
	}
	if patch.IntegrityCheckIntervalMs != nil {
		cur.IntegrityCheckIntervalMs = *patch.IntegrityCheckIntervalMs
		changed = append(changed, "integrity_check_interval_ms")
	}

	b, err := json.Marshal(cur)
	if err != nil {
		return cur, fmt.Errorf("settings: marshal: %w", err)
	}
	if err := s.kv.Set(ctx, store.KeySecuritySettings, string(b)); err != nil {
		return cur, fmt.Errorf("settings: persist: %w", err)
	}

	// Listeners run before the entry below so it honours the new flags.
	for _, fn := range s.listeners {
		fn(cur)
	}
	appendAudit(ctx, s.audit, "security", "settings_updated", types.LevelInfo, changed)
	return cur, nil
}

// Apply pushes the stored settings to every listener.  Called once at
// startup so components match what is persisted.
func (s *SettingsService) Apply(ctx context.Context) (types.SecuritySettings, error) {
	cur, err := s.Load(ctx)
	if err != nil {
		return cur, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fn := range s.listeners {
		fn(cur)
	}
	return cur, nil
}
