package secure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/checksum"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

// Auditor is the slice of the audit trail the record store writes to.
type Auditor interface {
	Append(ctx context.Context, category, action string, level types.Level, details any) (types.AuditEntry, error)
}

// Secrets yields the installation secret.
type Secrets interface {
	Secret(ctx context.Context) (string, error)
}

// Outcome tags how a Load was satisfied.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeRecovered Outcome = "recovered"
	OutcomeMissing   Outcome = "missing"
	OutcomeFailed    Outcome = "failed"
)

// LoadResult describes a Load.  Err carries the reason for OutcomeFailed, or
// ErrIntegrityMismatch when the value loaded but its checksum did not match.
type LoadResult struct {
	Outcome Outcome
	Err     error
}

// Found reports whether out was populated.
func (r LoadResult) Found() bool {
	return r.Outcome == OutcomeOK || r.Outcome == OutcomeRecovered
}

// Mismatch reports whether the stored checksum disagreed with the payload.
func (r LoadResult) Mismatch() bool {
	return errors.Is(r.Err, ErrIntegrityMismatch)
}

// strategy turns the raw stored string into serialized plaintext.
type strategy struct {
	outcome Outcome
	decode  func(secret, raw string) (string, error)
}

// RecordStore persists named collections encrypted, with a sibling checksum
// key holding the fingerprint of the plaintext.
type RecordStore struct {
	kv      store.KV
	secrets Secrets
	cipher  Cipher
	audit   Auditor
	logger  *slog.Logger

	encrypt    atomic.Bool
	strategies []strategy
}

func NewRecordStore(kv store.KV, secrets Secrets, c Cipher, a Auditor, logger *slog.Logger) *RecordStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RecordStore{
		kv:      kv,
		secrets: secrets,
		cipher:  c,
		audit:   a,
		logger:  logger,
	}
	s.encrypt.Store(true)
	s.strategies = []strategy{
		{outcome: OutcomeOK, decode: c.Decrypt},
		{outcome: OutcomeRecovered, decode: func(_, raw string) (string, error) { return raw, nil }},
	}
	return s
}

// SetEncryptionEnabled switches between encrypted and plaintext writes.
// Reads handle both forms regardless.
func (s *RecordStore) SetEncryptionEnabled(enabled bool) {
	s.encrypt.Store(enabled)
}

// Save serializes v and writes it under key with its checksum.  A cipher
// failure falls back to a plaintext write with no checksum.  The returned
// error is non-nil only when nothing could be written or the secret is
// unavailable.
func (s *RecordStore) Save(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", ErrSerialization, key, err)
		s.record(ctx, "secure_save", types.LevelError, map[string]string{"key": key, "error": err.Error()})
		return err
	}
	plaintext := string(b)
	sum := checksum.Fingerprint(plaintext)

	if !s.encrypt.Load() {
		if err := s.write(ctx, key, plaintext, sum); err != nil {
			return err
		}
		s.record(ctx, "plain_save", types.LevelInfo, map[string]any{"key": key, "data_size": len(plaintext)})
		return nil
	}

	secret, err := s.secrets.Secret(ctx)
	if err != nil {
		return err
	}

	ciphertext, err := s.cipher.Encrypt(secret, plaintext)
	if err != nil {
		s.record(ctx, "secure_save", types.LevelWarning, map[string]string{
			"key":      key,
			"error":    err.Error(),
			"fallback": "plaintext",
		})
		if err := s.kv.Set(ctx, key, plaintext); err != nil {
			s.record(ctx, "secure_save", types.LevelError, map[string]string{"key": key, "error": err.Error()})
			return fmt.Errorf("secure: save %s: %w", key, err)
		}
		// A checksum from an earlier encrypted write no longer applies.
		if err := s.kv.Remove(ctx, key+store.ChecksumSuffix); err != nil {
			s.logger.Warn("stale checksum not removed", "key", key, "error", err)
		}
		return nil
	}

	if err := s.write(ctx, key, ciphertext, sum); err != nil {
		return err
	}
	s.record(ctx, "secure_save", types.LevelSuccess, map[string]any{"key": key, "data_size": len(plaintext)})
	return nil
}

func (s *RecordStore) write(ctx context.Context, key, payload, sum string) error {
	if err := s.kv.Set(ctx, key, payload); err != nil {
		s.record(ctx, "secure_save", types.LevelError, map[string]string{"key": key, "error": err.Error()})
		return fmt.Errorf("secure: save %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key+store.ChecksumSuffix, sum); err != nil {
		s.record(ctx, "secure_save", types.LevelError, map[string]string{"key": key, "error": err.Error()})
		return fmt.Errorf("secure: save checksum %s: %w", key, err)
	}
	return nil
}

// Load reads key into out, trying each strategy in order: decrypt, then
// plaintext JSON.  The returned error is non-nil only when the installation
// secret is unavailable; every other failure is reported in the result.
func (s *RecordStore) Load(ctx context.Context, key string, out any) (LoadResult, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.record(ctx, "secure_load", types.LevelError, map[string]string{"key": key, "error": err.Error()})
		return LoadResult{Outcome: OutcomeFailed, Err: err}, nil
	}
	if !ok || raw == "" {
		return LoadResult{Outcome: OutcomeMissing}, nil
	}

	secret, err := s.secrets.Secret(ctx)
	if err != nil {
		return LoadResult{}, err
	}

	var errs []error
	for _, st := range s.strategies {
		plaintext, err := st.decode(secret, raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := json.Unmarshal([]byte(plaintext), out); err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrSerialization, err))
			continue
		}
		return s.verify(ctx, key, st.outcome, plaintext), nil
	}

	err = errors.Join(errs...)
	s.record(ctx, "secure_load", types.LevelError, map[string]string{"key": key, "error": err.Error()})
	return LoadResult{Outcome: OutcomeFailed, Err: err}, nil
}

// verify compares the stored checksum, if any, with the loaded plaintext.  A
// mismatch is logged and reported but the value is still returned.
func (s *RecordStore) verify(ctx context.Context, key string, outcome Outcome, plaintext string) LoadResult {
	res := LoadResult{Outcome: outcome}

	stored, ok, err := s.kv.Get(ctx, key+store.ChecksumSuffix)
	if err != nil {
		s.logger.Warn("checksum unreadable", "key", key, "error", err)
	}
	if ok && stored != "" && stored != checksum.Fingerprint(plaintext) {
		res.Err = fmt.Errorf("%w: %s", ErrIntegrityMismatch, key)
		s.record(ctx, "integrity_violation", types.LevelWarning, map[string]string{"key": key})
	}

	details := map[string]any{"key": key, "data_size": len(plaintext)}
	switch {
	case outcome == OutcomeOK:
		s.record(ctx, "secure_load", types.LevelSuccess, details)
	case s.encrypt.Load():
		details["fallback"] = "plaintext"
		s.record(ctx, "secure_load", types.LevelWarning, details)
	default:
		s.record(ctx, "plain_load", types.LevelInfo, details)
	}
	return res
}

func (s *RecordStore) record(ctx context.Context, action string, level types.Level, details any) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Append(ctx, "data", action, level, details); err != nil {
		s.logger.Error("audit append failed", "action", action, "error", err)
	}
}
