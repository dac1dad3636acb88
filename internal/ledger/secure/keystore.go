package secure

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store"
)

const (
	secretLength   = 32
	secretAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// KeyStore owns the installation secret.  The secret is created on first use,
// persisted under store.KeySecret and never rotated.
type KeyStore struct {
	kv     store.KV
	random io.Reader

	mu     sync.Mutex
	secret string
}

func NewKeyStore(kv store.KV) *KeyStore {
	return &KeyStore{kv: kv, random: rand.Reader}
}

// Secret returns the installation secret, creating it if the store has none.
// Concurrent first calls within a process share one generated secret.
func (k *KeyStore) Secret(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.secret != "" {
		return k.secret, nil
	}

	saved, ok, err := k.kv.Get(ctx, store.KeySecret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSecretUnavailable, err)
	}
	if ok && saved != "" {
		k.secret = saved
		return saved, nil
	}

	fresh, err := generateSecret(k.random)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSecretUnavailable, err)
	}
	if err := k.kv.Set(ctx, store.KeySecret, fresh); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSecretUnavailable, err)
	}

	k.secret = fresh
	return fresh, nil
}

// Present reports whether a secret is persisted, without creating one.
func (k *KeyStore) Present(ctx context.Context) (bool, error) {
	v, ok, err := k.kv.Get(ctx, store.KeySecret)
	if err != nil {
		return false, err
	}
	return ok && v != "", nil
}

// generateSecret draws secretLength characters uniformly from secretAlphabet.
func generateSecret(r io.Reader) (string, error) {
	// Largest multiple of the alphabet size that fits in a byte; bytes at or
	// above it are rejected to keep the draw uniform.
	limit := byte(256 - 256%len(secretAlphabet))

	out := make([]byte, 0, secretLength)
	buf := make([]byte, secretLength)
	for len(out) < secretLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, secretAlphabet[int(b)%len(secretAlphabet)])
			if len(out) == secretLength {
				break
			}
		}
	}
	return string(out), nil
}
