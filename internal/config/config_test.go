package config_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/shiftledger/internal/config"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeFile(t, t.TempDir(), "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "./data/shiftledger.db", cfg.DBPath)
	assert.Equal(t, 5*time.Minute, cfg.IntegrityInterval())
	assert.Equal(t, 6*time.Hour, cfg.RetentionPoll())
	assert.True(t, cfg.Security.EncryptionEnabled)
	assert.True(t, cfg.Security.AnomalyDetectionEnabled)
	assert.True(t, cfg.Security.AuditLoggingEnabled)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
env: prod
db_path: /var/lib/shiftledger/ledger.db
timezone: Asia/Tokyo
require_location: true
security:
  encryption_enabled: false
`)
	t.Setenv("SHIFTLEDGER_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("SHIFTLEDGER_SECURITY_AUDIT_LOGGING_ENABLED", "false")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, "/var/lib/shiftledger/ledger.db", cfg.DBPath)
	assert.True(t, cfg.RequireLocation)
	assert.False(t, cfg.Security.EncryptionEnabled)
	assert.False(t, cfg.Security.AuditLoggingEnabled)
	assert.True(t, cfg.Security.AnomalyDetectionEnabled)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad env":      "env: staging\n",
		"bad timezone": "timezone: Mars/Olympus\n",
		"negative":     "integrity_interval_minutes: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, t.TempDir(), body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "security:\n  encryption_enabled: true\n")

	got := make(chan *config.Config, 4)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, config.Watch(path, logger, func(c *config.Config) { got <- c }))

	// Give the watcher a moment to register before editing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("security:\n  encryption_enabled: false\n"), 0o600))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-got:
			if !c.Security.EncryptionEnabled {
				return
			}
		case <-timeout:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatch_EmptyPathIsNoop(t *testing.T) {
	assert.NoError(t, config.Watch("", nil, func(*config.Config) {}))
}
