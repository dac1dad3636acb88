package ledger_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/shiftledger/internal/db"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/service"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/store/memory"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestLedger_InitCreatesSecretAndMigrates(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, store.KeyLegacyLocationLogs, `[{"id":"1","timestamp":"2026-06-01T00:00:00Z"}]`))

	l := ledger.New(kv, ledger.Options{Logger: quiet(), Location: time.UTC})
	require.NoError(t, l.Init(ctx))

	ok, err := l.Keys.Present(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	logs, err := l.Location.Logs(ctx)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestLedger_SecurityCheck(t *testing.T) {
	now := time.Date(2026, 6, 15, 3, 0, 0, 0, time.UTC)
	l := ledger.New(memory.New(), ledger.Options{
		Logger:   quiet(),
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
	ctx := context.Background()
	require.NoError(t, l.Init(ctx))

	_, err := l.Attendance.Toggle(ctx, service.ToggleRequest{})
	require.NoError(t, err)

	report, anomalies, err := l.SecurityCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.CheckPass, report.Overall)
	require.Len(t, anomalies, 1)
	assert.Equal(t, types.AnomalyUnusualTime, anomalies[0].Kind)
}

func TestLedger_SurvivesRestartOnSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	open := func() (*ledger.Ledger, func()) {
		l, closeFn, err := ledger.Open(ctx, db.Config{Path: path}, ledger.Options{Logger: quiet(), Location: time.UTC})
		require.NoError(t, err)
		return l, closeFn
	}

	l, closeFn := open()
	res, err := l.Attendance.Toggle(ctx, service.ToggleRequest{PlaceLabel: "HQ"})
	require.NoError(t, err)
	secret, err := l.Keys.Secret(ctx)
	require.NoError(t, err)
	closeFn()

	l, closeFn = open()
	defer closeFn()

	again, err := l.Keys.Secret(ctx)
	require.NoError(t, err)
	assert.Equal(t, secret, again)

	events, err := l.Attendance.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, res.Event.ID, events[0].ID)
	assert.Equal(t, res.Event.Fingerprint, service.EventFingerprint(events[0]))
}
