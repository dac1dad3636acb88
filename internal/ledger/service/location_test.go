package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/service"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

func TestLocationRecord_ThrottledToFiveMinutes(t *testing.T) {
	h := newHarness(t, service.AttendancePolicy{})
	ctx := context.Background()
	sample := types.LocationSample{Latitude: 35.68, Longitude: 139.76, Accuracy: 20}

	res, err := h.location.Record(ctx, service.LocationRequest{Sample: sample, PlaceLabel: "Chiyoda"})
	require.NoError(t, err)
	assert.True(t, res.Logged)
	require.NotNil(t, res.Log)
	assert.Equal(t, "Chiyoda", res.Log.PlaceLabel)

	h.clock.Advance(4 * time.Minute)
	res, err = h.location.Record(ctx, service.LocationRequest{Sample: sample})
	require.NoError(t, err)
	assert.False(t, res.Logged)

	h.clock.Advance(time.Minute)
	res, err = h.location.Record(ctx, service.LocationRequest{Sample: sample})
	require.NoError(t, err)
	assert.True(t, res.Logged)

	logs, err := h.location.Logs(ctx)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestLocationRecord_SpeedAnomaly(t *testing.T) {
	h := newHarness(t, service.AttendancePolicy{})
	ctx := context.Background()

	t0 := h.clock.Now()
	_, err := h.location.Record(ctx, service.LocationRequest{Sample: types.LocationSample{
		Latitude: 35.68, Longitude: 139.76, Accuracy: 10, Timestamp: t0,
	}})
	require.NoError(t, err)

	// Tokyo to Osaka in ten minutes.
	h.clock.Advance(10 * time.Minute)
	res, err := h.location.Record(ctx, service.LocationRequest{Sample: types.LocationSample{
		Latitude: 34.69, Longitude: 135.50, Accuracy: 10, Timestamp: t0.Add(10 * time.Minute),
	}})
	require.NoError(t, err)
	assert.True(t, res.Check.IsAnomalous)
	assert.Greater(t, res.Check.SpeedKmh, 300.0)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, types.AnomalySpeed, res.Anomalies[0].Kind)
	assert.Contains(t, h.actions(t, types.LevelWarning), "location/speed_anomaly")
}

func TestLocationRecord_Spoofing(t *testing.T) {
	h := newHarness(t, service.AttendancePolicy{})
	res, err := h.location.Record(context.Background(), service.LocationRequest{Sample: types.LocationSample{
		Latitude: 35.68, Longitude: 139.76, Accuracy: 0,
	}})
	require.NoError(t, err)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, types.AnomalySpoofing, res.Anomalies[0].Kind)
	assert.Contains(t, h.actions(t, types.LevelWarning), "location/spoofing_suspected")
}

func TestLocationRecord_CapsCollection(t *testing.T) {
	h := newHarness(t, service.AttendancePolicy{})
	ctx := context.Background()

	for i := 0; i < service.MaxLocationLogs+5; i++ {
		_, err := h.location.Record(ctx, service.LocationRequest{Sample: types.LocationSample{
			Latitude: 35.68, Longitude: 139.76, Accuracy: 15,
		}})
		require.NoError(t, err)
		h.clock.Advance(service.LocationLogInterval)
	}

	logs, err := h.location.Logs(ctx)
	require.NoError(t, err)
	assert.Len(t, logs, service.MaxLocationLogs)
}

func TestLocationRecord_InvalidSample(t *testing.T) {
	h := newHarness(t, service.AttendancePolicy{})
	_, err := h.location.Record(context.Background(), service.LocationRequest{Sample: types.LocationSample{
		Latitude: 10, Longitude: 200,
	}})
	assert.ErrorIs(t, err, service.ErrInvalidSample)
}
