package anomaly_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/anomaly"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/geo"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

var base = time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)

func ev(id string, kind types.EventKind, at time.Time) types.AttendanceEvent {
	return types.AttendanceEvent{ID: id, Kind: kind, Timestamp: at}
}

func kinds(reports []types.AnomalyReport) []types.AnomalyKind {
	out := make([]types.AnomalyKind, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.Kind)
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════
// Location
// ═══════════════════════════════════════════════════════════════════════════

func oneKmApart() (*types.LocationSample, *types.LocationSample) {
	deg := 1 / (geo.EarthRadiusKm * math.Pi / 180)
	return &types.LocationSample{Latitude: 35, Longitude: 139, Accuracy: 15},
		&types.LocationSample{Latitude: 35 + deg, Longitude: 139, Accuracy: 15}
}

func TestCheckLocation_FastIsAnomalous(t *testing.T) {
	a, b := oneKmApart()
	res := anomaly.CheckLocation(a, b, time.Second)
	assert.True(t, res.IsAnomalous)
	assert.InDelta(t, 1.0, res.DistanceKm, 1e-6)
	assert.InDelta(t, 3600.0, res.SpeedKmh, 1e-3)
}

func TestCheckLocation_SlowIsNormal(t *testing.T) {
	a, b := oneKmApart()
	res := anomaly.CheckLocation(a, b, 60*time.Second)
	assert.False(t, res.IsAnomalous)
	assert.InDelta(t, 60.0, res.SpeedKmh, 1e-4)
	assert.InDelta(t, 1.0, res.DistanceKm, 1e-6)
}

func TestCheckLocation_MissingSample(t *testing.T) {
	a, _ := oneKmApart()
	assert.False(t, anomaly.CheckLocation(nil, a, time.Second).IsAnomalous)
	assert.False(t, anomaly.CheckLocation(a, nil, time.Second).IsAnomalous)
}

func TestCheckLocation_NonPositiveElapsed(t *testing.T) {
	a, b := oneKmApart()
	for _, d := range []time.Duration{0, -time.Minute} {
		res := anomaly.CheckLocation(a, b, d)
		assert.False(t, res.IsAnomalous)
		assert.Zero(t, res.SpeedKmh)
		assert.InDelta(t, 1.0, res.DistanceKm, 1e-6)
	}
}

func TestIsSpoofed(t *testing.T) {
	for acc, want := range map[float64]bool{0: true, 1: true, 0.5: false, 5: false, 30: false} {
		assert.Equal(t, want, anomaly.IsSpoofed(types.LocationSample{Accuracy: acc}), "accuracy %v", acc)
	}
	r := anomaly.SpoofingReport(types.LocationSample{Accuracy: 1})
	assert.Equal(t, types.AnomalySpoofing, r.Kind)
	require.NotNil(t, r.Evidence.Accuracy)
	assert.Equal(t, 1.0, *r.Evidence.Accuracy)
}

// ═══════════════════════════════════════════════════════════════════════════
// Attendance
// ═══════════════════════════════════════════════════════════════════════════

func TestRapidToggle_FourMinutes(t *testing.T) {
	events := []types.AttendanceEvent{
		ev("in", types.CheckIn, base),
		ev("out", types.CheckOut, base.Add(4*time.Minute)),
	}
	reports := anomaly.RapidToggle(events)
	require.Len(t, reports, 1)
	assert.Equal(t, types.AnomalyRapidToggle, reports[0].Kind)
	assert.Equal(t, types.SeverityHigh, reports[0].Severity)
	assert.Equal(t, []string{"in", "out"}, reports[0].Evidence.EventIDs)
}

func TestRapidToggle_SixMinutes(t *testing.T) {
	events := []types.AttendanceEvent{
		ev("in", types.CheckIn, base),
		ev("out", types.CheckOut, base.Add(6*time.Minute)),
	}
	assert.Empty(t, anomaly.RapidToggle(events))
}

func TestUnusualTime_Boundaries(t *testing.T) {
	day := time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC)
	var events []types.AttendanceEvent
	for h := 0; h < 24; h++ {
		events = append(events, ev("e", types.CheckIn, day.Add(time.Duration(h)*time.Hour+30*time.Minute)))
	}

	reports := anomaly.UnusualTime(events, time.UTC)
	require.Len(t, reports, 4)
	for i, r := range reports {
		require.NotNil(t, r.Evidence.Hour)
		assert.Equal(t, 2+i, *r.Evidence.Hour)
		assert.Equal(t, types.SeverityMedium, r.Severity)
	}
}

func TestUnusualTime_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 18:00 UTC is 03:00 in Tokyo.
	e := ev("e", types.CheckIn, time.Date(2026, 5, 12, 18, 0, 0, 0, time.UTC))
	assert.Empty(t, anomaly.UnusualTime([]types.AttendanceEvent{e}, time.UTC))
	assert.Len(t, anomaly.UnusualTime([]types.AttendanceEvent{e}, tokyo), 1)
}

func TestLongDuration(t *testing.T) {
	events := []types.AttendanceEvent{
		ev("in1", types.CheckIn, base),
		ev("out1", types.CheckOut, base.Add(19*time.Hour)),
		ev("in2", types.CheckIn, base.Add(48*time.Hour)),
		ev("out2", types.CheckOut, base.Add(56*time.Hour)),
	}
	reports := anomaly.LongDuration(events)
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"in1", "out1"}, reports[0].Evidence.EventIDs)
	assert.Equal(t, 19*time.Hour, reports[0].Evidence.Duration)
}

func TestLongDuration_LaterCheckInResetsInterval(t *testing.T) {
	events := []types.AttendanceEvent{
		ev("in1", types.CheckIn, base),
		ev("in2", types.CheckIn, base.Add(10*time.Hour)),
		ev("out", types.CheckOut, base.Add(20*time.Hour)),
		ev("stray", types.CheckOut, base.Add(60*time.Hour)),
	}
	assert.Empty(t, anomaly.LongDuration(events))
}

func TestDetect_WindowSortAndNoMutation(t *testing.T) {
	now := base.Add(24 * time.Hour)
	events := []types.AttendanceEvent{
		ev("out", types.CheckOut, base.Add(2*time.Minute)),
		ev("ancient", types.CheckIn, now.Add(-31*24*time.Hour)),
		ev("in", types.CheckIn, base),
	}
	snapshot := append([]types.AttendanceEvent(nil), events...)

	reports := anomaly.Detect(events, now, time.UTC)
	assert.Equal(t, snapshot, events, "input must not be reordered")
	assert.Equal(t, []types.AnomalyKind{types.AnomalyRapidToggle}, kinds(reports))
	assert.Equal(t, []string{"in", "out"}, reports[0].Evidence.EventIDs)
}

func TestDetect_AllRulesReported(t *testing.T) {
	night := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)
	events := []types.AttendanceEvent{
		ev("in", types.CheckIn, night),
		ev("out", types.CheckOut, night.Add(2*time.Minute)),
		ev("in2", types.CheckIn, night.Add(time.Hour)),
		ev("out2", types.CheckOut, night.Add(21*time.Hour)),
	}
	reports := anomaly.Detect(events, night.Add(48*time.Hour), time.UTC)
	assert.ElementsMatch(t, []types.AnomalyKind{
		types.AnomalyUnusualTime, // 03:00
		types.AnomalyUnusualTime, // 03:02
		types.AnomalyUnusualTime, // 04:00
		types.AnomalyRapidToggle,
		types.AnomalyLongDuration,
	}, kinds(reports))
}

func TestDetect_Empty(t *testing.T) {
	assert.Empty(t, anomaly.Detect(nil, base, nil))
}
