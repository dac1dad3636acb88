package anomaly

import (
	"fmt"
	"time"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/geo"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

// MaxPlausibleSpeedKmh is the speed above which two consecutive fixes are
// treated as a teleport.
const MaxPlausibleSpeedKmh = 300.0

// LocationCheck is the outcome of comparing two consecutive fixes.  Distance
// and speed are filled in whenever they could be computed.
type LocationCheck struct {
	IsAnomalous bool          `json:"is_anomalous"`
	DistanceKm  float64       `json:"distance_km"`
	SpeedKmh    float64       `json:"speed_kmh"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// CheckLocation flags prev -> curr when the implied speed exceeds
// MaxPlausibleSpeedKmh.  A missing sample or a non-positive elapsed time is
// never anomalous.
func CheckLocation(prev, curr *types.LocationSample, elapsed time.Duration) LocationCheck {
	if prev == nil || curr == nil {
		return LocationCheck{}
	}

	res := LocationCheck{
		DistanceKm: geo.Between(*prev, *curr),
		Elapsed:    elapsed,
	}
	if elapsed <= 0 {
		return res
	}

	res.SpeedKmh = geo.SpeedKmh(res.DistanceKm, elapsed)
	res.IsAnomalous = res.SpeedKmh > MaxPlausibleSpeedKmh
	return res
}

// IsSpoofed reports whether a fix carries the exact accuracy values that
// simulated location providers emit.
func IsSpoofed(s types.LocationSample) bool {
	return s.Accuracy == 0 || s.Accuracy == 1
}

// SpeedReport renders an anomalous check as a report.
func SpeedReport(c LocationCheck) types.AnomalyReport {
	return types.AnomalyReport{
		Kind:     types.AnomalySpeed,
		Severity: types.SeverityHigh,
		Message:  fmt.Sprintf("moved %.2f km at %.2f km/h", c.DistanceKm, c.SpeedKmh),
		Evidence: types.Evidence{
			DistanceKm: c.DistanceKm,
			SpeedKmh:   c.SpeedKmh,
			Duration:   c.Elapsed,
		},
	}
}

// SpoofingReport renders a suspicious fix as a report.
func SpoofingReport(s types.LocationSample) types.AnomalyReport {
	acc := s.Accuracy
	return types.AnomalyReport{
		Kind:     types.AnomalySpoofing,
		Severity: types.SeverityHigh,
		Message:  fmt.Sprintf("reported accuracy of %gm suggests a simulated location", acc),
		Evidence: types.Evidence{Accuracy: &acc},
	}
}
