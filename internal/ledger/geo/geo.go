// Package geo holds the great-circle math used by the location checks.
package geo

import (
	"math"
	"time"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// DistanceKm returns the haversine distance between two coordinates.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Between returns the distance between two samples.
func Between(a, b types.LocationSample) float64 {
	return DistanceKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// SpeedKmh converts a distance covered in elapsed into km/h.  The result is
// undefined for elapsed <= 0; callers guard against that.
func SpeedKmh(distanceKm float64, elapsed time.Duration) float64 {
	return distanceKm / elapsed.Hours()
}
