// Package geo provides geodesic distance calculations on WGS84 coordinates.
package geo

import (
	"math"

	"github.com/aedworks/coverplan/internal/domain"
)

// earthRadiusM is the mean Earth radius in meters.
const earthRadiusM = 6371000.0

// Distance returns the great-circle distance between two points in meters,
// using the haversine formula. Accurate to well under 0.5% for the
// city-scale distances this pipeline works with.
func Distance(a, b domain.Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * earthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}
