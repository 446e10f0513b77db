package geo

import (
	"math"

	"morehradar/server/internal/model"
)

const earthRadiusKm = 6371

// DistanceKm calculates the great-circle distance in kilometers between
// two coordinates using the haversine formula.
func DistanceKm(a, b model.Coordinate) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}
