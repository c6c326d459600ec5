package attendance

import "math"

const (
	// earthRadius is the spherical-earth approximation radius, in meters.
	earthRadius = 6371000.0

	// CheckInRadius is how far (in meters) a student may be from the
	// class location and still check in; inclusive.
	CheckInRadius = 100.0
)

// Distance returns the great-circle distance between a and b in meters,
// computed with the haversine formula.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadius * c
}

// WithinRange reports whether a and b are within CheckInRadius of each other.
func WithinRange(a, b Coordinate) bool {
	return Distance(a, b) <= CheckInRadius
}
