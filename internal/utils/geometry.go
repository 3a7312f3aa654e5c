package utils

import (
	"math"

	"github.com/golang/geo/s2"
)

const (
	// RadiusOfEarthInMeters is the fixed mean radius used for every great-circle distance.
	RadiusOfEarthInMeters = 6371010.0
)

// CoordinateBounds represents a bounding box with min/max latitude and longitude
type CoordinateBounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Distance returns the haversine distance in meters between two WGS84 points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * RadiusOfEarthInMeters
}

// CumulativeDistances returns, for each point, the distance travelled from
// the first point along the polyline. lats and lons must have equal length.
func CumulativeDistances(lats, lons []float64) []float64 {
	out := make([]float64, len(lats))
	for i := 1; i < len(lats); i++ {
		out[i] = out[i-1] + Distance(lats[i-1], lons[i-1], lats[i], lons[i])
	}
	return out
}

func CalculateBounds(lat, lon, distance float64) CoordinateBounds {
	latRadians := lat * math.Pi / 180
	lonRadians := lon * math.Pi / 180

	latRadius := RadiusOfEarthInMeters
	lonRadius := math.Cos(latRadians) * RadiusOfEarthInMeters

	latOffset := distance / latRadius
	lonOffset := distance / lonRadius

	return CoordinateBounds{
		MinLat: (latRadians - latOffset) * 180 / math.Pi,
		MaxLat: (latRadians + latOffset) * 180 / math.Pi,
		MinLon: (lonRadians - lonOffset) * 180 / math.Pi,
		MaxLon: (lonRadians + lonOffset) * 180 / math.Pi,
	}
}
