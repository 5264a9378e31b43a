package geo

import (
	"math"

	"github.com/sells-group/quote-cli/internal/model"
)

const (
	// EarthRadiusKM is the mean Earth radius used by HaversineKM.
	EarthRadiusKM = 6371.0
	// DefaultRoadFactor inflates great-circle distance to approximate road km.
	DefaultRoadFactor = 1.30
)

// HaversineKM returns the great-circle distance between two points in km.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := lat1 * math.Pi / 180
	p2 := lat2 * math.Pi / 180
	dp := (lat2 - lat1) * math.Pi / 180
	dl := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dp/2)*math.Sin(dp/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	return 2 * EarthRadiusKM * math.Asin(math.Min(1, math.Sqrt(a)))
}

// RoadKM approximates the road distance between a and b.
func RoadKM(a, b model.Coordinate, factor float64) float64 {
	return HaversineKM(a.Lat, a.Lon, b.Lat, b.Lon) * factor
}

// Distance computes road distances with a fixed inflation factor.
type Distance struct {
	RoadFactor float64
}

// NewDistance returns a calculator; a non-positive factor selects the default.
func NewDistance(factor float64) Distance {
	if factor <= 0 {
		factor = DefaultRoadFactor
	}
	return Distance{RoadFactor: factor}
}

// Road returns the road km between two resolved points, or nil when either
// end is unresolved.
func (d Distance) Road(a, b model.ResolvedPoint) *float64 {
	if !a.OK || !b.OK {
		return nil
	}
	return model.Float(RoadKM(a.Coordinate, b.Coordinate, d.RoadFactor))
}
