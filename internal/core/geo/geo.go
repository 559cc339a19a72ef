// Package geo implements the great-circle math behind the dispersion
// analysis: haversine distance and the geographic diameter of a point set.
package geo

import (
	"math"

	"github.com/bahati/fleet-guardian/internal/core/domain"
)

// earthRadiusKm is the mean spherical earth radius used by the haversine
// formula.
const earthRadiusKm = 6371.0

// Distance returns the great-circle distance between two points in
// kilometers, using the haversine formula on a sphere of radius 6371 km.
func Distance(p1, p2 domain.Coordinates) float64 {
	dLat := radians(p2.Lat - p1.Lat)
	dLng := radians(p2.Lng - p1.Lng)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(p1.Lat))*math.Cos(radians(p2.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// DiameterFunc computes the geographic diameter of a point set in kilometers.
// The pairwise implementation below is the default; a convex-hull based
// algorithm may be substituted for large point sets without changing any
// caller contract.
type DiameterFunc func(points []domain.Coordinates) float64

// Diameter returns the maximum pairwise great-circle distance over the point
// set, checking all n·(n−1)/2 unordered pairs. Zero or one points have a
// diameter of 0. Per-driver sets are expected to stay in the tens of points,
// so the quadratic scan is fine.
func Diameter(points []domain.Coordinates) float64 {
	maxDist := 0.0
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			if d := Distance(points[i], points[j]); d > maxDist {
				maxDist = d
			}
		}
	}
	return maxDist
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
