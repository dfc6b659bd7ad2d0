// Package geo provides the coarse location math used to pre-filter the open
// jobs board. Bounding boxes keep the store query cheap; exact distances are
// only computed for the rows that survive the box.
package geo

import (
	"math"
)

const earthRadiusMiles = 3959

// BoundingBox is a lat/lng rectangle for radius pre-filtering.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Distance returns the haversine distance between two points in miles.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}

// BoxAround computes the bounding box covering radiusMiles around a point.
func BoxAround(lat, lng, radiusMiles float64) BoundingBox {
	latDegPerMile := 1 / 69.0
	lngDegPerMile := 1 / (69.0 * math.Cos(toRadians(lat)))

	latDelta := radiusMiles * latDegPerMile
	lngDelta := radiusMiles * lngDegPerMile

	return BoundingBox{
		MinLat: lat - latDelta,
		MaxLat: lat + latDelta,
		MinLng: lng - lngDelta,
		MaxLng: lng + lngDelta,
	}
}

// Contains reports whether the point falls inside the box.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

func toRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}
