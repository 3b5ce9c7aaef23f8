// Package geo provides great-circle distance and pricing zone classification.
package geo

import (
	"fmt"
	"math"
)

const (
	// EarthRadiusKm is the mean earth radius used for haversine distances.
	EarthRadiusKm = 6371.0

	// KmPerMile converts kilometres to statute miles.
	KmPerMile = 1.609344
)

// Coordinate represents a geographic point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the coordinate is within valid ranges.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", c.Lng)
	}
	return nil
}

// HaversineKm returns the great-circle distance in kilometres between two points.
func HaversineKm(a, b Coordinate) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// HaversineMiles returns the great-circle distance in miles between two points.
func HaversineMiles(a, b Coordinate) float64 {
	return HaversineKm(a, b) / KmPerMile
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
