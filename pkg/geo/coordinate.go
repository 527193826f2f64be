package geo

import "math"

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Finite reports whether both components are finite numbers. NaN and ±Inf
// coordinates are rejected at the edges and must never reach the registries.
func (c Coordinate) Finite() bool {
	return !math.IsNaN(c.Latitude) && !math.IsInf(c.Latitude, 0) &&
		!math.IsNaN(c.Longitude) && !math.IsInf(c.Longitude, 0)
}

// InRange reports whether the point lies within valid WGS84 bounds.
func (c Coordinate) InRange() bool {
	return c.Finite() &&
		c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}
