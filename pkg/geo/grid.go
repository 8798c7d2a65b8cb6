// Package geo maps coordinates onto coarse geohash cells used as broadcast
// rooms, and measures great-circle distance for precise radius checks.
package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

const earthRadiusMeters = 6371008.8

// Grid buckets coordinates into geohash cells of a fixed precision.
type Grid struct {
	precision uint
	neighbors bool
}

func NewGrid(precision int, neighbors bool) *Grid {
	if precision < 1 {
		precision = 1
	}
	if precision > 12 {
		precision = 12
	}
	return &Grid{precision: uint(precision), neighbors: neighbors}
}

// Cell returns the cell containing the point.
func (g *Grid) Cell(lat, lng float64) string {
	return geohash.EncodeWithPrecision(lat, lng, g.precision)
}

// Cover returns every cell a broadcast about the point should reach: the
// containing cell first, then its eight neighbours when fan-out is enabled.
func (g *Grid) Cover(lat, lng float64) []string {
	cell := g.Cell(lat, lng)
	if !g.neighbors {
		return []string{cell}
	}

	neighbors := geohash.Neighbors(cell)
	cells := make([]string, 0, len(neighbors)+1)
	seen := make(map[string]struct{}, len(neighbors)+1)
	for _, c := range append([]string{cell}, neighbors...) {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		cells = append(cells, c)
	}
	return cells
}

func (g *Grid) Precision() int {
	return int(g.precision)
}

// ValidCoordinates reports whether lat/lng are finite and within range.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// DistanceMeters is the haversine distance between two points.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}
