package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrid_CellIsStableWithinCell(t *testing.T) {
	g := NewGrid(5, true)

	a := g.Cell(40.7128, -74.0060)
	b := g.Cell(40.7129, -74.0061)

	assert.Len(t, a, 5)
	assert.Equal(t, a, b, "two points a few metres apart share a cell")
}

func TestGrid_CoverIncludesNeighbours(t *testing.T) {
	g := NewGrid(5, true)

	cells := g.Cover(40.7128, -74.0060)
	require.Len(t, cells, 9)
	assert.Equal(t, g.Cell(40.7128, -74.0060), cells[0])

	seen := map[string]bool{}
	for _, c := range cells {
		assert.False(t, seen[c], "duplicate cell %s", c)
		seen[c] = true
	}
}

func TestGrid_CoverWithoutFanout(t *testing.T) {
	g := NewGrid(5, false)
	assert.Equal(t, []string{g.Cell(51.5, -0.12)}, g.Cover(51.5, -0.12))
}

// Points on either side of a cell border are in different cells, but each is
// covered by the other's fan-out.
func TestGrid_CoverCrossesCellBoundary(t *testing.T) {
	g := NewGrid(5, true)

	west := g.Cell(40.0, -0.0001)
	east := g.Cell(40.0, 0.0001)
	require.NotEqual(t, west, east)

	assert.Contains(t, g.Cover(40.0, 0.0001), west)
	assert.Contains(t, g.Cover(40.0, -0.0001), east)
}

func TestNewGrid_ClampsPrecision(t *testing.T) {
	assert.Equal(t, 1, NewGrid(0, true).Precision())
	assert.Equal(t, 12, NewGrid(40, true).Precision())
}

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		want     bool
	}{
		{"origin", 0, 0, true},
		{"corners", -90, 180, true},
		{"lat too large", 90.01, 0, false},
		{"lng too small", 0, -180.5, false},
		{"nan", math.NaN(), 0, false},
		{"inf", 0, math.Inf(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidCoordinates(tt.lat, tt.lng))
		})
	}
}

func TestDistanceMeters(t *testing.T) {
	assert.InDelta(t, 0, DistanceMeters(10, 10, 10, 10), 1e-9)

	// One degree of latitude is ~111.2 km.
	assert.InDelta(t, 111195, DistanceMeters(0, 0, 1, 0), 100)

	// Paris to London, ~343.5 km.
	assert.InDelta(t, 343500, DistanceMeters(48.8566, 2.3522, 51.5074, -0.1278), 1500)
}
