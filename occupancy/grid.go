// Package occupancy holds occupancy grid maps and the transform between world and grid space.
package occupancy

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/gridnav/spatialmath"
)

// Raw cell values. Any nonzero raw value is free space.
const (
	RawOccupied byte = 0
	RawFree     byte = 255
)

// MapInfo is the metadata of an occupancy grid. Resolution is in meters per cell and Origin is the
// world pose of cell (0, 0).
type MapInfo struct {
	Resolution float64
	Width      int
	Height     int
	Origin     spatialmath.Pose
}

// Grid is a raw occupancy grid. Data is row major with row 0 at the origin.
type Grid struct {
	Info MapInfo
	Data []byte
}

// NewGrid validates and returns a grid. The data slice is copied.
func NewGrid(info MapInfo, data []byte) (*Grid, error) {
	if info.Resolution <= 0 || math.IsNaN(info.Resolution) {
		return nil, errors.Errorf("map resolution must be positive, got %v", info.Resolution)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, errors.Errorf("map dimensions must be positive, got %dx%d", info.Width, info.Height)
	}
	if len(data) != info.Width*info.Height {
		return nil, errors.Errorf("map data has %d cells, expected %d (%dx%d)",
			len(data), info.Width*info.Height, info.Width, info.Height)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return &Grid{Info: info, Data: copied}, nil
}

// At returns the raw value at (col, row). The caller is responsible for bounds.
func (g *Grid) At(col, row int) byte {
	return g.Data[row*g.Info.Width+col]
}

// Binarize returns the binary view of the grid: raw 0 is occupied, everything else is free.
func (g *Grid) Binarize() *BinaryGrid {
	occupied := make([]bool, len(g.Data))
	for i, v := range g.Data {
		occupied[i] = v == RawOccupied
	}
	return &BinaryGrid{info: g.Info, occupied: occupied}
}

// BinaryGrid is an immutable free/occupied grid.
type BinaryGrid struct {
	info     MapInfo
	occupied []bool
}

// Info returns the grid metadata.
func (b *BinaryGrid) Info() MapInfo {
	return b.info
}

// InBounds reports whether (col, row) lies in [0, width) x [0, height).
func (b *BinaryGrid) InBounds(col, row int) bool {
	return col >= 0 && col < b.info.Width && row >= 0 && row < b.info.Height
}

// Occupied reports whether the cell at (col, row) is occupied. Cells outside the grid are
// reported as occupied.
func (b *BinaryGrid) Occupied(col, row int) bool {
	if !b.InBounds(col, row) {
		return true
	}
	return b.occupied[row*b.info.Width+col]
}

// OccupiedCount returns the number of occupied cells.
func (b *BinaryGrid) OccupiedCount() int {
	n := 0
	for _, occ := range b.occupied {
		if occ {
			n++
		}
	}
	return n
}
