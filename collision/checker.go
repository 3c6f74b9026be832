// Package collision answers configuration and edge validity queries against a binarized occupancy
// grid.
package collision

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/gridnav/logging"
	"go.viam.com/gridnav/occupancy"
	"go.viam.com/gridnav/spatialmath"
)

var (
	// ErrOutOfBounds is reported when part of the footprint falls outside the grid.
	ErrOutOfBounds = errors.New("footprint out of bounds")
	// ErrOccupied is reported when a sampled footprint point lands on an occupied cell.
	ErrOccupied = errors.New("footprint occupied")
)

// Footprint is the axis aligned robot extent in cells. It ignores the robot heading.
type Footprint struct {
	WidthHalf  int
	LengthHalf int
}

// NewFootprint derives the footprint from the car dimensions. Both half extents come from the car
// length, so the footprint is square.
func NewFootprint(carWidth, carLength, resolution float64) Footprint {
	half := int(math.Round(carLength * 0.5 / resolution))
	return Footprint{WidthHalf: half, LengthHalf: half}
}

// Checker validates configurations and straight-line edges. It is immutable after construction and
// safe for concurrent use.
type Checker struct {
	grid           *occupancy.BinaryGrid
	footprint      Footprint
	collisionDelta float64
	logger         logging.Logger
}

// NewChecker binarizes the grid and returns a checker for a car of the given size.
func NewChecker(
	grid *occupancy.Grid,
	carWidth, carLength, collisionDelta float64,
	logger logging.Logger,
) (*Checker, error) {
	if grid == nil {
		return nil, errors.New("collision checker requires a map")
	}
	if carWidth <= 0 || carLength <= 0 {
		return nil, errors.Errorf("car dimensions must be positive, got %vx%v", carWidth, carLength)
	}
	if collisionDelta <= 0 {
		return nil, errors.Errorf("collision delta must be positive, got %v", collisionDelta)
	}
	c := &Checker{
		grid:           grid.Binarize(),
		footprint:      NewFootprint(carWidth, carLength, grid.Info.Resolution),
		collisionDelta: collisionDelta,
		logger:         logger,
	}
	logger.Debugw("collision checker ready",
		"width", grid.Info.Width,
		"height", grid.Info.Height,
		"occupied", c.grid.OccupiedCount(),
		"half_extent", c.footprint.LengthHalf)
	return c, nil
}

// Footprint returns the footprint in cells.
func (c *Checker) Footprint() Footprint {
	return c.footprint
}

// CollisionDelta returns the maximum spacing between edge samples in meters.
func (c *Checker) CollisionDelta() float64 {
	return c.collisionDelta
}

// MapInfo returns the metadata of the underlying grid.
func (c *Checker) MapInfo() occupancy.MapInfo {
	return c.grid.Info()
}

// Reason returns nil if cfg is valid, otherwise an error wrapping ErrOutOfBounds or ErrOccupied.
// Only the grid point and the four corners of its bounding box are sampled.
func (c *Checker) Reason(cfg spatialmath.Configuration) error {
	if !finite(cfg.X) || !finite(cfg.Y) {
		return errors.Wrapf(ErrOutOfBounds, "%v is not a finite position", cfg)
	}
	p := occupancy.WorldToMap(cfg, c.grid.Info())
	left, right := p.Col-c.footprint.WidthHalf, p.Col+c.footprint.WidthHalf
	front, back := p.Row-c.footprint.LengthHalf, p.Row+c.footprint.LengthHalf

	if !c.grid.InBounds(left, front) || !c.grid.InBounds(right, back) {
		return errors.Wrapf(ErrOutOfBounds, "%v at cell (%d, %d)", cfg, p.Col, p.Row)
	}
	samples := [5]spatialmath.GridCoordinate{
		p,
		{Col: left, Row: front},
		{Col: right, Row: front},
		{Col: left, Row: back},
		{Col: right, Row: back},
	}
	for _, s := range samples {
		if c.grid.Occupied(s.Col, s.Row) {
			return errors.Wrapf(ErrOccupied, "%v at cell (%d, %d)", cfg, s.Col, s.Row)
		}
	}
	return nil
}

// ValidateConfiguration reports whether cfg is collision free.
func (c *Checker) ValidateConfiguration(cfg spatialmath.Configuration) bool {
	return c.Reason(cfg) == nil
}

// DiscretizeEdge returns the stepped samples of the edge from a to b. The endpoint b is never part
// of the result.
func (c *Checker) DiscretizeEdge(a, b spatialmath.Configuration) []spatialmath.Configuration {
	return Edge{A: a, B: b}.Discretize(c.collisionDelta)
}

// ValidateEdge reports whether every stepped sample of the edge and the endpoint b are valid. The
// endpoint is checked first and samples are generated one at a time, so an edge reaching far off
// the map fails on its first out-of-bounds point without being discretized.
func (c *Checker) ValidateEdge(a, b spatialmath.Configuration) bool {
	if !c.ValidateConfiguration(b) {
		return false
	}
	e := Edge{A: a, B: b}
	steps := math.Floor(e.Length() / c.collisionDelta)
	if math.IsNaN(steps) || math.IsInf(steps, 0) {
		return false
	}
	heading := e.Heading()
	for i := 0; float64(i) < steps; i++ {
		if !c.ValidateConfiguration(e.at(i, c.collisionDelta, heading)) {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
