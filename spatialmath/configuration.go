// Package spatialmath defines the planar configurations and transforms used by the planner and
// the trajectory tracker.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Configuration is a planar robot pose in world units (meters, radians). A Configuration built
// with NewPosition carries no heading until one is assigned with WithTheta.
type Configuration struct {
	X        float64
	Y        float64
	Theta    float64
	HasTheta bool
}

// NewConfiguration returns an oriented configuration.
func NewConfiguration(x, y, theta float64) Configuration {
	return Configuration{X: x, Y: y, Theta: theta, HasTheta: true}
}

// NewPosition returns a position-only configuration.
func NewPosition(x, y float64) Configuration {
	return Configuration{X: x, Y: y}
}

// WithTheta returns a copy of c oriented at theta.
func (c Configuration) WithTheta(theta float64) Configuration {
	c.Theta = theta
	c.HasTheta = true
	return c
}

// Position returns the position component of c.
func (c Configuration) Position() r2.Point {
	return r2.Point{X: c.X, Y: c.Y}
}

// DistanceTo is the Euclidean distance between the positions of c and other.
func (c Configuration) DistanceTo(other Configuration) float64 {
	return other.Position().Sub(c.Position()).Norm()
}

// BearingTo is the heading of the straight line from c to other.
func (c Configuration) BearingTo(other Configuration) float64 {
	return math.Atan2(other.Y-c.Y, other.X-c.X)
}

// Flatten returns [x, y, theta].
func (c Configuration) Flatten() []float64 {
	return []float64{c.X, c.Y, c.Theta}
}

func (c Configuration) String() string {
	if !c.HasTheta {
		return fmt.Sprintf("(%.3f, %.3f)", c.X, c.Y)
	}
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", c.X, c.Y, c.Theta)
}

// AlmostEqualPosition reports whether the summed absolute coordinate differences of a and b are
// below epsilon. Headings are ignored.
func AlmostEqualPosition(a, b Configuration, epsilon float64) bool {
	return math.Abs(a.X-b.X)+math.Abs(a.Y-b.Y) < epsilon
}

// ConfigurationFromSlice builds a configuration from [x, y] or [x, y, theta].
func ConfigurationFromSlice(vals []float64) (Configuration, error) {
	switch len(vals) {
	case 2:
		return NewPosition(vals[0], vals[1]), nil
	case 3:
		return NewConfiguration(vals[0], vals[1], vals[2]), nil
	default:
		return Configuration{}, errors.Errorf("configuration needs 2 or 3 values, got %d", len(vals))
	}
}

// GridCoordinate is a (col, row) pixel index into an occupancy grid.
type GridCoordinate struct {
	Col int
	Row int
}
