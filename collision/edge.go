package collision

import (
	"math"

	"go.viam.com/gridnav/spatialmath"
)

// Edge is an ordered straight-line segment between two configurations.
type Edge struct {
	A spatialmath.Configuration
	B spatialmath.Configuration
}

// Length is the Euclidean length of the edge.
func (e Edge) Length() float64 {
	return e.A.DistanceTo(e.B)
}

// Heading is the direction of travel from A to B.
func (e Edge) Heading() float64 {
	return e.A.BearingTo(e.B)
}

// maxEdgeSteps bounds Steps. Edges between two in-map configurations are far shorter.
const maxEdgeSteps = 1 << 24

// Steps returns floor(length / delta), or 0 when that is not a finite count no larger than
// maxEdgeSteps.
func (e Edge) Steps(delta float64) int {
	if delta <= 0 {
		return 0
	}
	steps := math.Floor(e.Length() / delta)
	if math.IsNaN(steps) || steps < 0 || steps > maxEdgeSteps {
		return 0
	}
	return int(steps)
}

// at returns sample i of the edge stepped by delta along heading.
func (e Edge) at(i int, delta, heading float64) spatialmath.Configuration {
	d := float64(i) * delta
	return spatialmath.NewConfiguration(e.A.X+d*math.Cos(heading), e.A.Y+d*math.Sin(heading), heading)
}

// Discretize returns the points A + i*delta*(cos, sin) for i in [0, Steps(delta)). Each sample
// carries the edge heading.
func (e Edge) Discretize(delta float64) []spatialmath.Configuration {
	n := e.Steps(delta)
	if n == 0 {
		return nil
	}
	heading := e.Heading()
	samples := make([]spatialmath.Configuration, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, e.at(i, delta, heading))
	}
	return samples
}
