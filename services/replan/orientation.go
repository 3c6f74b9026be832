package replan

import (
	"math"

	"go.viam.com/gridnav/spatialmath"
)

// AssignOrientations returns a copy of raw with a heading on every waypoint. The first and last
// waypoints take sourceYaw and targetYaw. Each interior waypoint i takes the bearing of the mean
// displacement over the window [max(0, i-w/2), min(n-1, i+w/2+1)) of consecutive displacements.
// A two waypoint plan uses the direct bearing for both, and a plan shorter than two is returned
// with zero headings.
func AssignOrientations(raw []spatialmath.Configuration, sourceYaw, targetYaw float64, window int) []spatialmath.Configuration {
	n := len(raw)
	oriented := make([]spatialmath.Configuration, n)
	for i, c := range raw {
		oriented[i] = c.WithTheta(0)
	}
	switch {
	case n < 2:
		return oriented
	case n == 2:
		bearing := raw[0].BearingTo(raw[1])
		oriented[0].Theta = bearing
		oriented[1].Theta = bearing
		return oriented
	}
	if window < 1 {
		window = 1
	}

	// the final slot holds the target heading and is never inside an interior window.
	dx := make([]float64, n)
	dy := make([]float64, n)
	for i := 0; i < n-1; i++ {
		dx[i] = raw[i+1].X - raw[i].X
		dy[i] = raw[i+1].Y - raw[i].Y
	}
	dx[n-1], dy[n-1] = math.Cos(targetYaw), math.Sin(targetYaw)

	half := window / 2
	for i := 1; i < n-1; i++ {
		start, end := max(0, i-half), min(n-1, i+half+1)
		var sx, sy float64
		for j := start; j < end; j++ {
			sx += dx[j]
			sy += dy[j]
		}
		count := float64(end - start)
		oriented[i].Theta = math.Atan2(sy/count, sx/count)
	}
	oriented[0].Theta = sourceYaw
	oriented[n-1].Theta = targetYaw
	return oriented
}
