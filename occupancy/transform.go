package occupancy

import (
	"math"

	"go.viam.com/gridnav/spatialmath"
)

// WorldToMap converts a world configuration into grid space. The position is translated by the
// map origin, scaled by the resolution and rotated by the inverse of the origin yaw. Both indices
// are truncated toward zero, so sub-cell precision is lost.
func WorldToMap(c spatialmath.Configuration, info MapInfo) spatialmath.GridCoordinate {
	scale := 1.0 / info.Resolution
	angle := -info.Origin.Yaw()

	x := scale * (c.X - info.Origin.Position.X)
	y := scale * (c.Y - info.Origin.Position.Y)

	cos, sin := math.Cos(angle), math.Sin(angle)
	return spatialmath.GridCoordinate{
		Col: int(cos*x - sin*y),
		Row: int(sin*x + cos*y),
	}
}

// MapToWorld converts a grid coordinate and a grid-frame heading back into the world frame.
// Because WorldToMap truncates, MapToWorld(WorldToMap(c)) recovers c only to within one cell.
func MapToWorld(g spatialmath.GridCoordinate, theta float64, info MapInfo) spatialmath.Configuration {
	angle := info.Origin.Yaw()
	cos, sin := math.Cos(angle), math.Sin(angle)

	col, row := float64(g.Col), float64(g.Row)
	x := (cos*col - sin*row) * info.Resolution
	y := (sin*col + cos*row) * info.Resolution

	return spatialmath.NewConfiguration(
		x+info.Origin.Position.X,
		y+info.Origin.Position.Y,
		theta+angle,
	)
}

// CellCenter returns the world position of the center of a cell.
func CellCenter(g spatialmath.GridCoordinate, info MapInfo) spatialmath.Configuration {
	angle := info.Origin.Yaw()
	cos, sin := math.Cos(angle), math.Sin(angle)

	col, row := float64(g.Col)+0.5, float64(g.Row)+0.5
	return spatialmath.NewPosition(
		(cos*col-sin*row)*info.Resolution+info.Origin.Position.X,
		(sin*col+cos*row)*info.Resolution+info.Origin.Position.Y,
	)
}
