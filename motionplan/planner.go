// Package motionplan defines the planner contract consumed by the replanning service and a grid
// lattice planner that satisfies it.
package motionplan

import (
	"context"

	"go.viam.com/gridnav/spatialmath"
)

// Planner finds an ordered sequence of configurations from source to target. The first element of
// a returned plan is the source and the last is the target. Planners that cannot connect the two
// return an error matching ErrPlannerFailed.
type Planner interface {
	Plan(ctx context.Context, source, target spatialmath.Configuration) ([]spatialmath.Configuration, error)
}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func(ctx context.Context, source, target spatialmath.Configuration) ([]spatialmath.Configuration, error)

// Plan calls f.
func (f PlannerFunc) Plan(ctx context.Context, source, target spatialmath.Configuration) ([]spatialmath.Configuration, error) {
	return f(ctx, source, target)
}

// Validator answers the validity queries a planner needs. *collision.Checker satisfies it.
type Validator interface {
	ValidateConfiguration(spatialmath.Configuration) bool
	ValidateEdge(a, b spatialmath.Configuration) bool
}
