package replan

import (
	"context"

	"go.viam.com/gridnav/spatialmath"
)

// PlanSink accepts the accumulated plan at the end of every reconcile. Emissions repeat even when
// the plan did not change, so implementations must be idempotent.
type PlanSink interface {
	PublishPlan(ctx context.Context, plan []spatialmath.Configuration) error
}

// PlanSinkFunc adapts a function to the PlanSink interface.
type PlanSinkFunc func(ctx context.Context, plan []spatialmath.Configuration) error

// PublishPlan calls f.
func (f PlanSinkFunc) PublishPlan(ctx context.Context, plan []spatialmath.Configuration) error {
	return f(ctx, plan)
}
