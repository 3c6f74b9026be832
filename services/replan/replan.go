// Package replan keeps a live plan between an asynchronously updated source and target. Updates
// are cheap; the planner only runs from Reconcile, which is driven periodically and after updates.
package replan

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/gridnav/jobmanager"
	"go.viam.com/gridnav/logging"
	"go.viam.com/gridnav/motionplan"
	"go.viam.com/gridnav/spatialmath"
	"go.viam.com/gridnav/utils"
)

const (
	// DefaultOrientationWindowSize is the number of displacements averaged per interior heading.
	DefaultOrientationWindowSize = 21

	reconcileJobName = "reconcile"
)

// sameEpsilon is float64 machine epsilon. Source and target closer than this in summed absolute
// coordinates are the same.
var sameEpsilon = math.Nextafter(1, 2) - 1

// Result describes what a single reconcile did.
type Result int

const (
	// Unchanged means neither source nor target changed, or one of them is unknown.
	Unchanged Result = iota
	// SkippedSame means source and target are the same position.
	SkippedSame
	// SkippedSourceInvalid means the source is in collision.
	SkippedSourceInvalid
	// SkippedTargetInvalid means the target is in collision.
	SkippedTargetInvalid
	// Planned means a new plan was computed and appended.
	Planned
	// PlanFailed means the planner could not connect source and target.
	PlanFailed
)

func (r Result) String() string {
	switch r {
	case Unchanged:
		return "unchanged"
	case SkippedSame:
		return "skipped_same"
	case SkippedSourceInvalid:
		return "skipped_source_invalid"
	case SkippedTargetInvalid:
		return "skipped_target_invalid"
	case Planned:
		return "planned"
	case PlanFailed:
		return "plan_failed"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Validator reports whether a configuration is collision free. *collision.Checker satisfies it.
type Validator interface {
	ValidateConfiguration(spatialmath.Configuration) bool
}

// reasoner is implemented by validators that can explain a rejection.
type reasoner interface {
	Reason(spatialmath.Configuration) error
}

// Config configures a Coordinator.
type Config struct {
	OrientationWindowSize int
}

// PlanRequest is a synchronous request for a plan between source and target.
type PlanRequest struct {
	Source spatialmath.Configuration
	Target spatialmath.Configuration
}

// PlanResponse carries the current plan flattened as [x0, y0, theta0, x1, ...].
type PlanResponse struct {
	Success bool      `json:"success"`
	Plan    []float64 `json:"plan"`
}

// Coordinator owns the source/target state and the accumulated plan.
type Coordinator struct {
	state     state
	validator Validator
	planner   motionplan.Planner
	sink      PlanSink
	window    int
	logger    logging.Logger

	// planMu serializes reconciles and guards the plans.
	planMu       sync.Mutex
	currentPlan  []spatialmath.Configuration
	completePlan []spatialmath.Configuration

	trigger atomic.Pointer[func()]
}

// NewCoordinator returns a coordinator. sink may be nil.
func NewCoordinator(
	validator Validator,
	planner motionplan.Planner,
	sink PlanSink,
	cfg Config,
	logger logging.Logger,
) *Coordinator {
	window := cfg.OrientationWindowSize
	if window <= 0 {
		window = DefaultOrientationWindowSize
	}
	return &Coordinator{
		validator: validator,
		planner:   planner,
		sink:      sink,
		window:    window,
		logger:    logger.Sublogger("replan"),
	}
}

// Schedule registers Reconcile on jm at interval. After scheduling, every update also triggers a
// reconcile; triggers that arrive while one is running are skipped.
func (c *Coordinator) Schedule(jm *jobmanager.Jobmanager, interval time.Duration) error {
	err := jm.AddIntervalJob(reconcileJobName, interval, func(ctx context.Context) {
		if _, err := c.Reconcile(ctx); err != nil {
			c.logger.Warnw("reconcile failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	trigger := func() {
		if err := jm.Trigger(reconcileJobName); err != nil {
			c.logger.Debugw("could not trigger reconcile", "error", err)
		}
	}
	c.trigger.Store(&trigger)
	return nil
}

func (c *Coordinator) apply(u update) {
	c.state.apply(u)
	if trigger := c.trigger.Load(); trigger != nil {
		(*trigger)()
	}
}

// Update records a new source, target or both. A nil argument leaves that side unchanged.
func (c *Coordinator) Update(source, target *spatialmath.Configuration) {
	if source != nil {
		c.logger.Infow("got new source", "source", source.String())
	}
	if target != nil {
		c.logger.Infow("got new target", "target", target.String())
	}
	c.apply(update{source: source, target: target})
}

// PushGoal records a new target. The previous target, if any, becomes the source so the robot
// continues from its last goal.
func (c *Coordinator) PushGoal(target spatialmath.Configuration) {
	c.logger.Infow("got new target", "target", target.String())
	c.apply(update{target: &target, promoteTarget: true})
}

// Reconcile replans if the source or target changed since the last call, then emits the
// accumulated plan to the sink. A planner failure is reported as PlanFailed with a nil error; any
// other planner error is returned.
func (c *Coordinator) Reconcile(ctx context.Context) (Result, error) {
	c.planMu.Lock()
	defer c.planMu.Unlock()
	return c.reconcile(ctx)
}

// GetPlan applies req as a source and target update, reconciles, and returns the current plan.
func (c *Coordinator) GetPlan(ctx context.Context, req PlanRequest) (PlanResponse, error) {
	c.state.apply(update{source: &req.Source, target: &req.Target})

	c.planMu.Lock()
	defer c.planMu.Unlock()
	if _, err := c.reconcile(ctx); err != nil {
		return PlanResponse{}, err
	}
	if c.currentPlan == nil {
		return PlanResponse{Success: false}, nil
	}
	return PlanResponse{
		Success: true,
		Plan: lo.FlatMap(c.currentPlan, func(cfg spatialmath.Configuration, _ int) []float64 {
			return cfg.Flatten()
		}),
	}, nil
}

// CurrentPlan returns a copy of the most recent plan, or nil if the last planning attempt failed
// or none was made.
func (c *Coordinator) CurrentPlan() []spatialmath.Configuration {
	c.planMu.Lock()
	defer c.planMu.Unlock()
	if c.currentPlan == nil {
		return nil
	}
	return append([]spatialmath.Configuration{}, c.currentPlan...)
}

// CompletePlan returns a copy of every oriented waypoint planned so far, in order.
func (c *Coordinator) CompletePlan() []spatialmath.Configuration {
	c.planMu.Lock()
	defer c.planMu.Unlock()
	return append([]spatialmath.Configuration{}, c.completePlan...)
}

func (c *Coordinator) reconcile(ctx context.Context) (Result, error) {
	result, err := c.replan(ctx, c.state.snapshotAndClear())
	if c.sink != nil {
		plan := append([]spatialmath.Configuration{}, c.completePlan...)
		if sinkErr := c.sink.PublishPlan(ctx, plan); sinkErr != nil {
			c.logger.Warnw("could not publish plan", "error", sinkErr)
		}
	}
	return result, err
}

func (c *Coordinator) replan(ctx context.Context, snap snapshot) (Result, error) {
	if !snap.shouldReplan() {
		return Unchanged, nil
	}
	source, target := snap.source, snap.target

	if spatialmath.AlmostEqualPosition(source, target, sameEpsilon) {
		c.logger.Info("source and target are the same, will not plan")
		return SkippedSame, nil
	}
	if !c.validator.ValidateConfiguration(source) {
		c.logger.Infow("source in collision, will not plan", "reason", c.reason(source))
		return SkippedSourceInvalid, nil
	}
	if !c.validator.ValidateConfiguration(target) {
		c.logger.Infow("target in collision, will not plan", "reason", c.reason(target))
		return SkippedTargetInvalid, nil
	}

	c.logger.Infow("computing plan", "source", source.String(), "target", target.String())
	stopSlowLogger := utils.SlowLogger(ctx, "still computing plan", "target", target.String(), c.logger)
	raw, err := c.planner.Plan(ctx, source, target)
	stopSlowLogger()
	if err != nil {
		c.currentPlan = nil
		c.logger.Warnw("could not compute a plan", "error", err)
		if errors.Is(err, motionplan.ErrPlannerFailed) {
			return PlanFailed, nil
		}
		return PlanFailed, err
	}

	oriented := AssignOrientations(raw, heading(source, raw, 0), heading(target, raw, len(raw)-1), c.window)
	c.currentPlan = oriented
	c.completePlan = append(c.completePlan, oriented...)
	c.logger.Infow("plan complete", "waypoints", len(oriented), "total", len(c.completePlan))
	return Planned, nil
}

func (c *Coordinator) reason(cfg spatialmath.Configuration) string {
	if r, ok := c.validator.(reasoner); ok {
		if err := r.Reason(cfg); err != nil {
			return err.Error()
		}
	}
	return "invalid configuration"
}

// heading returns the heading of cfg, falling back to the bearing of the plan segment touching
// waypoint i when cfg has none.
func heading(cfg spatialmath.Configuration, plan []spatialmath.Configuration, i int) float64 {
	if cfg.HasTheta || len(plan) < 2 {
		return cfg.Theta
	}
	if i == 0 {
		return plan[0].BearingTo(plan[1])
	}
	return plan[i-1].BearingTo(plan[i])
}
