package replan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/gridnav/jobmanager"
	"go.viam.com/gridnav/logging"
	"go.viam.com/gridnav/motionplan"
	"go.viam.com/gridnav/spatialmath"
)

type validatorFunc func(spatialmath.Configuration) bool

func (f validatorFunc) ValidateConfiguration(c spatialmath.Configuration) bool {
	return f(c)
}

func allValid(spatialmath.Configuration) bool {
	return true
}

// fakePlanner returns source, midpoint, target unless err is set.
type fakePlanner struct {
	mu    sync.Mutex
	calls []PlanRequest
	err   error
}

func (p *fakePlanner) Plan(ctx context.Context, source, target spatialmath.Configuration) ([]spatialmath.Configuration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, PlanRequest{Source: source, Target: target})
	if p.err != nil {
		return nil, p.err
	}
	return []spatialmath.Configuration{
		spatialmath.NewPosition(source.X, source.Y),
		spatialmath.NewPosition((source.X+target.X)/2, (source.Y+target.Y)/2),
		spatialmath.NewPosition(target.X, target.Y),
	}, nil
}

func (p *fakePlanner) numCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type recordingSink struct {
	mu        sync.Mutex
	emissions [][]spatialmath.Configuration
	err       error
}

func (s *recordingSink) PublishPlan(ctx context.Context, plan []spatialmath.Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emissions = append(s.emissions, plan)
	return s.err
}

func newTestCoordinator(t *testing.T, v validatorFunc) (*Coordinator, *fakePlanner, *recordingSink) {
	t.Helper()
	planner := &fakePlanner{}
	sink := &recordingSink{}
	return NewCoordinator(v, planner, sink, Config{}, logging.NewTestLogger(t)), planner, sink
}

func cfgPtr(x, y, theta float64) *spatialmath.Configuration {
	c := spatialmath.NewConfiguration(x, y, theta)
	return &c
}

func TestReconcileUnchanged(t *testing.T) {
	ctx := context.Background()
	c, planner, sink := newTestCoordinator(t, allValid)

	result, err := c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, Unchanged)

	c.Update(cfgPtr(0, 0, 0), nil)
	result, err = c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, Unchanged)
	test.That(t, planner.numCalls(), test.ShouldEqual, 0)

	// the sink still hears about every reconcile.
	test.That(t, len(sink.emissions), test.ShouldEqual, 2)
	test.That(t, sink.emissions[1], test.ShouldBeEmpty)
}

func TestReconcilePlanned(t *testing.T) {
	ctx := context.Background()
	c, planner, sink := newTestCoordinator(t, allValid)

	c.Update(cfgPtr(0, 0, 0.1), cfgPtr(2, 2, 0.2))
	result, err := c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, Planned)
	test.That(t, planner.numCalls(), test.ShouldEqual, 1)

	plan := c.CompletePlan()
	test.That(t, len(plan), test.ShouldEqual, 3)
	test.That(t, plan[0].Theta, test.ShouldEqual, 0.1)
	test.That(t, plan[2].Theta, test.ShouldEqual, 0.2)
	test.That(t, plan[1].X, test.ShouldEqual, 1.)

	// nothing changed, so the planner is not called again and the plan is re-emitted unchanged.
	result, err = c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, Unchanged)
	test.That(t, planner.numCalls(), test.ShouldEqual, 1)
	test.That(t, c.CompletePlan(), test.ShouldResemble, plan)
	test.That(t, len(sink.emissions), test.ShouldEqual, 2)
	test.That(t, sink.emissions[1], test.ShouldResemble, plan)

	// returned plans are copies.
	plan[0].X = 100
	test.That(t, c.CompletePlan()[0].X, test.ShouldEqual, 0.)
	current := c.CurrentPlan()
	current[1].X = 100
	test.That(t, c.CurrentPlan()[1].X, test.ShouldEqual, 1.)
}

func TestReconcileSkipped(t *testing.T) {
	ctx := context.Background()
	blocked := spatialmath.NewPosition(5, 5)
	c, planner, _ := newTestCoordinator(t, func(cfg spatialmath.Configuration) bool {
		return !spatialmath.AlmostEqualPosition(cfg, blocked, 1e-9)
	})

	c.Update(cfgPtr(1, 1, 0), cfgPtr(1, 1, 2))
	result, err := c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, SkippedSame)

	c.Update(cfgPtr(5, 5, 0), cfgPtr(1, 1, 0))
	result, err = c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, SkippedSourceInvalid)

	c.Update(cfgPtr(1, 1, 0), cfgPtr(5, 5, 0))
	result, err = c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, SkippedTargetInvalid)

	test.That(t, planner.numCalls(), test.ShouldEqual, 0)
	test.That(t, c.CompletePlan(), test.ShouldBeEmpty)

	// skipped updates are consumed.
	result, err = c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, Unchanged)
}

func TestReconcilePlanFailed(t *testing.T) {
	ctx := context.Background()
	c, planner, sink := newTestCoordinator(t, allValid)
	sink.err = errors.New("sink is down")

	c.Update(cfgPtr(0, 0, 0), cfgPtr(1, 0, 0))
	result, err := c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, Planned)
	previous := c.CompletePlan()

	planner.err = motionplan.NewPlannerFailedError()
	c.Update(nil, cfgPtr(3, 0, 0))
	result, err = c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, PlanFailed)
	test.That(t, c.CompletePlan(), test.ShouldResemble, previous)
	test.That(t, c.CurrentPlan(), test.ShouldBeNil)

	planner.err = context.DeadlineExceeded
	c.Update(nil, cfgPtr(4, 0, 0))
	result, err = c.Reconcile(ctx)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
	test.That(t, result, test.ShouldEqual, PlanFailed)
}

func TestPushGoal(t *testing.T) {
	ctx := context.Background()
	c, planner, _ := newTestCoordinator(t, allValid)

	c.PushGoal(spatialmath.NewConfiguration(2, 0, 0))
	result, err := c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, Unchanged)

	c.Update(cfgPtr(0, 0, 0), nil)
	result, err = c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, Planned)

	c.PushGoal(spatialmath.NewConfiguration(2, 2, 0))
	result, err = c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, Planned)

	test.That(t, planner.numCalls(), test.ShouldEqual, 2)
	second := planner.calls[1]
	test.That(t, second.Source.X, test.ShouldEqual, 2.)
	test.That(t, second.Source.Y, test.ShouldEqual, 0.)
	test.That(t, second.Target.Y, test.ShouldEqual, 2.)
	test.That(t, len(c.CompletePlan()), test.ShouldEqual, 6)
}

func TestGetPlan(t *testing.T) {
	ctx := context.Background()
	c, planner, _ := newTestCoordinator(t, allValid)

	resp, err := c.GetPlan(ctx, PlanRequest{
		Source: spatialmath.NewConfiguration(0, 0, 0),
		Target: spatialmath.NewConfiguration(2, 0, 0.5),
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.Success, test.ShouldBeTrue)
	test.That(t, resp.Plan, test.ShouldResemble, []float64{0, 0, 0, 1, 0, 0, 2, 0, 0.5})

	planner.err = motionplan.NewPlannerFailedError()
	resp, err = c.GetPlan(ctx, PlanRequest{
		Source: spatialmath.NewConfiguration(0, 0, 0),
		Target: spatialmath.NewConfiguration(3, 0, 0),
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.Success, test.ShouldBeFalse)
	test.That(t, resp.Plan, test.ShouldBeEmpty)
}

func TestConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	c, planner, _ := newTestCoordinator(t, allValid)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Update(cfgPtr(0, 0, 0), cfgPtr(float64(i+1), 0, 0))
		}(i)
	}
	wg.Wait()

	result, err := c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, Planned)
	result, err = c.Reconcile(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result, test.ShouldEqual, Unchanged)
	test.That(t, planner.numCalls(), test.ShouldEqual, 1)
}

func TestSchedule(t *testing.T) {
	logger := logging.NewTestLogger(t)
	jm, err := jobmanager.New(logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, jm.Shutdown(), test.ShouldBeNil)
	}()

	c, planner, _ := newTestCoordinator(t, allValid)
	test.That(t, c.Schedule(jm, time.Hour), test.ShouldBeNil)
	jm.Start()

	// an update triggers a reconcile without waiting for the interval.
	c.Update(cfgPtr(0, 0, 0), cfgPtr(1, 1, 0))
	deadline := time.Now().Add(5 * time.Second)
	for planner.numCalls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	test.That(t, planner.numCalls(), test.ShouldEqual, 1)
	test.That(t, c.Schedule(jm, time.Hour), test.ShouldNotBeNil)
}

func TestResultString(t *testing.T) {
	test.That(t, Planned.String(), test.ShouldEqual, "planned")
	test.That(t, SkippedSame.String(), test.ShouldEqual, "skipped_same")
	test.That(t, Result(42).String(), test.ShouldEqual, "result(42)")
}
