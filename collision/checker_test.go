package collision

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/gridnav/logging"
	"go.viam.com/gridnav/occupancy"
	"go.viam.com/gridnav/spatialmath"
)

// newTestChecker returns a checker over a free 20x20 grid at 0.1m resolution with the given cells
// occupied. The car footprint spans two cells in each direction.
func newTestChecker(t *testing.T, occupied ...spatialmath.GridCoordinate) *Checker {
	t.Helper()
	info := occupancy.MapInfo{Resolution: 0.1, Width: 20, Height: 20, Origin: spatialmath.NewPlanarPose(0, 0, 0)}
	data := make([]byte, info.Width*info.Height)
	for i := range data {
		data[i] = occupancy.RawFree
	}
	for _, cell := range occupied {
		data[cell.Row*info.Width+cell.Col] = occupancy.RawOccupied
	}
	grid, err := occupancy.NewGrid(info, data)
	test.That(t, err, test.ShouldBeNil)
	checker, err := NewChecker(grid, 0.4, 0.4, 0.25, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return checker
}

func TestNewChecker(t *testing.T) {
	logger := logging.NewTestLogger(t)
	grid, err := occupancy.NewGrid(occupancy.MapInfo{Resolution: 0.05, Width: 1, Height: 1}, []byte{1})
	test.That(t, err, test.ShouldBeNil)

	_, err = NewChecker(nil, 1, 1, 0.1, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewChecker(grid, 1, 1, 0, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewChecker(grid, 0, 1, 0.1, logger)
	test.That(t, err, test.ShouldNotBeNil)

	// the width never contributes to the footprint.
	checker, err := NewChecker(grid, 0.1, 0.4, 0.1, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, checker.Footprint(), test.ShouldResemble, Footprint{WidthHalf: 4, LengthHalf: 4})
	test.That(t, checker.CollisionDelta(), test.ShouldEqual, 0.1)
}

func TestValidateConfiguration(t *testing.T) {
	checker := newTestChecker(t, spatialmath.GridCoordinate{Col: 10, Row: 10})
	test.That(t, checker.Footprint().LengthHalf, test.ShouldEqual, 2)

	t.Run("free", func(t *testing.T) {
		test.That(t, checker.ValidateConfiguration(spatialmath.NewConfiguration(0.55, 0.55, 1.2)), test.ShouldBeTrue)
		test.That(t, checker.Reason(spatialmath.NewPosition(0.55, 0.55)), test.ShouldBeNil)
	})

	t.Run("out of bounds", func(t *testing.T) {
		for _, cfg := range []spatialmath.Configuration{
			spatialmath.NewPosition(0.15, 0.5),
			spatialmath.NewPosition(1.85, 0.5),
			spatialmath.NewPosition(0.5, 1.85),
			spatialmath.NewPosition(-3, -3),
		} {
			err := checker.Reason(cfg)
			test.That(t, errors.Is(err, ErrOutOfBounds), test.ShouldBeTrue)
			test.That(t, checker.ValidateConfiguration(cfg), test.ShouldBeFalse)
		}
	})

	t.Run("occupied center", func(t *testing.T) {
		err := checker.Reason(spatialmath.NewPosition(1.05, 1.05))
		test.That(t, errors.Is(err, ErrOccupied), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "(10, 10)")
	})

	t.Run("occupied corner", func(t *testing.T) {
		err := checker.Reason(spatialmath.NewPosition(1.25, 1.25))
		test.That(t, errors.Is(err, ErrOccupied), test.ShouldBeTrue)
		test.That(t, checker.ValidateConfiguration(spatialmath.NewPosition(0.85, 1.25)), test.ShouldBeFalse)
	})

	t.Run("only five points are sampled", func(t *testing.T) {
		// cell (10, 10) is inside the footprint of (11, 11) but is neither its center nor a corner.
		test.That(t, checker.ValidateConfiguration(spatialmath.NewPosition(1.15, 1.15)), test.ShouldBeTrue)
	})
}

func TestEdgeSteps(t *testing.T) {
	for _, tc := range []struct {
		edge     Edge
		delta    float64
		expected int
	}{
		{Edge{spatialmath.NewPosition(0, 0), spatialmath.NewPosition(1, 0)}, 0.25, 4},
		{Edge{spatialmath.NewPosition(0, 0), spatialmath.NewPosition(0, 0.75)}, 0.25, 3},
		{Edge{spatialmath.NewPosition(0, 0), spatialmath.NewPosition(3, 4)}, 1, 5},
		{Edge{spatialmath.NewPosition(0, 0), spatialmath.NewPosition(0.2, 0)}, 0.25, 0},
		{Edge{spatialmath.NewPosition(1, 1), spatialmath.NewPosition(1, 1)}, 0.25, 0},
		{Edge{spatialmath.NewPosition(0, 0), spatialmath.NewPosition(1e18, 0)}, 0.25, 0},
		{Edge{spatialmath.NewPosition(0, 0), spatialmath.NewPosition(math.NaN(), 0)}, 0.25, 0},
		{Edge{spatialmath.NewPosition(math.Inf(-1), 0), spatialmath.NewPosition(0, 0)}, 0.25, 0},
	} {
		test.That(t, tc.edge.Steps(tc.delta), test.ShouldEqual, tc.expected)
		test.That(t, len(tc.edge.Discretize(tc.delta)), test.ShouldEqual, tc.expected)
	}

	samples := Edge{spatialmath.NewPosition(0, 0), spatialmath.NewPosition(0, 1)}.Discretize(0.25)
	test.That(t, samples[0].X, test.ShouldAlmostEqual, 0)
	test.That(t, samples[0].Y, test.ShouldAlmostEqual, 0)
	test.That(t, samples[3].Y, test.ShouldAlmostEqual, 0.75)
	test.That(t, samples[3].Theta, test.ShouldAlmostEqual, math.Pi/2)
}

func TestValidateEdge(t *testing.T) {
	checker := newTestChecker(t,
		spatialmath.GridCoordinate{Col: 10, Row: 10},
		spatialmath.GridCoordinate{Col: 10, Row: 5},
	)

	t.Run("free", func(t *testing.T) {
		a, b := spatialmath.NewPosition(0.5, 1.5), spatialmath.NewPosition(1.5, 1.5)
		test.That(t, checker.ValidateEdge(a, b), test.ShouldBeTrue)
		test.That(t, len(checker.DiscretizeEdge(a, b)), test.ShouldEqual, 4)
	})

	t.Run("blocked in the middle", func(t *testing.T) {
		a, b := spatialmath.NewPosition(0.5, 0.55), spatialmath.NewPosition(1.55, 0.55)
		test.That(t, checker.ValidateConfiguration(a), test.ShouldBeTrue)
		test.That(t, checker.ValidateConfiguration(b), test.ShouldBeTrue)
		test.That(t, checker.ValidateEdge(a, b), test.ShouldBeFalse)
	})

	t.Run("endpoint is always checked", func(t *testing.T) {
		b := spatialmath.NewPosition(1.05, 1.05)
		test.That(t, checker.ValidateConfiguration(b), test.ShouldBeFalse)
		// shorter than the collision delta, so there are no stepped samples.
		short := spatialmath.NewPosition(1.0, 1.0)
		test.That(t, checker.DiscretizeEdge(short, b), test.ShouldBeEmpty)
		test.That(t, checker.ValidateEdge(short, b), test.ShouldBeFalse)
		test.That(t, checker.ValidateEdge(spatialmath.NewPosition(0.5, 1.05), b), test.ShouldBeFalse)
	})

	t.Run("far and non-finite endpoints", func(t *testing.T) {
		inside := spatialmath.NewPosition(0.5, 1.5)
		for _, far := range []spatialmath.Configuration{
			spatialmath.NewPosition(1e18, 0),
			spatialmath.NewPosition(-1e300, 1e300),
			spatialmath.NewPosition(math.NaN(), 1),
			spatialmath.NewPosition(1, math.Inf(1)),
		} {
			test.That(t, checker.ValidateConfiguration(far), test.ShouldBeFalse)
			test.That(t, errors.Is(checker.Reason(far), ErrOutOfBounds), test.ShouldBeTrue)
			test.That(t, checker.ValidateEdge(inside, far), test.ShouldBeFalse)
			test.That(t, checker.ValidateEdge(far, inside), test.ShouldBeFalse)
			test.That(t, checker.DiscretizeEdge(inside, far), test.ShouldBeEmpty)
		}
	})
}
