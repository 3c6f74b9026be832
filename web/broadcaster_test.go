package web

import (
	"context"
	"testing"

	"go.viam.com/test"

	"go.viam.com/gridnav/spatialmath"
)

func TestBroadcaster(t *testing.T) {
	ctx := context.Background()
	b := NewBroadcaster()
	test.That(t, b.Latest(), test.ShouldBeNil)

	first := []spatialmath.Configuration{spatialmath.NewConfiguration(0, 0, 0)}
	second := []spatialmath.Configuration{spatialmath.NewConfiguration(1, 0, 0)}
	third := []spatialmath.Configuration{spatialmath.NewConfiguration(2, 0, 0)}

	early, earlyCh := b.Subscribe()
	test.That(t, b.PublishPlan(ctx, first), test.ShouldBeNil)
	test.That(t, <-earlyCh, test.ShouldResemble, first)

	// an unread emission is replaced by the newer one
	test.That(t, b.PublishPlan(ctx, second), test.ShouldBeNil)
	test.That(t, b.PublishPlan(ctx, third), test.ShouldBeNil)
	test.That(t, <-earlyCh, test.ShouldResemble, third)
	select {
	case <-earlyCh:
		t.Fatal("expected a single buffered emission")
	default:
	}

	// late subscribers start from the latest emission
	late, lateCh := b.Subscribe()
	test.That(t, <-lateCh, test.ShouldResemble, third)
	test.That(t, b.NumSubscribers(), test.ShouldEqual, 2)

	b.Unsubscribe(early)
	_, ok := <-earlyCh
	test.That(t, ok, test.ShouldBeFalse)
	b.Unsubscribe(late)
	b.Unsubscribe(late)
	test.That(t, b.NumSubscribers(), test.ShouldEqual, 0)
	test.That(t, b.Latest(), test.ShouldResemble, third)
}

func TestMessages(t *testing.T) {
	pose, err := NewPoseMessage(spatialmath.NewConfiguration(1, 2, 0.5)).Configuration()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose, test.ShouldResemble, spatialmath.NewConfiguration(1, 2, 0.5))

	pose, err = NewPoseMessage(spatialmath.NewPosition(1, 2)).Configuration()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.HasTheta, test.ShouldBeFalse)

	_, err = PoseMessage{Position: []float64{1}}.Configuration()
	test.That(t, err, test.ShouldNotBeNil)

	_, err = PlanMessage{Plan: [][]float64{{0, 0, 0}, {1}}}.Configurations()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "waypoint 1")
}
