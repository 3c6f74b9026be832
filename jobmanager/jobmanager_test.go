package jobmanager

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/gridnav/logging"
)

func TestTrigger(t *testing.T) {
	jm, err := New(logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, jm.Shutdown(), test.ShouldBeNil)
	}()

	ran := make(chan error, 1)
	err = jm.AddIntervalJob("reconcile", time.Hour, func(ctx context.Context) {
		ran <- ctx.Err()
	})
	test.That(t, err, test.ShouldBeNil)
	jm.Start()

	test.That(t, jm.Trigger("reconcile"), test.ShouldBeNil)
	select {
	case err := <-ran:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}

	test.That(t, jm.Trigger("missing"), test.ShouldNotBeNil)
}

func TestIntervalJob(t *testing.T) {
	jm, err := New(logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	var runs atomic.Int32
	test.That(t, jm.AddIntervalJob("tick", 10*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	}), test.ShouldBeNil)
	jm.Start()

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	test.That(t, int(runs.Load()), test.ShouldBeGreaterThanOrEqualTo, 3)
	test.That(t, jm.Shutdown(), test.ShouldBeNil)
}

func TestAddJobErrors(t *testing.T) {
	jm, err := New(logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, jm.Shutdown(), test.ShouldBeNil)
	}()
	noop := func(context.Context) {}

	test.That(t, jm.AddIntervalJob("a", 0, noop), test.ShouldNotBeNil)
	test.That(t, jm.AddJob(JobConfig{Schedule: "1s"}, noop), test.ShouldNotBeNil)
	test.That(t, jm.AddJob(JobConfig{Name: "bad", Schedule: "not a schedule"}, noop), test.ShouldNotBeNil)

	test.That(t, jm.AddJob(JobConfig{Name: "cron", Schedule: "*/5 * * * *"}, noop), test.ShouldBeNil)
	err = jm.AddJob(JobConfig{Name: "cron", Schedule: "1s"}, noop)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "already exists")

	test.That(t, jm.RemoveJob("cron"), test.ShouldBeNil)
	test.That(t, jm.RemoveJob("cron"), test.ShouldNotBeNil)
}
