package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

type bufferSyncer struct {
	bytes.Buffer
}

func (b *bufferSyncer) Sync() error { return nil }

func TestObservedLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	planner := logger.Sublogger("planner")

	planner.Infow("plan complete", "waypoints", 12)
	planner.Debug("computing plan")

	test.That(t, logs.Len(), test.ShouldEqual, 2)
	entries := logs.All()
	test.That(t, entries[0].Message, test.ShouldEqual, "plan complete")
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "planner")
	test.That(t, entries[0].ContextMap()["waypoints"], test.ShouldEqual, int64(12))
	test.That(t, entries[1].Level, test.ShouldEqual, zapcore.DebugLevel)
	test.That(t, logs.FilterMessageSnippet("computing").Len(), test.ShouldEqual, 1)
}

func TestLevelFiltering(t *testing.T) {
	var sink bufferSyncer
	logger := NewBlankLogger("tracker")
	logger.AddAppender(NewWriterAppender(&sink))
	logger.SetLevel(WARN)

	logger.Info("dropped")
	logger.Debugf("dropped %d", 1)
	logger.Warnf("kept %d", 2)

	out := sink.String()
	test.That(t, strings.Contains(out, "dropped"), test.ShouldBeFalse)
	test.That(t, strings.Contains(out, "kept 2"), test.ShouldBeTrue)
	test.That(t, strings.Contains(out, "WARN"), test.ShouldBeTrue)
	test.That(t, strings.Contains(out, "tracker"), test.ShouldBeTrue)

	sink.Reset()
	logger.CDebugf(EnableDebugMode(context.Background(), ""), "forced %s", "debug")
	test.That(t, strings.Contains(sink.String(), "forced debug"), test.ShouldBeTrue)
}

func TestStructuredFields(t *testing.T) {
	var sink bufferSyncer
	logger := NewBlankLogger("")
	logger.AddAppender(NewWriterAppender(&sink))

	logger.Errorw("could not compute a plan", "source", []float64{1, 2}, "dangling")
	out := strings.TrimSpace(sink.String())
	parts := strings.Split(out, "\t")
	test.That(t, parts[len(parts)-2], test.ShouldEqual, "could not compute a plan")
	test.That(t, parts[len(parts)-1], test.ShouldContainSubstring, `"source":[1,2]`)
	test.That(t, parts[len(parts)-1], test.ShouldContainSubstring, "unpaired log key")
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
		errs     bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"warning", WARN, false},
		{"Error", ERROR, false},
		{"loud", DEBUG, true},
	} {
		level, err := LevelFromString(tc.in)
		if tc.errs {
			test.That(t, err, test.ShouldNotBeNil)
			continue
		}
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
	}

	var level Level
	test.That(t, level.UnmarshalJSON([]byte(`"warn"`)), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	raw, err := level.MarshalJSON()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(raw), test.ShouldEqual, `"Warn"`)
}

func TestDebugModeContext(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.SetLevel(INFO)

	logger.CDebugw(context.Background(), "lattice search exhausted", "round", 1)
	test.That(t, logs.Len(), test.ShouldEqual, 0)

	ctx := EnableDebugMode(context.Background(), "plan-7")
	key, ok := DebugKey(ctx)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, key, test.ShouldEqual, "plan-7")

	logger.CDebugw(ctx, "lattice search exhausted", "round", 2)
	logger.Infow("plan complete")
	entries := logs.All()
	test.That(t, len(entries), test.ShouldEqual, 2)
	test.That(t, entries[0].ContextMap()["debug_key"], test.ShouldEqual, "plan-7")
	test.That(t, entries[0].ContextMap()["round"], test.ShouldEqual, int64(2))
	test.That(t, entries[0].Caller.File, test.ShouldEqual, "logging/impl_test.go")
	_, tagged := entries[1].ContextMap()["debug_key"]
	test.That(t, tagged, test.ShouldBeFalse)

	generated, ok := DebugKey(EnableDebugMode(context.Background(), ""))
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, len(generated), test.ShouldEqual, 8)
	test.That(t, IsDebugMode(context.Background()), test.ShouldBeFalse)
}

func TestSubloggersShareAppenders(t *testing.T) {
	logger := NewBlankLogger("planner")
	collision := logger.Sublogger("collision")
	collision.SetLevel(WARN)

	var sink bufferSyncer
	logger.AddAppender(NewWriterAppender(&sink))

	collision.Info("dropped")
	collision.Warn("target in collision, will not plan")
	logger.Info("serving")

	out := sink.String()
	test.That(t, out, test.ShouldNotContainSubstring, "dropped")
	test.That(t, out, test.ShouldContainSubstring, "planner.collision")
	test.That(t, out, test.ShouldContainSubstring, "target in collision")
	test.That(t, out, test.ShouldContainSubstring, "serving")
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
	test.That(t, logger.Sync(), test.ShouldBeNil)
}
