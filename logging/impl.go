package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip is the number of frames between a Logger method's caller and callerOf.
const callerSkip = 3

var (
	errUnpairedKey = errors.New("unpaired log key")
	noContext      = context.Background()
)

// appenderSet is shared by a logger and all of its subloggers, so an appender added to any of
// them (the planner's log file, say) reaches every component.
type appenderSet struct {
	mu        sync.RWMutex
	appenders []Appender
}

func (s *appenderSet) add(appender Appender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appenders = append(s.appenders, appender)
}

func (s *appenderSet) write(entry zapcore.Entry, fields []zapcore.Field) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, appender := range s.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (s *appenderSet) sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var err error
	for _, appender := range s.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

type impl struct {
	name  string
	level AtomicLevel
	out   *appenderSet
	clock func() time.Time
}

func newImpl(name string, level Level, appenders ...Appender) *impl {
	return &impl{
		name:  name,
		level: NewAtomicLevelAt(level),
		out:   &appenderSet{appenders: appenders},
		clock: func() time.Time { return time.Now().UTC() },
	}
}

func (imp *impl) AddAppender(appender Appender) {
	imp.out.add(appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

// Sublogger starts at the parent's current level and then moves independently of it.
func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:  name,
		level: NewAtomicLevelAt(imp.level.Get()),
		out:   imp.out,
		clock: imp.clock,
	}
}

func (imp *impl) Sync() error {
	return imp.out.sync()
}

func (imp *impl) enabled(ctx context.Context, level Level) bool {
	if GlobalLogLevel.Level() == zapcore.DebugLevel || level >= imp.level.Get() {
		return true
	}
	return IsDebugMode(ctx)
}

// emit writes one entry. Entries let through only by a debug-mode context carry its key so the
// lines of a single request can be picked out.
func (imp *impl) emit(ctx context.Context, level Level, msg string, fields []zapcore.Field) {
	if level < imp.level.Get() {
		if key, ok := DebugKey(ctx); ok {
			fields = append(fields, zap.String("debug_key", key))
		}
	}
	imp.out.write(zapcore.Entry{
		Level:      level.AsZap(),
		Time:       imp.clock(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     callerOf(callerSkip),
	}, fields)
}

func (imp *impl) print(ctx context.Context, level Level, args []interface{}) {
	if imp.enabled(ctx, level) {
		imp.emit(ctx, level, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) printf(ctx context.Context, level Level, template string, args []interface{}) {
	if imp.enabled(ctx, level) {
		imp.emit(ctx, level, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) printw(ctx context.Context, level Level, msg string, keysAndValues []interface{}) {
	if imp.enabled(ctx, level) {
		imp.emit(ctx, level, msg, fieldsOf(keysAndValues))
	}
}

// fieldsOf pairs up alternating keys and values. A trailing key without a value is kept with an
// error in its place.
func fieldsOf(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.NamedError(key, errUnpairedKey))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) { imp.print(noContext, DEBUG, args) }

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.printf(noContext, DEBUG, template, args)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.printw(noContext, DEBUG, msg, keysAndValues)
}

func (imp *impl) CDebug(ctx context.Context, args ...interface{}) { imp.print(ctx, DEBUG, args) }

func (imp *impl) CDebugf(ctx context.Context, template string, args ...interface{}) {
	imp.printf(ctx, DEBUG, template, args)
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	imp.printw(ctx, DEBUG, msg, keysAndValues)
}

func (imp *impl) Info(args ...interface{}) { imp.print(noContext, INFO, args) }

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.printf(noContext, INFO, template, args)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.printw(noContext, INFO, msg, keysAndValues)
}

func (imp *impl) Warn(args ...interface{}) { imp.print(noContext, WARN, args) }

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.printf(noContext, WARN, template, args)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.printw(noContext, WARN, msg, keysAndValues)
}

func (imp *impl) Error(args ...interface{}) { imp.print(noContext, ERROR, args) }

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.printf(noContext, ERROR, template, args)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.printw(noContext, ERROR, msg, keysAndValues)
}

// The Fatal methods always log at ERROR, flush the appenders, then exit.
func (imp *impl) Fatal(args ...interface{}) {
	imp.fatal(fmt.Sprint(args...), nil)
}

func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.fatal(fmt.Sprintf(template, args...), nil)
}

func (imp *impl) Fatalw(msg string, keysAndValues ...interface{}) {
	imp.fatal(msg, fieldsOf(keysAndValues))
}

func (imp *impl) fatal(msg string, fields []zapcore.Field) {
	imp.emit(noContext, ERROR, msg, fields)
	//nolint:errcheck
	imp.Sync()
	os.Exit(1)
}

// callerOf reports the frame skip levels above its caller, trimmed to "<package>/<file>".
func callerOf(skip int) zapcore.EntryCaller {
	pcs := make([]uintptr, 1)
	if runtime.Callers(skip+2, pcs) == 0 {
		return zapcore.EntryCaller{}
	}
	frame, _ := runtime.CallersFrames(pcs).Next()
	file := frame.File
	if i := strings.LastIndex(file, "/"); i >= 0 {
		if j := strings.LastIndex(file[:i], "/"); j >= 0 {
			file = file[j+1:]
		}
	}
	return zapcore.EntryCaller{
		Defined:  true,
		PC:       frame.PC,
		File:     file,
		Line:     frame.Line,
		Function: frame.Function,
	}
}
