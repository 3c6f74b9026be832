package utils

import (
	"context"
	"time"

	goutils "go.viam.com/utils"

	"go.viam.com/gridnav/logging"
)

// slowLogIntervals are the waits before the first, second and every later warning.
var slowLogIntervals = [3]time.Duration{2 * time.Second, 3 * time.Second, 5 * time.Second}

// SlowLogger warns with msg, the given field and the elapsed time until the returned stop
// function is called or ctx is done. The first warning comes after two seconds.
func SlowLogger(ctx context.Context, msg, fieldName, fieldVal string, logger logging.Logger) func() {
	intervals := slowLogIntervals
	slowTicker := time.NewTicker(intervals[0])
	ticks := 0

	ctxWithCancel, cancel := context.WithCancel(ctx)
	startTime := time.Now()
	goutils.PanicCapturingGo(func() {
		for {
			select {
			case <-slowTicker.C:
				elapsed := time.Since(startTime).Round(time.Millisecond).String()
				logger.Warnw(msg, fieldName, fieldVal, "time_elapsed", elapsed)
				ticks++
				slowTicker.Reset(intervals[min(ticks, len(intervals)-1)])
			case <-ctxWithCancel.Done():
				return
			}
		}
	})
	return func() { slowTicker.Stop(); cancel() }
}
