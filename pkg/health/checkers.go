package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails once more than limit goroutines are running.
// Every pricing request holds at most one, so a steady climb means a leak.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines running, limit %d", n, limit)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when one of the recent stop-the-world pauses took
// longer than limit.
func GCMaxPauseCheck(limit time.Duration) CheckFunc {
	return func(_ context.Context) error {
		var gc debug.GCStats
		debug.ReadGCStats(&gc)

		if worst := maxPause(gc.Pause); worst > limit {
			return errors.Errorf("gc paused for %s, limit %s", worst, limit)
		}
		return nil
	}
}

func maxPause(pauses []time.Duration) time.Duration {
	var worst time.Duration
	for _, p := range pauses {
		worst = max(worst, p)
	}
	return worst
}
