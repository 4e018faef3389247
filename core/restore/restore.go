// Package restore reconstructs wall-clock time after a wake from deep
// sleep, from the persisted state and the measured boot overhead.
package restore

import (
	"math"
	"time"

	"example.com/epd-clock/base/timemath"
	"example.com/epd-clock/core/clockstate"
)

// CompensationUsec returns the drift compensation to apply for a sleep of
// the given length at the given rate. The product is formed in float64 and
// converted to microseconds exactly once; compensating term by term in
// truncated units loses up to a second per cycle.
func CompensationUsec(sleepUsec int64, rateMsPerMin float64) int64 {
	if sleepUsec <= 0 {
		return 0
	}
	comp := float64(sleepUsec) / float64(timemath.UsecPerMinute) * rateMsPerMin * 1000.0
	return int64(math.Round(comp))
}

// Restored computes the wall-clock instant of this wake in a single
// microsecond accumulator and returns it together with the compensation
// that went into it. It never fails; uncalibrated state just yields a less
// accurate result.
func Restored(s *clockstate.State, bootOverheadUsec int64) (time.Time, int64) {
	comp := CompensationUsec(s.PlannedSleepUsec, s.DriftRateMsPerMin)
	wakeup := s.SavedTimeSec*timemath.UsecPerSec + s.SavedTimeUsec +
		s.PlannedSleepUsec + bootOverheadUsec + comp
	return timemath.TimeFromUsec(wakeup), comp
}
