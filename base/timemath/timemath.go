package timemath

import (
	"time"
)

const (
	UsecPerSec    int64 = 1_000_000
	UsecPerMinute int64 = 60 * UsecPerSec
)

func Duration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func Seconds(duration time.Duration) float64 {
	return float64(duration) / float64(time.Second)
}

// UsecFromTime converts t to whole microseconds since the Unix epoch.
// Sub-microsecond precision is dropped here and only here; all further
// arithmetic on the result stays in a single microsecond accumulator.
func UsecFromTime(t time.Time) int64 {
	return t.Unix()*UsecPerSec + int64(t.Nanosecond())/1000
}

func TimeFromUsec(usec int64) time.Time {
	sec, frac := SplitUsec(usec)
	return time.Unix(sec, frac*1000).UTC()
}

// SplitUsec splits a microsecond count into whole seconds and a
// non-negative sub-second fraction in [0, 999999].
func SplitUsec(usec int64) (sec, frac int64) {
	sec = usec / UsecPerSec
	frac = usec % UsecPerSec
	if frac < 0 {
		sec -= 1
		frac += UsecPerSec
	}
	return
}

// UsecToNextMinute returns the number of microseconds from t to the next
// minute boundary. The result is in (0, 60_000_000].
func UsecToNextMinute(t time.Time) int64 {
	u := UsecFromTime(t)
	r := u % UsecPerMinute
	if r < 0 {
		r += UsecPerMinute
	}
	return UsecPerMinute - r
}
