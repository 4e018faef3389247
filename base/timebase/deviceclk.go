package timebase

import (
	"time"
)

// DeviceClock is the wall clock of the device. Epoch increments whenever
// the clock is set discontinuously, invalidating intervals measured across
// the step.
type DeviceClock interface {
	Epoch() uint64
	Now() time.Time
	SetTime(t time.Time) error
	Sleep(duration time.Duration)
}
