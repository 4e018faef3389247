package timebase

import (
	"sync/atomic"
	"time"

	"example.com/epd-clock/base/timebase"
)

var (
	dclk atomic.Value
)

func RegisterClock(c timebase.DeviceClock) {
	if c == nil {
		panic("device clock must not be nil")
	}
	swapped := dclk.CompareAndSwap(nil, c)
	if !swapped {
		panic("device clock already registered")
	}
}

func Now() time.Time {
	c := dclk.Load().(timebase.DeviceClock)
	if c == nil {
		panic("no device clock registered")
	}
	return c.Now()
}

func Epoch() uint64 {
	c := dclk.Load().(timebase.DeviceClock)
	if c == nil {
		panic("no device clock registered")
	}
	return c.Epoch()
}
