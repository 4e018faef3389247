//go:build !linux

package clock

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"example.com/epd-clock/base/timebase"
)

// SystemClock adapts the host clock to the DeviceClock interface. On
// platforms without a settable system clock it keeps the correction as a
// process-local offset.
type SystemClock struct {
	Log    *zap.Logger
	mu     sync.Mutex
	epoch  uint64
	offset time.Duration
}

var _ timebase.DeviceClock = (*SystemClock)(nil)

func (c *SystemClock) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *SystemClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Add(c.offset).UTC()
}

func (c *SystemClock) SetTime(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = time.Until(t)
	c.epoch++
	c.Log.Debug("SystemClock.SetTime", zap.Time("to", t), zap.Duration("offset", c.offset))
	return nil
}

func (c *SystemClock) Sleep(duration time.Duration) {
	c.Log.Debug("SystemClock.Sleep", zap.Duration("duration", duration))
	time.Sleep(duration)
}
