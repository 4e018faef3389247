//go:build linux

package clock

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"golang.org/x/sys/unix"

	"example.com/epd-clock/base/timebase"
)

// SystemClock adapts CLOCK_REALTIME to the DeviceClock interface.
// Setting the clock requires the appropriate capability; a failure is
// returned, not fatal, since the caller continues on restored time.
type SystemClock struct {
	Log   *zap.Logger
	mu    sync.Mutex
	epoch uint64
}

var _ timebase.DeviceClock = (*SystemClock)(nil)

func now(log *zap.Logger) time.Time {
	var ts unix.Timespec
	err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts)
	if err != nil {
		log.Fatal("unix.ClockGettime failed", zap.Error(err))
	}
	return time.Unix(ts.Unix()).UTC()
}

func (c *SystemClock) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *SystemClock) Now() time.Time {
	return now(c.Log)
}

func (c *SystemClock) SetTime(t time.Time) error {
	c.Log.Debug("setting clock", zap.Time("to", t))
	ts, err := unix.TimeToTimespec(t)
	if err != nil {
		return err
	}
	err = unix.ClockSettime(unix.CLOCK_REALTIME, &ts)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.epoch++
	c.mu.Unlock()
	return nil
}

// Sleep blocks on an absolute CLOCK_REALTIME timer so that clock steps
// during the sleep shorten or lengthen it the way a hardware wake alarm
// would.
func (c *SystemClock) Sleep(duration time.Duration) {
	log := c.Log
	log.Debug("SystemClock.Sleep", zap.Duration("duration", duration))
	fd, err := unix.TimerfdCreate(unix.CLOCK_REALTIME, unix.TFD_NONBLOCK)
	if err != nil {
		log.Fatal("unix.TimerfdCreate failed", zap.Error(err))
	}
	ts, err := unix.TimeToTimespec(now(log).Add(duration))
	if err != nil {
		log.Fatal("unix.TimeToTimespec failed", zap.Error(err))
	}
	err = unix.TimerfdSettime(fd, unix.TFD_TIMER_ABSTIME, &unix.ItimerSpec{Value: ts}, nil /* oldValue */)
	if err != nil {
		log.Fatal("unix.TimerfdSettime failed", zap.Error(err))
	}
	if fd < math.MinInt32 || math.MaxInt32 < fd {
		log.Fatal("unix.TimerfdCreate returned unexpected value")
	}
	pollFds := []unix.PollFd{
		{Fd: int32(fd), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(pollFds, -1 /* timeout */)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			log.Fatal("unix.Poll failed", zap.Error(err))
		}
		break
	}
	_ = unix.Close(fd)
}
