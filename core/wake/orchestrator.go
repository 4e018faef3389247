// Package wake sequences one wake/sleep cycle: load retained state,
// restore wall-clock time, decide on a sync, and persist state before the
// device suspends. It is the only entry point the rest of the firmware
// uses into the timekeeping core.
package wake

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.uber.org/zap"

	"example.com/epd-clock/base/metrics"
	"example.com/epd-clock/base/timebase"
	"example.com/epd-clock/base/timemath"

	"example.com/epd-clock/core/clockstate"
	"example.com/epd-clock/core/drift"
	"example.com/epd-clock/core/restore"
	"example.com/epd-clock/core/sleepctl"
)

// WakeCause is reported by the hardware when the MCU comes up.
type WakeCause int

const (
	ColdBoot WakeCause = iota
	WakeFromSleep
)

type Config struct {
	SyncTimeout time.Duration
	// ExtraSyncMinuteMarks adds sync cycles beyond the minute-0 default,
	// e.g. during calibration tuning.
	ExtraSyncMinuteMarks []int
}

// TimeSource provides ground truth: authoritative time plus the round-trip
// duration of obtaining it.
type TimeSource interface {
	FetchTime(ctx context.Context) (time.Time, time.Duration, error)
}

type wakeMetrics struct {
	cycles         prometheus.Counter
	coldBoots      prometheus.Counter
	syncs          prometheus.Counter
	syncErrors     prometheus.Counter
	driftAnomalies prometheus.Counter
	driftRate      prometheus.Gauge
	processingEst  prometheus.Gauge
}

func newWakeMetrics() *wakeMetrics {
	return &wakeMetrics{
		cycles: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.WakeCyclesN,
			Help: metrics.WakeCyclesH,
		}),
		coldBoots: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.WakeColdBootsN,
			Help: metrics.WakeColdBootsH,
		}),
		syncs: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.WakeSyncsN,
			Help: metrics.WakeSyncsH,
		}),
		syncErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.WakeSyncErrorsN,
			Help: metrics.WakeSyncErrorsH,
		}),
		driftAnomalies: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.DriftAnomaliesN,
			Help: metrics.DriftAnomaliesH,
		}),
		driftRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: metrics.DriftRateN,
			Help: metrics.DriftRateH,
		}),
		processingEst: promauto.NewGauge(prometheus.GaugeOpts{
			Name: metrics.ProcessingEstimateN,
			Help: metrics.ProcessingEstimateH,
		}),
	}
}

var wakeMtrcs atomic.Pointer[wakeMetrics]

func init() {
	wakeMtrcs.Store(newWakeMetrics())
}

type Orchestrator struct {
	log *zap.Logger
	cfg Config
	clk timebase.DeviceClock
	reg clockstate.Region
	src TimeSource

	state      clockstate.State
	stateFound bool
	cause      WakeCause
	synced     bool
}

func NewOrchestrator(log *zap.Logger, cfg Config, clk timebase.DeviceClock,
	reg clockstate.Region, src TimeSource) *Orchestrator {
	if clk == nil || reg == nil || src == nil {
		panic("orchestrator collaborators must not be nil")
	}
	return &Orchestrator{
		log: log,
		cfg: cfg,
		clk: clk,
		reg: reg,
		src: src,
	}
}

// BeginCycle is the single entry point branching on the wake cause. On a
// wake from sleep it loads retained state and restores wall-clock time
// before anything else runs; on a cold boot the clock stays unset until a
// sync succeeds.
func (o *Orchestrator) BeginCycle(cause WakeCause, bootOverheadUsec int64) {
	mtrcs := wakeMtrcs.Load()
	mtrcs.cycles.Inc()
	o.cause = cause
	o.synced = false

	if cause == ColdBoot {
		mtrcs.coldBoots.Inc()
		o.state = clockstate.Default()
		o.stateFound = false
		o.log.Info("cold boot, clock unset until first sync")
		return
	}

	o.state, o.stateFound = clockstate.Load(o.reg)
	if !o.stateFound {
		// Retained region lost or corrupt: same posture as a cold boot,
		// just with the wake cause preserved.
		o.log.Warn("retained state unavailable, using defaults")
		return
	}

	t, compUsec := restore.Restored(&o.state, bootOverheadUsec)
	o.state.CumulativeCompMs += (compUsec + 500) / 1000
	err := o.clk.SetTime(t)
	if err != nil {
		o.log.Error("failed to set clock to restored time", zap.Error(err))
	}
	o.log.Debug("restored wall-clock time",
		zap.Time("to", t),
		zap.Int64("boot_overhead_usec", bootOverheadUsec),
		zap.Int64("compensation_usec", compUsec),
	)
}

// ShouldSyncThisCycle is the terminal sync decision for the cycle.
func (o *Orchestrator) ShouldSyncThisCycle() bool {
	if o.cause == ColdBoot || !o.stateFound {
		return true
	}
	if !o.state.DriftRateCalibrated {
		return true
	}
	now := o.clk.Now()
	minute := now.Minute()
	// The marker dedupes repeated wakes within the minute of the last
	// sync; a wake in a later hour lands on a different absolute minute
	// and must sync again.
	if int8(minute) == o.state.LastSyncMinuteMark &&
		now.Unix()/60 == o.state.LastSyncSec/60 {
		return false
	}
	if minute == 0 {
		return true
	}
	for _, m := range o.cfg.ExtraSyncMinuteMarks {
		if m == minute {
			return true
		}
	}
	return false
}

// PerformSync runs one sync attempt and, on success, steps the clock and
// recalibrates the drift estimate. Failure leaves all state untouched and
// is never fatal to the cycle.
func (o *Orchestrator) PerformSync(ctx context.Context) error {
	mtrcs := wakeMtrcs.Load()

	if o.cfg.SyncTimeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.SyncTimeout)
		defer cancel()
	}

	rtc := o.clk.Now()
	rtcSec, rtcFrac := timemath.SplitUsec(timemath.UsecFromTime(rtc))

	syncedTime, syncDuration, err := o.src.FetchTime(ctx)
	if err != nil {
		mtrcs.syncErrors.Inc()
		o.log.Info("time sync failed", zap.Error(err))
		return err
	}

	o.state.RTCBeforeSyncSec = rtcSec
	o.state.RTCBeforeSyncUsec = rtcFrac

	err = o.clk.SetTime(syncedTime)
	if err != nil {
		o.log.Error("failed to set clock to synced time", zap.Error(err))
	}

	res := drift.Recalibrate(o.log, &o.state, syncedTime, syncDuration)
	if res.Anomalous {
		mtrcs.driftAnomalies.Inc()
	}
	o.state.LastSyncMinuteMark = int8(syncedTime.Minute())
	o.synced = true
	mtrcs.syncs.Inc()
	mtrcs.driftRate.Set(o.state.DriftRateMsPerMin)
	return nil
}

func (o *Orchestrator) GetWallClockNow() time.Time {
	return o.clk.Now()
}

// RecordCycleCompletion feeds the measured completion delay relative to
// the minute boundary into the processing-time estimate. delaySeconds is
// positive when the cycle finished late, negative when it woke early and
// had to wait.
func (o *Orchestrator) RecordCycleCompletion(delaySeconds float64) {
	mtrcs := wakeMtrcs.Load()
	o.state.EstProcessingMs = sleepctl.UpdateEstimate(
		o.log, o.state.EstProcessingMs, delaySeconds, o.synced)
	mtrcs.processingEst.Set(o.state.EstProcessingMs)
}

// ComputeNextSleepDuration returns the microseconds to suspend for and
// records the plan in state so the next restoration can account for it.
func (o *Orchestrator) ComputeNextSleepDuration() int64 {
	sleepUsec := sleepctl.NextSleepUsec(o.clk.Now(), o.state.EstProcessingMs)
	o.state.PlannedSleepUsec = sleepUsec
	return sleepUsec
}

// FinishCycle persists the full state. It must complete before the
// device suspends; a failed save is logged and surfaced but leaves the
// cycle free to sleep on stale state.
func (o *Orchestrator) FinishCycle() error {
	now := o.clk.Now()
	sec, frac := timemath.SplitUsec(timemath.UsecFromTime(now))
	o.state.SavedTimeSec = sec
	o.state.SavedTimeUsec = frac

	err := clockstate.Save(o.reg, &o.state)
	if err != nil {
		o.log.Error("failed to save clock state", zap.Error(err))
		return err
	}
	return nil
}

// State returns a copy of the cycle's working state.
func (o *Orchestrator) State() clockstate.State {
	return o.state
}
