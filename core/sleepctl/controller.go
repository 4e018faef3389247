// Package sleepctl computes how long to suspend so that the next cycle's
// active work completes right at a minute boundary.
package sleepctl

import (
	"time"

	"go.uber.org/zap"

	"example.com/epd-clock/base/timemath"
)

const (
	MinProcessingMs = 1000.0
	MaxProcessingMs = 20000.0

	lateThresholdSec = 0.1
	feedbackGain     = 0.5
)

// NextSleepUsec returns the sleep duration that wakes the device
// estProcessingMs before the next minute boundary. When the boundary is
// already closer than the processing estimate, the following boundary is
// targeted instead; the result is always positive.
func NextSleepUsec(now time.Time, estProcessingMs float64) int64 {
	sleep := timemath.UsecToNextMinute(now) - int64(estProcessingMs*1000.0)
	if sleep <= 0 {
		sleep += timemath.UsecPerMinute
	}
	return sleep
}

// UpdateEstimate folds one cycle's measured completion delay into the
// processing-time estimate. delaySec is positive when the cycle finished
// past the boundary and negative when it woke early and had to wait.
// Cycles that performed a sync are skipped: the clock stepped
// discontinuously, so the measured delay is meaningless.
func UpdateEstimate(log *zap.Logger, estMs, delaySec float64, performedSync bool) float64 {
	if performedSync {
		log.Debug("skipping processing estimate update after sync",
			zap.Float64("delay_sec", delaySec),
		)
		return clamp(estMs)
	}
	switch {
	case delaySec < 0:
		estMs -= -delaySec * feedbackGain * 1000.0
	case delaySec > lateThresholdSec:
		estMs += delaySec * feedbackGain * 1000.0
	}
	estMs = clamp(estMs)
	log.Debug("processing estimate updated",
		zap.Float64("delay_sec", delaySec),
		zap.Float64("estimate_ms", estMs),
	)
	return estMs
}

func clamp(estMs float64) float64 {
	if estMs < MinProcessingMs {
		return MinProcessingMs
	}
	if estMs > MaxProcessingMs {
		return MaxProcessingMs
	}
	return estMs
}
