// Package drift maintains the oscillator drift-rate estimate,
// recalibrated opportunistically whenever a sync provides ground truth.
package drift

import (
	"time"

	"go.uber.org/zap"

	"example.com/epd-clock/base/timemath"
	"example.com/epd-clock/core/clockstate"
)

const (
	emaOldWeight = 0.7
	emaNewWeight = 0.3

	// Physical envelope for this oscillator class. Rates outside it come
	// from corrupt state or pathological sync results, not from silicon.
	RateMinMsPerMin = 0.0
	RateMaxMsPerMin = 500.0
)

type Result struct {
	ResidualMs       float64
	TrueRateMsPerMin float64
	Applied          bool
	Anomalous        bool
}

// Recalibrate folds a successful sync into the drift-rate estimate.
//
// The residual measured at sync time already reflects the compensation
// applied to restored time during the elapsed interval; adding the
// accumulated compensation back recovers the raw oscillator error.
// The rate update is skipped when less than a minute of reference time
// elapsed since the previous sync (first sync ever included). The
// compensation accumulator is reset on every successful sync regardless,
// since the new reference time restarts the compensation baseline.
func Recalibrate(log *zap.Logger, s *clockstate.State,
	syncedTime time.Time, syncDuration time.Duration) Result {
	var r Result

	syncedUsec := timemath.UsecFromTime(syncedTime)
	rtcUsec := s.RTCBeforeSyncSec*timemath.UsecPerSec + s.RTCBeforeSyncUsec
	r.ResidualMs = float64(syncedUsec-rtcUsec)/1000.0 -
		float64(syncDuration.Milliseconds())

	cumCompMs := s.CumulativeCompMs
	trueDriftMs := r.ResidualMs + float64(cumCompMs)

	minutesElapsed := 0.0
	if s.LastSyncSec != 0 {
		minutesElapsed = float64(syncedTime.Unix()-s.LastSyncSec) / 60.0
	}

	if minutesElapsed >= 1.0 {
		r.TrueRateMsPerMin = trueDriftMs / minutesElapsed
		if r.TrueRateMsPerMin < RateMinMsPerMin || r.TrueRateMsPerMin > RateMaxMsPerMin {
			r.Anomalous = true
			log.Warn("discarding out-of-range drift rate",
				zap.Float64("rtc_drift_ms", r.ResidualMs),
				zap.Int64("cumulative_comp_ms", cumCompMs),
				zap.Float64("rate", r.TrueRateMsPerMin),
			)
		} else {
			s.DriftRateMsPerMin = emaOldWeight*s.DriftRateMsPerMin +
				emaNewWeight*r.TrueRateMsPerMin
			s.DriftRateCalibrated = true
			r.Applied = true
		}
	}

	s.CumulativeCompMs = 0
	s.LastSyncSec = syncedTime.Unix()

	log.Info("drift recalibration",
		zap.Float64("rtc_drift_ms", r.ResidualMs),
		zap.Int64("cumulative_comp_ms", cumCompMs),
		zap.Float64("drift_rate", s.DriftRateMsPerMin),
		zap.Float64("minutes_elapsed", minutesElapsed),
		zap.Bool("applied", r.Applied),
	)

	return r
}
