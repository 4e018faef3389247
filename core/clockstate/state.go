package clockstate

import (
	"errors"
	"hash/crc32"
	"math"
)

// State is the only data that survives a sleep cycle. It lives in a small
// retained region that is zeroed on cold power loss; losing it costs
// accuracy until the next sync, never correctness.
type State struct {
	SavedTimeSec  int64
	SavedTimeUsec int64 // [0, 999999], full microsecond fraction, never truncated

	PlannedSleepUsec int64

	DriftRateMsPerMin   float64
	DriftRateCalibrated bool

	// CumulativeCompMs is the drift compensation applied to restored time
	// since the last successful sync. Reset to 0 exactly once per sync.
	CumulativeCompMs int64

	EstProcessingMs float64 // [1000, 20000]

	RTCBeforeSyncSec  int64
	RTCBeforeSyncUsec int64

	LastSyncSec        int64
	LastSyncMinuteMark int8 // minute-of-hour of the last sync, -1 when unset
}

const (
	stateMagic   = 0x45504443 // "EPDC"
	stateVersion = 1

	StateLen = 76
)

const (
	DefaultDriftRateMsPerMin = 80.0
	DefaultProcessingMs      = 10_000.0
)

var (
	errUnexpectedStateSize = errors.New("unexpected state size")
	errInvalidState        = errors.New("invalid state region")
)

// Region is the retained memory the state is stored in. An unreadable or
// invalid region reads as absent, not as an error.
type Region interface {
	Load() ([]byte, error)
	Store(b []byte) error
}

func Default() State {
	return State{
		DriftRateMsPerMin:  DefaultDriftRateMsPerMin,
		EstProcessingMs:    DefaultProcessingMs,
		LastSyncMinuteMark: -1,
	}
}

func put32(b []byte, v uint32) {
	_ = b[3]
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func put64(b []byte, v uint64) {
	_ = b[7]
	put32(b[0:], uint32(v>>32))
	put32(b[4:], uint32(v))
}

func get32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func get64(b []byte) uint64 {
	_ = b[7]
	return uint64(get32(b[0:]))<<32 | uint64(get32(b[4:]))
}

func Encode(b *[]byte, s *State) {
	if cap(*b) < StateLen {
		*b = make([]byte, StateLen)
	} else {
		*b = (*b)[:StateLen]
	}
	buf := *b
	_ = buf[StateLen-1]
	put32(buf[0:], stateMagic)
	buf[4] = stateVersion
	var flags byte
	if s.DriftRateCalibrated {
		flags |= 1
	}
	buf[5] = flags
	buf[6] = byte(s.LastSyncMinuteMark)
	buf[7] = 0
	put64(buf[8:], uint64(s.SavedTimeSec))
	put32(buf[16:], uint32(s.SavedTimeUsec))
	put64(buf[20:], uint64(s.PlannedSleepUsec))
	put64(buf[28:], math.Float64bits(s.DriftRateMsPerMin))
	put64(buf[36:], uint64(s.CumulativeCompMs))
	put64(buf[44:], math.Float64bits(s.EstProcessingMs))
	put64(buf[52:], uint64(s.RTCBeforeSyncSec))
	put32(buf[60:], uint32(s.RTCBeforeSyncUsec))
	put64(buf[64:], uint64(s.LastSyncSec))
	put32(buf[72:], crc32.ChecksumIEEE(buf[:72]))
}

func Decode(s *State, b []byte) error {
	if len(b) < StateLen {
		return errUnexpectedStateSize
	}
	_ = b[StateLen-1]
	if get32(b[0:]) != stateMagic || b[4] != stateVersion {
		return errInvalidState
	}
	if get32(b[72:]) != crc32.ChecksumIEEE(b[:72]) {
		return errInvalidState
	}
	s.DriftRateCalibrated = b[5]&1 != 0
	s.LastSyncMinuteMark = int8(b[6])
	s.SavedTimeSec = int64(get64(b[8:]))
	s.SavedTimeUsec = int64(get32(b[16:]))
	s.PlannedSleepUsec = int64(get64(b[20:]))
	s.DriftRateMsPerMin = math.Float64frombits(get64(b[28:]))
	s.CumulativeCompMs = int64(get64(b[36:]))
	s.EstProcessingMs = math.Float64frombits(get64(b[44:]))
	s.RTCBeforeSyncSec = int64(get64(b[52:]))
	s.RTCBeforeSyncUsec = int64(get32(b[60:]))
	s.LastSyncSec = int64(get64(b[64:]))
	if s.SavedTimeUsec < 0 || s.SavedTimeUsec > 999_999 {
		return errInvalidState
	}
	return nil
}

// Load returns the last saved state, or defaults when the region is
// unreadable or fails validation. The second return value reports whether
// saved state was found.
func Load(reg Region) (State, bool) {
	b, err := reg.Load()
	if err != nil {
		return Default(), false
	}
	var s State
	err = Decode(&s, b)
	if err != nil {
		return Default(), false
	}
	return s, true
}

// Save writes the full state. The region implementation must make the
// write atomic from the next reader's perspective.
func Save(reg Region, s *State) error {
	var b []byte
	Encode(&b, s)
	return reg.Store(b)
}
