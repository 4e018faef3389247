package clockstate_test

import (
	"testing"

	"example.com/epd-clock/core/clockstate"
	"example.com/epd-clock/driver/retained"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := clockstate.State{
		SavedTimeSec:        1700000000,
		SavedTimeUsec:       999_999,
		PlannedSleepUsec:    52_500_000,
		DriftRateMsPerMin:   170.25,
		DriftRateCalibrated: true,
		CumulativeCompMs:    4711,
		EstProcessingMs:     12345.5,
		RTCBeforeSyncSec:    1700000100,
		RTCBeforeSyncUsec:   123_456,
		LastSyncSec:         1699999900,
		LastSyncMinuteMark:  17,
	}

	var b []byte
	clockstate.Encode(&b, &s)
	if len(b) != clockstate.StateLen {
		t.Fatalf("encoded length = %v, want %v", len(b), clockstate.StateLen)
	}

	var d clockstate.State
	err := clockstate.Decode(&d, b)
	if err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	if d != s {
		t.Errorf("decoded state = %+v, want %+v", d, s)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	s := clockstate.Default()
	s.SavedTimeSec = 1700000000

	var b []byte
	clockstate.Encode(&b, &s)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"short buffer", func(b []byte) []byte { return b[:clockstate.StateLen-1] }},
		{"bad magic", func(b []byte) []byte { b[0] ^= 0xff; return b }},
		{"bad version", func(b []byte) []byte { b[4] += 1; return b }},
		{"flipped payload bit", func(b []byte) []byte { b[10] ^= 0x01; return b }},
		{"flipped checksum bit", func(b []byte) []byte { b[clockstate.StateLen-1] ^= 0x01; return b }},
	}

	for _, tt := range tests {
		buf := make([]byte, len(b))
		copy(buf, b)
		var d clockstate.State
		err := clockstate.Decode(&d, tt.mutate(buf))
		if err == nil {
			t.Errorf("%s: decode succeeded, want error", tt.name)
		}
	}
}

func TestLoadDefaultsOnEmptyRegion(t *testing.T) {
	reg := &retained.MemRegion{}

	s, ok := clockstate.Load(reg)
	if ok {
		t.Errorf("load of empty region reported saved state")
	}
	if s.DriftRateCalibrated {
		t.Errorf("default state must not be calibrated")
	}
	if s.DriftRateMsPerMin != clockstate.DefaultDriftRateMsPerMin {
		t.Errorf("default drift rate = %v, want %v",
			s.DriftRateMsPerMin, clockstate.DefaultDriftRateMsPerMin)
	}
	if s.EstProcessingMs != clockstate.DefaultProcessingMs {
		t.Errorf("default processing estimate = %v, want %v",
			s.EstProcessingMs, clockstate.DefaultProcessingMs)
	}
	if s.CumulativeCompMs != 0 {
		t.Errorf("default cumulative compensation = %v, want 0", s.CumulativeCompMs)
	}
	if s.LastSyncMinuteMark != -1 {
		t.Errorf("default minute mark = %v, want -1", s.LastSyncMinuteMark)
	}
}

func TestSaveLoad(t *testing.T) {
	reg := &retained.MemRegion{}

	s := clockstate.Default()
	s.SavedTimeSec = 1700000000
	s.SavedTimeUsec = 500_000
	s.DriftRateCalibrated = true

	err := clockstate.Save(reg, &s)
	if err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	d, ok := clockstate.Load(reg)
	if !ok {
		t.Fatalf("load after save reported no saved state")
	}
	if d != s {
		t.Errorf("loaded state = %+v, want %+v", d, s)
	}
}

func TestLoadDefaultsOnCorruptRegion(t *testing.T) {
	reg := &retained.MemRegion{}

	s := clockstate.Default()
	s.SavedTimeSec = 1700000000
	err := clockstate.Save(reg, &s)
	if err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	b, _ := reg.Load()
	b[8] ^= 0xff

	d, ok := clockstate.Load(reg)
	if ok {
		t.Errorf("load of corrupt region reported saved state")
	}
	if d != clockstate.Default() {
		t.Errorf("corrupt region must load as defaults, got %+v", d)
	}
}
