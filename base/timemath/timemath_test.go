package timemath_test

import (
	"testing"
	"time"

	"example.com/epd-clock/base/timemath"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    time.Duration
	}{
		{1.5, 1500 * time.Millisecond},
		{1, time.Second},
		{0, 0},
		{-1, -time.Second},
		{-1.5, -1500 * time.Millisecond},
	}

	for _, tt := range tests {
		got := timemath.Duration(tt.seconds)
		if got != tt.want {
			t.Errorf("timemath.Duration(%v) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     float64
	}{
		{1500 * time.Millisecond, 1.5},
		{time.Second, 1},
		{0, 0},
		{-time.Second, -1},
		{-1500 * time.Millisecond, -1.5},
	}

	for _, tt := range tests {
		got := timemath.Seconds(tt.duration)
		if got != tt.want {
			t.Errorf("timemath.Seconds(%v) = %v, want %v", tt.duration, got, tt.want)
		}
	}
}

func TestUsecRoundTrip(t *testing.T) {
	tests := []struct {
		sec  int64
		frac int64
	}{
		{0, 0},
		{1700000000, 0},
		{1700000000, 500_000},
		{1700000000, 999_999},
		{1, 1},
	}

	for _, tt := range tests {
		u := tt.sec*timemath.UsecPerSec + tt.frac
		got := timemath.UsecFromTime(timemath.TimeFromUsec(u))
		if got != u {
			t.Errorf("round trip of %v µs = %v", u, got)
		}
	}
}

func TestSplitUsec(t *testing.T) {
	tests := []struct {
		usec     int64
		wantSec  int64
		wantFrac int64
	}{
		{0, 0, 0},
		{999_999, 0, 999_999},
		{1_000_000, 1, 0},
		{52_500_000, 52, 500_000},
		{-1, -1, 999_999},
		{-1_000_000, -1, 0},
	}

	for _, tt := range tests {
		sec, frac := timemath.SplitUsec(tt.usec)
		if sec != tt.wantSec || frac != tt.wantFrac {
			t.Errorf("timemath.SplitUsec(%v) = %v, %v, want %v, %v",
				tt.usec, sec, frac, tt.wantSec, tt.wantFrac)
		}
	}
}

func TestUsecToNextMinute(t *testing.T) {
	tests := []struct {
		t    time.Time
		want int64
	}{
		{time.Unix(1700000040, 0), 60_000_000},
		{time.Unix(1700000039, 0), 1_000_000},
		{time.Unix(1700000000, 500_000_000), 39_500_000},
		{time.Unix(1700000099, 999_999_000), 1},
	}

	for _, tt := range tests {
		got := timemath.UsecToNextMinute(tt.t)
		if got != tt.want {
			t.Errorf("timemath.UsecToNextMinute(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}
