package main

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"example.com/epd-clock/core/client"
	"example.com/epd-clock/core/timebase"
	"example.com/epd-clock/driver/clock"
)

func TestBoundaryDelaySeconds(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC)
	cases := []struct {
		offset time.Duration
		want   float64
	}{
		{0, 0.0},
		{250 * time.Millisecond, 0.25},
		{12 * time.Second, 12.0},
		{-500 * time.Millisecond, -0.5},
		{-5 * time.Second, -5.0},
	}
	for _, c := range cases {
		got := boundaryDelaySeconds(base.Add(c.offset))
		if got != c.want {
			t.Errorf("boundaryDelaySeconds(boundary%+v) = %v, want %v",
				c.offset, got, c.want)
		}
	}
}

func TestClockserviceFetch(t *testing.T) {
	remoteAddr := os.Getenv("CLOCKSERVICE_REMOTE")
	if remoteAddr == "" {
		t.Skip("set up a time service and set CLOCKSERVICE_REMOTE to run this integration test")
	}

	initLogger(true /* verbose */)

	laddr, err := net.ResolveUDPAddr("udp", "0.0.0.0:0")
	if err != nil {
		t.Fatalf("failed to parse local address %v", err)
	}
	raddr, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		t.Fatalf("failed to parse remote address %v", err)
	}

	ctx := context.Background()

	lclk := &clock.SystemClock{Log: log}
	timebase.RegisterClock(lclk)

	c := &client.Client{
		Log:        log,
		LocalAddr:  laddr,
		RemoteAddr: raddr,
		Timeout:    5 * time.Second,
	}

	_, _, err = c.FetchTime(ctx)
	if err != nil {
		t.Fatalf("failed to fetch time %v", err)
	}
}
