// Driver for quick experiments

package main

import (
	"time"

	"go.uber.org/zap"

	"example.com/epd-clock/driver/clock"
)

func runX() {
	initLogger(true /* verbose */)

	clk := &clock.SystemClock{Log: log}
	log.Debug("local clock", zap.Time("now", clk.Now()))
	err := clk.SetTime(clk.Now().Add(-1 * time.Second))
	if err != nil {
		log.Error("failed to set local clock", zap.Error(err))
	}
	log.Debug("local clock", zap.Time("now", clk.Now()))
}
