// E-paper clock time service

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"example.com/epd-clock/base/timemath"

	"example.com/epd-clock/benchmark"

	"example.com/epd-clock/core/client"
	"example.com/epd-clock/core/server"
	"example.com/epd-clock/core/timebase"
	"example.com/epd-clock/core/wake"

	"example.com/epd-clock/driver/clock"
	"example.com/epd-clock/driver/retained"

	"example.com/epd-clock/net/tsp"
)

const (
	defaultMetricsAddr    = "127.0.0.1:8080"
	defaultSyncTimeoutSec = 5.0
)

type svcConfig struct {
	LocalAddr            string  `toml:"local_address,omitempty"`
	RemoteAddr           string  `toml:"remote_address,omitempty"`
	StateFile            string  `toml:"state_file,omitempty"`
	MetricsAddr          string  `toml:"metrics_address,omitempty"`
	SyncTimeoutSec       float64 `toml:"sync_timeout_seconds,omitempty"`
	ExtraSyncMinuteMarks []int   `toml:"extra_sync_minute_marks,omitempty"`
	BootOverheadMs       int64   `toml:"boot_overhead_ms,omitempty"`
}

var (
	log *zap.Logger
)

func initLogger(verbose bool) {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.EncoderConfig.EncodeCaller = func(
		caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		// See https://github.com/scionproto/scion/blob/master/pkg/log/log.go
		p := caller.TrimmedPath()
		if len(p) > 30 {
			p = "..." + p[len(p)-27:]
		}
		enc.AppendString(fmt.Sprintf("%30s", p))
	}
	if !verbose {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	var err error
	log, err = c.Build()
	if err != nil {
		panic(err)
	}
}

func runMonitor(log *zap.Logger, addr string) {
	http.Handle("/metrics", promhttp.Handler())
	err := http.ListenAndServe(addr, nil)
	log.Fatal("failed to serve metrics", zap.Error(err))
}

func loadConfig(configFile string) svcConfig {
	raw, err := os.ReadFile(configFile)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}
	var cfg svcConfig
	err = toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&cfg)
	if err != nil {
		log.Fatal("failed to decode configuration", zap.Error(err))
	}
	return cfg
}

func localAddress(cfg svcConfig) *net.UDPAddr {
	if cfg.LocalAddr == "" {
		log.Fatal("local_address not specified in config")
	}
	localAddr, err := net.ResolveUDPAddr("udp", cfg.LocalAddr)
	if err != nil {
		log.Fatal("failed to parse local address", zap.Error(err))
	}
	return localAddr
}

func remoteAddress(cfg svcConfig) *net.UDPAddr {
	if cfg.RemoteAddr == "" {
		log.Fatal("remote_address not specified in config")
	}
	remoteAddr, err := net.ResolveUDPAddr("udp", cfg.RemoteAddr)
	if err != nil {
		log.Fatal("failed to parse remote address", zap.Error(err))
	}
	if remoteAddr.Port == 0 {
		remoteAddr.Port = tsp.ServerPort
	}
	return remoteAddr
}

func metricsAddress(cfg svcConfig) string {
	if cfg.MetricsAddr == "" {
		return defaultMetricsAddr
	}
	return cfg.MetricsAddr
}

func syncTimeout(cfg svcConfig) time.Duration {
	s := cfg.SyncTimeoutSec
	if s == 0 {
		s = defaultSyncTimeoutSec
	}
	return timemath.Duration(s)
}

// boundaryDelaySeconds measures how far t has run past its minute
// boundary. Positive when the cycle completed late, negative when it
// woke ahead of the boundary and still has to wait.
func boundaryDelaySeconds(t time.Time) float64 {
	toNext := time.Duration(timemath.UsecToNextMinute(t)) * time.Microsecond
	past := time.Minute - toNext
	if past <= time.Minute/2 {
		return timemath.Seconds(past)
	}
	return -timemath.Seconds(toNext)
}

func updateDisplay(log *zap.Logger, t time.Time) {
	log.Info("displaying time", zap.Time("shown", t.Truncate(time.Minute)))
}

// runWakeCycles drives the device loop: wake, restore, optionally sync,
// update the display at the minute boundary, persist, sleep. The first
// iteration is a cold boot; each following one replays the wake path a
// real power cycle would take.
func runWakeCycles(clk *clock.SystemClock, reg *retained.FileRegion,
	src wake.TimeSource, cfg svcConfig) {
	ctx := context.Background()
	wakeCfg := wake.Config{
		SyncTimeout:          syncTimeout(cfg),
		ExtraSyncMinuteMarks: cfg.ExtraSyncMinuteMarks,
	}
	bootOverheadUsec := cfg.BootOverheadMs * 1000

	cause := wake.ColdBoot
	for {
		o := wake.NewOrchestrator(log, wakeCfg, clk, reg, src)
		o.BeginCycle(cause, bootOverheadUsec)

		if o.ShouldSyncThisCycle() {
			_ = o.PerformSync(ctx)
		}

		delay := boundaryDelaySeconds(o.GetWallClockNow())
		if delay < 0 {
			clk.Sleep(timemath.Duration(-delay))
		}
		updateDisplay(log, o.GetWallClockNow())

		o.RecordCycleCompletion(delay)
		sleepUsec := o.ComputeNextSleepDuration()
		_ = o.FinishCycle()

		clk.Sleep(time.Duration(sleepUsec) * time.Microsecond)
		cause = wake.WakeFromSleep
	}
}

func runService(configFile string) {
	cfg := loadConfig(configFile)
	localAddr := localAddress(cfg)
	remoteAddr := remoteAddress(cfg)
	if cfg.StateFile == "" {
		log.Fatal("state_file not specified in config")
	}

	clk := &clock.SystemClock{Log: log}
	timebase.RegisterClock(clk)

	reg := &retained.FileRegion{Path: cfg.StateFile}
	src := &client.Client{
		Log:        log,
		LocalAddr:  localAddr,
		RemoteAddr: remoteAddr,
		Timeout:    syncTimeout(cfg),
		Histo:      hdrhistogram.New(1, 50000, 5),
	}

	go runMonitor(log, metricsAddress(cfg))

	runWakeCycles(clk, reg, src, cfg)
}

func runServer(configFile string) {
	ctx := context.Background()

	cfg := loadConfig(configFile)
	localAddr := localAddress(cfg)

	clk := &clock.SystemClock{Log: log}
	timebase.RegisterClock(clk)

	server.StartServer(ctx, log, localAddr)

	runMonitor(log, metricsAddress(cfg))
}

func runTool(localAddr, remoteAddr *net.UDPAddr) {
	ctx := context.Background()

	clk := &clock.SystemClock{Log: log}
	timebase.RegisterClock(clk)

	if remoteAddr.Port == 0 {
		remoteAddr.Port = tsp.ServerPort
	}
	c := &client.Client{
		Log:        log,
		LocalAddr:  localAddr,
		RemoteAddr: remoteAddr,
		Timeout:    timemath.Duration(defaultSyncTimeoutSec),
	}

	t, rtt, err := c.FetchTime(ctx)
	if err != nil {
		log.Fatal("failed to fetch time", zap.Stringer("from", remoteAddr), zap.Error(err))
	}
	log.Info("fetched time",
		zap.Stringer("from", remoteAddr),
		zap.Time("time", t),
		zap.Duration("rtt", rtt),
	)
}

func runBenchmark(configFile string) {
	cfg := loadConfig(configFile)
	localAddr := localAddress(cfg)
	remoteAddr := remoteAddress(cfg)

	clk := &clock.SystemClock{Log: zap.NewNop()}
	timebase.RegisterClock(clk)

	benchmark.RunBenchmark(localAddr, remoteAddr)
}

func exitWithUsage() {
	fmt.Println("<usage>")
	os.Exit(1)
}

func main() {
	var (
		verbose       bool
		configFile    string
		localAddrStr  string
		remoteAddrStr string
	)

	runFlags := flag.NewFlagSet("run", flag.ExitOnError)
	serverFlags := flag.NewFlagSet("server", flag.ExitOnError)
	toolFlags := flag.NewFlagSet("tool", flag.ExitOnError)
	benchmarkFlags := flag.NewFlagSet("benchmark", flag.ExitOnError)

	runFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	runFlags.StringVar(&configFile, "config", "", "Config file")

	serverFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	serverFlags.StringVar(&configFile, "config", "", "Config file")

	toolFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	toolFlags.StringVar(&localAddrStr, "local", "", "Local address")
	toolFlags.StringVar(&remoteAddrStr, "remote", "", "Remote address")

	benchmarkFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	benchmarkFlags.StringVar(&configFile, "config", "", "Config file")

	if len(os.Args) < 2 {
		exitWithUsage()
	}

	switch os.Args[1] {
	case runFlags.Name():
		err := runFlags.Parse(os.Args[2:])
		if err != nil || runFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runService(configFile)
	case serverFlags.Name():
		err := serverFlags.Parse(os.Args[2:])
		if err != nil || serverFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runServer(configFile)
	case toolFlags.Name():
		err := toolFlags.Parse(os.Args[2:])
		if err != nil || toolFlags.NArg() != 0 {
			exitWithUsage()
		}
		if remoteAddrStr == "" {
			exitWithUsage()
		}
		localAddr, err := net.ResolveUDPAddr("udp", localAddrStr)
		if err != nil {
			exitWithUsage()
		}
		remoteAddr, err := net.ResolveUDPAddr("udp", remoteAddrStr)
		if err != nil {
			exitWithUsage()
		}
		initLogger(verbose)
		runTool(localAddr, remoteAddr)
	case benchmarkFlags.Name():
		err := benchmarkFlags.Parse(os.Args[2:])
		if err != nil || benchmarkFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runBenchmark(configFile)
	case "x":
		runX()
	default:
		exitWithUsage()
	}
}
