// Package server implements the time service the device syncs against:
// a UDP responder answering each request datagram with the current time of
// the registered clock.
package server

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-reuseport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.uber.org/zap"

	"example.com/epd-clock/base/metrics"

	"example.com/epd-clock/core/timebase"

	"example.com/epd-clock/net/tsp"
)

const serverNumGoroutine = 4

type serverMetrics struct {
	pktsReceived prometheus.Counter
	reqsAccepted prometheus.Counter
	reqsServed   prometheus.Counter
}

func newServerMetrics() *serverMetrics {
	return &serverMetrics{
		pktsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ServerPktsReceivedN,
			Help: metrics.ServerPktsReceivedH,
		}),
		reqsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ServerReqsAcceptedN,
			Help: metrics.ServerReqsAcceptedH,
		}),
		reqsServed: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ServerReqsServedN,
			Help: metrics.ServerReqsServedH,
		}),
	}
}

var serverMtrcs atomic.Pointer[serverMetrics]

func init() {
	serverMtrcs.Store(newServerMetrics())
}

// HandleRequest fills in the response for a validated request using the
// registered clock.
func HandleRequest(req *tsp.Packet, now time.Time, resp *tsp.Packet) {
	resp.Version = tsp.Version
	resp.Type = tsp.TypeResponse
	resp.Nonce = req.Nonce
	resp.SetTime(now)
}

func runServer(ctx context.Context, log *zap.Logger, mtrcs *serverMetrics, conn *net.UDPConn) {
	defer conn.Close()
	buf := make([]byte, tsp.PacketLen)
	for {
		buf = buf[:cap(buf)]
		n, srcAddr, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			log.Error("failed to read packet", zap.Error(err))
			continue
		}
		buf = buf[:n]
		mtrcs.pktsReceived.Inc()

		var req tsp.Packet
		err = tsp.DecodePacket(&req, buf)
		if err != nil {
			log.Info("failed to decode packet payload", zap.Error(err))
			continue
		}
		err = tsp.ValidateRequest(&req)
		if err != nil {
			log.Info("received unexpected request", zap.Error(err))
			continue
		}
		mtrcs.reqsAccepted.Inc()

		var resp tsp.Packet
		HandleRequest(&req, timebase.Now(), &resp)
		tsp.EncodePacket(&buf, &resp)

		n, err = conn.WriteToUDPAddrPort(buf, srcAddr)
		if err != nil {
			log.Error("failed to write packet", zap.Error(err))
			continue
		}
		if n != len(buf) {
			log.Error("failed to write entire packet", zap.Int("written", n))
			continue
		}
		mtrcs.reqsServed.Inc()
	}
}

func StartServer(ctx context.Context, log *zap.Logger, localHost *net.UDPAddr) {
	log.Info("time service listening",
		zap.Stringer("ip", localHost.AddrPort().Addr()),
		zap.Uint16("port", uint16(localHost.Port)),
	)
	mtrcs := serverMtrcs.Load()
	if localHost.Port == 0 {
		localHost.Port = tsp.ServerPort
	}
	localHostPort := localHost.String()
	for i := 0; i < serverNumGoroutine; i++ {
		conn, err := reuseport.ListenPacket("udp", localHostPort)
		if err != nil {
			log.Fatal("failed to listen for packets", zap.Error(err))
		}
		go runServer(ctx, log, mtrcs, conn.(*net.UDPConn))
	}
}
