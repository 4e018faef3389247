// Package client implements the time-sync client: one request datagram to
// a fixed time-service address, one reply within a bounded timeout.
package client

import (
	"context"
	"crypto/rand"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.uber.org/zap"

	"example.com/epd-clock/base/metrics"

	"example.com/epd-clock/core/timebase"

	"example.com/epd-clock/net/tsp"
)

const maxNumRetries = 2

// Client fetches authoritative time from a time service. A sync that
// fails leaves the caller's state untouched; the cycle proceeds on
// restored time.
type Client struct {
	Log        *zap.Logger
	LocalAddr  *net.UDPAddr
	RemoteAddr *net.UDPAddr
	Timeout    time.Duration
	Histo      *hdrhistogram.Histogram
}

type clientMetrics struct {
	reqsSent      prometheus.Counter
	respsAccepted prometheus.Counter
}

func newClientMetrics() *clientMetrics {
	return &clientMetrics{
		reqsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ClientReqsSentN,
			Help: metrics.ClientReqsSentH,
		}),
		respsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ClientRespsAcceptedN,
			Help: metrics.ClientRespsAcceptedH,
		}),
	}
}

var clientMtrcs atomic.Pointer[clientMetrics]

func init() {
	clientMtrcs.Store(newClientMetrics())
}

func compareAddrs(x, y netip.Addr) int {
	return x.Unmap().Compare(y.Unmap())
}

// FetchTime sends one request and waits for the matching reply. On
// success it returns the authoritative time, adjusted by half the round
// trip, together with the measured round-trip duration.
func (c *Client) FetchTime(ctx context.Context) (time.Time, time.Duration, error) {
	mtrcs := clientMtrcs.Load()
	log := c.Log

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: c.LocalAddr.IP})
	if err != nil {
		return time.Time{}, 0, err
	}
	defer conn.Close()
	deadline, deadlineIsSet := ctx.Deadline()
	if !deadlineIsSet && c.Timeout != 0 {
		deadline = timebase.Now().Add(c.Timeout)
		deadlineIsSet = true
	}
	if deadlineIsSet {
		err = conn.SetDeadline(deadline)
		if err != nil {
			return time.Time{}, 0, err
		}
	}

	var nb [4]byte
	_, err = rand.Read(nb[:])
	if err != nil {
		return time.Time{}, 0, err
	}
	nonce := uint32(nb[0])<<24 | uint32(nb[1])<<16 | uint32(nb[2])<<8 | uint32(nb[3])

	req := tsp.Packet{
		Version: tsp.Version,
		Type:    tsp.TypeRequest,
		Nonce:   nonce,
	}
	buf := make([]byte, tsp.PacketLen)
	tsp.EncodePacket(&buf, &req)

	epoch := timebase.Epoch()
	t0 := timebase.Now()
	n, err := conn.WriteToUDPAddrPort(buf, c.RemoteAddr.AddrPort())
	if err != nil {
		return time.Time{}, 0, err
	}
	if n != len(buf) {
		return time.Time{}, 0, errWrite
	}
	mtrcs.reqsSent.Inc()

	numRetries := 0
	for {
		buf = buf[:cap(buf)]
		n, srcAddr, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return time.Time{}, 0, err
		}
		t3 := timebase.Now()
		buf = buf[:n]

		if compareAddrs(srcAddr.Addr(), c.RemoteAddr.AddrPort().Addr()) != 0 {
			if numRetries != maxNumRetries && deadlineIsSet && timebase.Now().Before(deadline) {
				log.Info("received packet from unexpected source")
				numRetries++
				continue
			}
			return time.Time{}, 0, errUnexpectedPacketSource
		}

		var resp tsp.Packet
		err = tsp.DecodePacket(&resp, buf)
		if err != nil {
			if numRetries != maxNumRetries && deadlineIsSet && timebase.Now().Before(deadline) {
				log.Info("failed to decode packet payload", zap.Error(err))
				numRetries++
				continue
			}
			return time.Time{}, 0, err
		}
		err = tsp.ValidateResponse(&resp, nonce)
		if err != nil {
			if numRetries != maxNumRetries && deadlineIsSet && timebase.Now().Before(deadline) {
				log.Info("received packet with unexpected type or structure")
				numRetries++
				continue
			}
			return time.Time{}, 0, errUnexpectedPacket
		}

		// The interval [t0, t3] is only a round-trip measurement if the
		// clock was not stepped in between.
		if timebase.Epoch() != epoch {
			return time.Time{}, 0, errClockStepped
		}

		rtt := t3.Sub(t0)
		if rtt < 0 {
			rtt = 0
		}
		syncedTime := tsp.TimeFromPacket(&resp).Add(rtt / 2)

		mtrcs.respsAccepted.Inc()
		if c.Histo != nil {
			_ = c.Histo.RecordValue(rtt.Microseconds())
		}
		log.Debug("received response",
			zap.Time("at", t3),
			zap.Stringer("from", c.RemoteAddr),
			zap.Duration("rtt", rtt),
			zap.Object("data", tsp.PacketMarshaler{Pkt: &resp}),
		)

		return syncedTime, rtt, nil
	}
}
