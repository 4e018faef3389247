package benchmark

import (
	"crypto/rand"
	"encoding/binary"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"example.com/epd-clock/net/tsp"
)

func RunBenchmark(localAddr, remoteAddr *net.UDPAddr) {
	// const numClientGoroutine = 8
	// const numRequestPerClient = 10000
	const numClientGoroutine = 1
	const numRequestPerClient = 1_000_000
	var mu sync.Mutex
	sg := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(numClientGoroutine)
	for i := numClientGoroutine; i > 0; i-- {
		go func() {
			hg := hdrhistogram.New(1, 50000, 5)

			conn, err := net.DialUDP("udp", localAddr, remoteAddr)
			if err != nil {
				log.Printf("Failed to dial UDP connection: %v", err)
				return
			}
			defer conn.Close()

			defer wg.Done()
			<-sg
			for j := numRequestPerClient; j > 0; j-- {
				req := tsp.Packet{
					Version: tsp.Version,
					Type:    tsp.TypeRequest,
				}
				var nonce [4]byte
				_, err = rand.Read(nonce[:])
				if err != nil {
					log.Printf("Failed to generate nonce: %v", err)
					return
				}
				req.Nonce = binary.BigEndian.Uint32(nonce[:])

				buf := make([]byte, tsp.PacketLen)
				tsp.EncodePacket(&buf, &req)

				t0 := time.Now()
				_, err = conn.Write(buf)
				if err != nil {
					log.Printf("Failed to write packet: %v", err)
					return
				}

				n, err := conn.Read(buf)
				if err != nil {
					log.Printf("Failed to read packet: %v", err)
					return
				}
				buf = buf[:n]

				var resp tsp.Packet
				err = tsp.DecodePacket(&resp, buf)
				if err != nil {
					log.Printf("Failed to decode packet payload: %v", err)
					return
				}

				err = tsp.ValidateResponse(&resp, req.Nonce)
				if err != nil {
					log.Printf("Unexpected packet received: %v", err)
					return
				}

				roundTripDelay := time.Since(t0)

				err = hg.RecordValue(roundTripDelay.Microseconds())
				if err != nil {
					log.Printf("Failed to record histogram value: %v", err)
					return
				}
			}
			mu.Lock()
			defer mu.Unlock()
			hg.PercentilesPrint(os.Stdout, 1, 1.0)
		}()
	}
	t0 := time.Now()
	close(sg)
	wg.Wait()
	log.Print(time.Since(t0))
}
