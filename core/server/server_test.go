package server_test

import (
	"testing"
	"time"

	"example.com/epd-clock/core/server"
	"example.com/epd-clock/net/tsp"
)

func TestHandleRequest(t *testing.T) {
	req := tsp.Packet{
		Version: tsp.Version,
		Type:    tsp.TypeRequest,
		Nonce:   0xcafebabe,
	}
	now := time.Unix(1700000000, 250_000_000).UTC()

	var resp tsp.Packet
	server.HandleRequest(&req, now, &resp)

	if err := tsp.ValidateResponse(&resp, req.Nonce); err != nil {
		t.Fatalf("response failed validation: %v", err)
	}
	if got := tsp.TimeFromPacket(&resp); !got.Equal(now) {
		t.Errorf("response time = %v, want %v", got, now)
	}
}
