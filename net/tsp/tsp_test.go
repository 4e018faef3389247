package tsp_test

import (
	"testing"
	"time"

	"example.com/epd-clock/net/tsp"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pkt := tsp.Packet{
		Version:  tsp.Version,
		Type:     tsp.TypeResponse,
		Nonce:    0xdeadbeef,
		TimeSec:  1700000000,
		TimeUsec: 999_999,
	}

	var b []byte
	tsp.EncodePacket(&b, &pkt)
	if len(b) != tsp.PacketLen {
		t.Fatalf("encoded length = %v, want %v", len(b), tsp.PacketLen)
	}

	var d tsp.Packet
	err := tsp.DecodePacket(&d, b)
	if err != nil {
		t.Fatalf("failed to decode packet: %v", err)
	}
	if d != pkt {
		t.Errorf("decoded packet = %+v, want %+v", d, pkt)
	}
}

func TestDecodeShortPacket(t *testing.T) {
	var d tsp.Packet
	err := tsp.DecodePacket(&d, make([]byte, tsp.PacketLen-1))
	if err == nil {
		t.Errorf("decode of short packet succeeded")
	}
}

func TestTimeConversion(t *testing.T) {
	t0 := time.Unix(1700000000, 123_456_000).UTC()

	var pkt tsp.Packet
	pkt.SetTime(t0)
	if pkt.TimeSec != 1700000000 || pkt.TimeUsec != 123_456 {
		t.Fatalf("packet time = %v.%06v, want 1700000000.123456", pkt.TimeSec, pkt.TimeUsec)
	}

	t1 := tsp.TimeFromPacket(&pkt)
	if !t1.Equal(t0) {
		t.Errorf("converted time = %v, want %v", t1, t0)
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		pkt     tsp.Packet
		wantErr bool
	}{
		{"valid", tsp.Packet{Version: tsp.Version, Type: tsp.TypeRequest}, false},
		{"wrong version", tsp.Packet{Version: 2, Type: tsp.TypeRequest}, true},
		{"wrong type", tsp.Packet{Version: tsp.Version, Type: tsp.TypeResponse}, true},
	}

	for _, tt := range tests {
		err := tsp.ValidateRequest(&tt.pkt)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: tsp.ValidateRequest = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestValidateResponse(t *testing.T) {
	valid := tsp.Packet{
		Version:  tsp.Version,
		Type:     tsp.TypeResponse,
		Nonce:    7,
		TimeSec:  1700000000,
		TimeUsec: 0,
	}

	tests := []struct {
		name    string
		mutate  func(*tsp.Packet)
		nonce   uint32
		wantErr bool
	}{
		{"valid", func(p *tsp.Packet) {}, 7, false},
		{"wrong version", func(p *tsp.Packet) { p.Version = 0 }, 7, true},
		{"wrong type", func(p *tsp.Packet) { p.Type = tsp.TypeRequest }, 7, true},
		{"nonce mismatch", func(p *tsp.Packet) {}, 8, true},
		{"fraction out of range", func(p *tsp.Packet) { p.TimeUsec = 1_000_000 }, 7, true},
	}

	for _, tt := range tests {
		pkt := valid
		tt.mutate(&pkt)
		err := tsp.ValidateResponse(&pkt, tt.nonce)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: tsp.ValidateResponse = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
