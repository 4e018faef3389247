// Package tsp implements the time-sync wire format: one fixed-size request
// datagram, one reply carrying a Unix timestamp with microsecond
// resolution.
package tsp

import (
	"errors"
	"time"
)

const (
	ServerPort = 10323

	PacketLen = 24

	Version = 1

	TypeRequest  = 1
	TypeResponse = 2

	microsecondsPerSecond int64 = 1e6
)

// Packet is the single message type of the protocol. A request carries
// only the nonce; a response echoes the nonce and fills in the timestamp.
type Packet struct {
	Version  uint8
	Type     uint8
	Nonce    uint32
	TimeSec  uint64
	TimeUsec uint32 // [0, 999999]
}

var (
	errUnexpectedPacketSize = errors.New("unexpected packet size")
)

func TimeFromPacket(pkt *Packet) time.Time {
	return time.Unix(int64(pkt.TimeSec), int64(pkt.TimeUsec)*1000).UTC()
}

func (p *Packet) SetTime(t time.Time) {
	p.TimeSec = uint64(t.Unix())
	p.TimeUsec = uint32(int64(t.Nanosecond()) / 1000)
}

func EncodePacket(b *[]byte, pkt *Packet) {
	if cap(*b) < PacketLen {
		*b = make([]byte, PacketLen)
	} else {
		*b = (*b)[:PacketLen]
	}

	buf := *b
	_ = buf[23]
	buf[0] = byte(pkt.Version)
	buf[1] = byte(pkt.Type)
	buf[2] = 0
	buf[3] = 0
	buf[4] = byte(pkt.Nonce >> 24)
	buf[5] = byte(pkt.Nonce >> 16)
	buf[6] = byte(pkt.Nonce >> 8)
	buf[7] = byte(pkt.Nonce)
	buf[8] = byte(pkt.TimeSec >> 56)
	buf[9] = byte(pkt.TimeSec >> 48)
	buf[10] = byte(pkt.TimeSec >> 40)
	buf[11] = byte(pkt.TimeSec >> 32)
	buf[12] = byte(pkt.TimeSec >> 24)
	buf[13] = byte(pkt.TimeSec >> 16)
	buf[14] = byte(pkt.TimeSec >> 8)
	buf[15] = byte(pkt.TimeSec)
	buf[16] = byte(pkt.TimeUsec >> 24)
	buf[17] = byte(pkt.TimeUsec >> 16)
	buf[18] = byte(pkt.TimeUsec >> 8)
	buf[19] = byte(pkt.TimeUsec)
	buf[20] = 0
	buf[21] = 0
	buf[22] = 0
	buf[23] = 0
}

func DecodePacket(pkt *Packet, b []byte) error {
	if len(b) < PacketLen {
		return errUnexpectedPacketSize
	}

	_ = b[23]
	pkt.Version = uint8(b[0])
	pkt.Type = uint8(b[1])
	pkt.Nonce = uint32(b[4])<<24 | uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7])
	pkt.TimeSec = uint64(b[8])<<56 | uint64(b[9])<<48 | uint64(b[10])<<40 | uint64(b[11])<<32 |
		uint64(b[12])<<24 | uint64(b[13])<<16 | uint64(b[14])<<8 | uint64(b[15])
	pkt.TimeUsec = uint32(b[16])<<24 | uint32(b[17])<<16 | uint32(b[18])<<8 | uint32(b[19])

	return nil
}
