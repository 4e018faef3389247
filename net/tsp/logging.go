package tsp

import (
	"go.uber.org/zap/zapcore"
)

type PacketMarshaler struct {
	Pkt *Packet
}

func (m PacketMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint8("Version", m.Pkt.Version)
	enc.AddUint8("Type", m.Pkt.Type)
	enc.AddUint32("Nonce", m.Pkt.Nonce)
	enc.AddUint64("TimeSec", m.Pkt.TimeSec)
	enc.AddUint32("TimeUsec", m.Pkt.TimeUsec)
	return nil
}
