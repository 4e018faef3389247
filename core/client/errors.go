package client

import (
	"errors"
)

var (
	errClockStepped           = errors.New("clock epoch changed during measurement")
	errWrite                  = errors.New("failed to write packet")
	errUnexpectedPacketSource = errors.New("failed to read packet: unexpected source")
	errUnexpectedPacket       = errors.New("failed to read packet: unexpected type or structure")
)
