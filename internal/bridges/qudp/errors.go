package qudp

import "errors"

// Domain errors for the QUDP bridge package.
var (
	// ErrInvalidPacket is returned when a packet cannot be decoded.
	ErrInvalidPacket = errors.New("qudp: invalid packet")

	// ErrPayloadTooLarge is returned when a DATA payload exceeds 65535 bytes.
	ErrPayloadTooLarge = errors.New("qudp: payload too large")

	// ErrNotAttached is returned when a transport sends before Open.
	ErrNotAttached = errors.New("qudp: not attached")

	// ErrPoolClosed is returned by Attach after the pool has been closed.
	ErrPoolClosed = errors.New("qudp: pool closed")
)
