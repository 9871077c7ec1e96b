package qudp

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Magic prefixes every QUDP packet.
const Magic uint32 = 3042937533

// PacketType identifies a QUDP packet.
type PacketType uint8

// Packet types.
const (
	TypeData  PacketType = 0
	TypeReset PacketType = 1
	TypeSetup PacketType = 2
	TypePower PacketType = 5
)

// DefaultQueueLength is the controller-side frame queue requested in SETUP.
const DefaultQueueLength = 8

const (
	headerLen = 5 // magic + type
	setupLen  = headerLen + 1 + 4
	dataHdr   = headerLen + 1 + 1 + 2
	resetLen  = headerLen + 1
	powerLen  = headerLen + 1
)

func (t PacketType) String() string {
	switch t {
	case TypeData:
		return "DATA"
	case TypeReset:
		return "RESET"
	case TypeSetup:
		return "SETUP"
	case TypePower:
		return "POWER"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Packet is a decoded QUDP packet. Only the fields of Type are set.
type Packet struct {
	Type PacketType

	// DATA and RESET
	Strip uint8

	// DATA
	FrameID uint8
	Payload []byte

	// SETUP
	QueueLength     uint8
	FrameIntervalUS uint32

	// POWER
	On bool
}

// minLen returns the fixed length of a packet type, 0 if unknown.
func minLen(t PacketType) int {
	switch t {
	case TypeSetup:
		return setupLen
	case TypeData:
		return dataHdr
	case TypeReset:
		return resetLen
	case TypePower:
		return powerLen
	}
	return 0
}

func header(buf []byte, t PacketType) {
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	buf[4] = byte(t)
}

// EncodeSetup builds a SETUP packet.
func EncodeSetup(queueLen uint8, frameIntervalUS uint32) []byte {
	buf := make([]byte, setupLen)
	header(buf, TypeSetup)
	buf[5] = queueLen
	binary.LittleEndian.PutUint32(buf[6:10], frameIntervalUS)
	return buf
}

// FrameInterval converts a refresh rate in Hz to the SETUP frame interval
// in microseconds.
func FrameInterval(refreshRate int) uint32 {
	if refreshRate <= 0 {
		return 0
	}
	return uint32(1_000_000 / refreshRate)
}

// EncodeData builds a DATA packet carrying payload for strip.
func EncodeData(strip, frameID uint8, payload []byte) ([]byte, error) {
	if len(payload) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	buf := make([]byte, dataHdr+len(payload))
	header(buf, TypeData)
	buf[5] = strip
	buf[6] = frameID
	binary.LittleEndian.PutUint16(buf[7:9], uint16(len(payload)))
	copy(buf[dataHdr:], payload)
	return buf, nil
}

// EncodeReset builds a RESET packet for strip.
func EncodeReset(strip uint8) []byte {
	buf := make([]byte, resetLen)
	header(buf, TypeReset)
	buf[5] = strip
	return buf
}

// EncodePower builds a POWER packet for the whole controller.
func EncodePower(on bool) []byte {
	buf := make([]byte, powerLen)
	header(buf, TypePower)
	if on {
		buf[5] = 1
	}
	return buf
}

// Decode parses any QUDP packet.
//
// Returns:
//   - Packet: Decoded packet; the payload of a DATA packet is copied
//   - error: ErrInvalidPacket on bad magic, unknown type or short input
func Decode(b []byte) (Packet, error) {
	if len(b) < headerLen {
		return Packet{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrInvalidPacket, len(b), headerLen)
	}
	if m := binary.LittleEndian.Uint32(b[0:4]); m != Magic {
		return Packet{}, fmt.Errorf("%w: bad magic %d", ErrInvalidPacket, m)
	}

	p := Packet{Type: PacketType(b[4])}
	need := minLen(p.Type)
	if need == 0 {
		return Packet{}, fmt.Errorf("%w: unknown type %d", ErrInvalidPacket, b[4])
	}
	if len(b) < need {
		return Packet{}, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidPacket, p.Type, need, len(b))
	}

	switch p.Type {
	case TypeSetup:
		p.QueueLength = b[5]
		p.FrameIntervalUS = binary.LittleEndian.Uint32(b[6:10])
	case TypeData:
		p.Strip = b[5]
		p.FrameID = b[6]
		n := int(binary.LittleEndian.Uint16(b[7:9]))
		if len(b)-dataHdr != n {
			return Packet{}, fmt.Errorf("%w: DATA declares %d bytes, carries %d", ErrInvalidPacket, n, len(b)-dataHdr)
		}
		p.Payload = append([]byte(nil), b[dataHdr:]...)
	case TypeReset:
		p.Strip = b[5]
	case TypePower:
		p.On = b[5] != 0
	}
	return p, nil
}
