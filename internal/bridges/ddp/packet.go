package ddp

import (
	"encoding/binary"
)

// DefaultPort is the registered DDP port.
const DefaultPort = 4048

// Header flags and identifiers.
const (
	FlagVer1  = 0x40
	FlagPush  = 0x01
	DataType  = 0x01 // RGB, 8 bits per channel
	SourceID  = 0x01 // default output device
	HeaderLen = 10

	MaxPixels  = 480
	MaxDataLen = MaxPixels * 3
)

// Header is a decoded DDP packet header.
type Header struct {
	Flags    uint8
	Sequence uint8
	DataType uint8
	Source   uint8
	Offset   uint32
	Length   uint16
}

// Push reports whether the packet completes a frame.
func (h Header) Push() bool { return h.Flags&FlagPush != 0 }

// Sequence maps a monotonically increasing frame count to the 1..15
// sequence field.
func Sequence(frameCount uint64) uint8 {
	return uint8(frameCount%15) + 1
}

// Packets splits data into DDP packets for one frame. Empty data yields
// a single empty PUSH packet.
func Packets(data []byte, sequence uint8) [][]byte {
	if len(data) == 0 {
		return [][]byte{encode(sequence, 0, nil, true)}
	}

	n := (len(data) + MaxDataLen - 1) / MaxDataLen
	out := make([][]byte, 0, n)
	for i := range n {
		start := i * MaxDataLen
		end := min(start+MaxDataLen, len(data))
		out = append(out, encode(sequence, uint32(start), data[start:end], i == n-1)) //nolint:gosec // Offset bounded by frame size
	}
	return out
}

func encode(sequence uint8, offset uint32, chunk []byte, push bool) []byte {
	buf := make([]byte, HeaderLen+len(chunk))
	flags := uint8(FlagVer1)
	if push {
		flags |= FlagPush
	}
	buf[0] = flags
	buf[1] = sequence
	buf[2] = DataType
	buf[3] = SourceID
	binary.BigEndian.PutUint32(buf[4:8], offset)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(chunk))) //nolint:gosec // At most MaxDataLen
	copy(buf[HeaderLen:], chunk)
	return buf
}

// ParseHeader decodes the header of a DDP packet. ok is false when b is
// shorter than HeaderLen.
func ParseHeader(b []byte) (h Header, ok bool) {
	if len(b) < HeaderLen {
		return Header{}, false
	}
	return Header{
		Flags:    b[0],
		Sequence: b[1],
		DataType: b[2],
		Source:   b[3],
		Offset:   binary.BigEndian.Uint32(b[4:8]),
		Length:   binary.BigEndian.Uint16(b[8:10]),
	}, true
}
