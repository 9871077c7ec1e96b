package ddp

import (
	"bytes"
	"testing"
)

func TestPackets_Chunking(t *testing.T) {
	tests := []struct {
		name       string
		pixels     int
		wantLens   []int
		wantOffset []uint32
	}{
		{"single short", 10, []int{30}, []uint32{0}},
		{"exactly one packet", MaxPixels, []int{MaxDataLen}, []uint32{0}},
		{"one and a bit", MaxPixels + 1, []int{MaxDataLen, 3}, []uint32{0, MaxDataLen}},
		{"exactly two packets", 2 * MaxPixels, []int{MaxDataLen, MaxDataLen}, []uint32{0, MaxDataLen}},
		{"empty", 0, []int{0}, []uint32{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkts := Packets(make([]byte, tt.pixels*3), 4)
			if len(pkts) != len(tt.wantLens) {
				t.Fatalf("packets = %d, want %d", len(pkts), len(tt.wantLens))
			}
			for i, pkt := range pkts {
				h, ok := ParseHeader(pkt)
				if !ok {
					t.Fatalf("packet %d: header too short", i)
				}
				if int(h.Length) != tt.wantLens[i] || len(pkt)-HeaderLen != tt.wantLens[i] {
					t.Errorf("packet %d: length = %d (%d bytes), want %d", i, h.Length, len(pkt)-HeaderLen, tt.wantLens[i])
				}
				if h.Offset != tt.wantOffset[i] {
					t.Errorf("packet %d: offset = %d, want %d", i, h.Offset, tt.wantOffset[i])
				}
				last := i == len(pkts)-1
				if h.Push() != last {
					t.Errorf("packet %d: push = %v, want %v", i, h.Push(), last)
				}
				if h.Sequence != 4 || h.DataType != DataType || h.Source != SourceID {
					t.Errorf("packet %d: header = %+v", i, h)
				}
			}
		})
	}
}

func TestPackets_HeaderBytes(t *testing.T) {
	pkts := Packets([]byte{1, 2, 3}, 7)
	want := []byte{
		FlagVer1 | FlagPush, 7, DataType, SourceID,
		0, 0, 0, 0, // offset, big-endian
		0, 3, // length, big-endian
		1, 2, 3,
	}
	if !bytes.Equal(pkts[0], want) {
		t.Errorf("packet = % x\nwant   % x", pkts[0], want)
	}
}

func TestSequence(t *testing.T) {
	seen := make(map[uint8]bool)
	for n := uint64(0); n < 45; n++ {
		s := Sequence(n)
		if s < 1 || s > 15 {
			t.Fatalf("Sequence(%d) = %d, out of 1..15", n, s)
		}
		seen[s] = true
	}
	if len(seen) != 15 {
		t.Errorf("distinct sequences = %d, want 15", len(seen))
	}
	if Sequence(1) != 2 || Sequence(14) != 15 || Sequence(15) != 1 {
		t.Errorf("unexpected sequence mapping: 1→%d 14→%d 15→%d", Sequence(1), Sequence(14), Sequence(15))
	}
}

func TestParseHeader_Short(t *testing.T) {
	if _, ok := ParseHeader([]byte{0x41, 1}); ok {
		t.Error("ParseHeader() accepted a 2-byte packet")
	}
}
