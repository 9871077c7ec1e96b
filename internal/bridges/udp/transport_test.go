package udp

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ledfx/ledfx-core/internal/device"
	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

type warnCounter struct{ n int }

func (w *warnCounter) Warn(string, ...any) { w.n++ }

func TestTransport_Payload(t *testing.T) {
	frame := device.Frame{{1, 2, 3}, {4, 5, 6}}

	tests := []struct {
		name      string
		cfg       config.DeviceConfig
		want      []byte
		wantWarns int
	}{
		{
			name: "plain",
			cfg:  config.DeviceConfig{},
			want: []byte{1, 2, 3, 4, 5, 6},
		},
		{
			name: "wled drgb prefix",
			cfg:  config.DeviceConfig{DataPrefix: "0201"},
			want: []byte{2, 1, 1, 2, 3, 4, 5, 6},
		},
		{
			name: "indexes and postfix",
			cfg:  config.DeviceConfig{IncludeIndexes: true, DataPostfix: "ff"},
			want: []byte{0, 1, 2, 3, 1, 4, 5, 6, 0xff},
		},
		{
			name:      "invalid hex is skipped",
			cfg:       config.DeviceConfig{DataPrefix: "zz", DataPostfix: "abc"},
			want:      []byte{1, 2, 3, 4, 5, 6},
			wantWarns: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &warnCounter{}
			tr := NewTransport(tt.cfg, logger)
			if got := tr.Payload(frame); !bytes.Equal(got, tt.want) {
				t.Errorf("Payload() = %v, want %v", got, tt.want)
			}
			if logger.n != tt.wantWarns {
				t.Errorf("warnings = %d, want %d", logger.n, tt.wantWarns)
			}
		})
	}
}

func TestTransport_Flush(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}
	defer pc.Close()
	port := pc.LocalAddr().(*net.UDPAddr).Port

	tr := NewTransport(config.DeviceConfig{Port: port, DataPrefix: "0201"}, nil)
	if err := tr.Flush(device.Frame{{1, 1, 1}}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Flush() before Open error = %v, want ErrNotOpen", err)
	}
	if err := tr.Open("127.0.0.1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := tr.Flush(device.Frame{{7, 8, 9}}); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	buf := make([]byte, 64)
	if err := pc.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}
	if want := []byte{2, 1, 7, 8, 9}; !bytes.Equal(buf[:n], want) {
		t.Errorf("datagram = %v, want %v", buf[:n], want)
	}

	if err := tr.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
