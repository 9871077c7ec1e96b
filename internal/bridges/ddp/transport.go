package ddp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/ledfx/ledfx-core/internal/device"
	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

// ErrNotOpen is returned by Flush before Open or after Close.
var ErrNotOpen = errors.New("ddp: transport not open")

// Transport sends device frames as DDP packets over UDP.
type Transport struct {
	port int

	mu         sync.Mutex
	conn       net.Conn
	frameCount uint64
}

// NewTransport creates a closed transport targeting cfg.Port.
func NewTransport(cfg config.DeviceConfig) *Transport {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	return &Transport{port: port}
}

// NewFactory returns a device.TransportFactory for ddp and wled devices.
func NewFactory() device.TransportFactory {
	return func(_ string, cfg config.DeviceConfig) (device.Transport, error) {
		return NewTransport(cfg), nil
	}
}

// Open dials dest on the configured port.
func (t *Transport) Open(dest string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}
	addr := net.JoinHostPort(dest, strconv.Itoa(t.port))
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	t.conn = conn
	t.frameCount = 0
	return nil
}

// Flush sends one frame. The frame count is advanced before sending so
// the first frame carries sequence 2, matching existing senders.
func (t *Transport) Flush(frame device.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return ErrNotOpen
	}

	t.frameCount++
	for _, pkt := range Packets(frame.Bytes(), Sequence(t.frameCount)) {
		if _, err := t.conn.Write(pkt); err != nil {
			return fmt.Errorf("sending ddp packet: %w", err)
		}
	}
	return nil
}

// Close closes the socket. Closing a closed transport is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
