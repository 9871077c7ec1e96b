package qudp

import (
	"fmt"
	"sync"

	"github.com/ledfx/ledfx-core/internal/device"
	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

// Transport streams one device's frames to a strip of a QUDP controller
// over a pooled connection.
type Transport struct {
	pool        *Pool
	deviceID    string
	port        int
	strip       uint8
	refreshRate int

	mu      sync.Mutex
	conn    *Conn
	host    string
	frameID uint8
}

// NewTransport creates an unattached transport for deviceID.
func NewTransport(pool *Pool, deviceID string, cfg config.DeviceConfig) *Transport {
	return &Transport{
		pool:        pool,
		deviceID:    deviceID,
		port:        cfg.Port,
		strip:       uint8(cfg.StripIndex), //nolint:gosec // Validated to 0..7
		refreshRate: cfg.RefreshRate,
	}
}

// NewFactory returns a device.TransportFactory building QUDP transports
// on pool.
func NewFactory(pool *Pool) device.TransportFactory {
	return func(id string, cfg config.DeviceConfig) (device.Transport, error) {
		return NewTransport(pool, id, cfg), nil
	}
}

// Open attaches to the controller at dest, powers it on and resets this
// device's strip.
func (t *Transport) Open(dest string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	conn, err := t.pool.Attach(t.deviceID, dest, t.port, t.refreshRate)
	if err != nil {
		return err
	}
	for _, pkt := range [][]byte{EncodePower(true), EncodeReset(t.strip)} {
		if err := conn.Send(pkt); err != nil {
			t.pool.Detach(t.deviceID, dest, t.port)
			return err
		}
	}

	t.conn = conn
	t.host = dest
	t.frameID = 0
	return nil
}

// Flush sends frame as one DATA packet. The frame id wraps at 256.
func (t *Transport) Flush(frame device.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return ErrNotAttached
	}

	pkt, err := EncodeData(t.strip, t.frameID, frame.Bytes())
	if err != nil {
		return fmt.Errorf("encoding frame for %s: %w", t.deviceID, err)
	}
	t.frameID++
	return t.conn.Send(pkt)
}

// Close detaches from the pool. The controller is powered off only when
// this was the last device on the connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	t.pool.Detach(t.deviceID, t.host, t.port)
	t.conn = nil
	t.frameID = 0
	return nil
}

// RefreshRate returns the connection's negotiated rate, or 0 while
// unattached.
func (t *Transport) RefreshRate() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return 0
	}
	return t.conn.RefreshRate()
}
