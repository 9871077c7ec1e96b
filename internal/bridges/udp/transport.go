package udp

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/ledfx/ledfx-core/internal/device"
	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

// ErrNotOpen is returned by Flush before Open or after Close.
var ErrNotOpen = errors.New("udp: transport not open")

// Logger defines the logging interface used by the UDP transport.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Transport sends each frame as one UDP datagram.
type Transport struct {
	port           int
	includeIndexes bool
	prefix         []byte
	postfix        []byte

	mu   sync.Mutex
	conn net.Conn
}

// NewTransport creates a closed transport. Prefix and postfix strings
// that are not valid hex are logged and ignored.
func NewTransport(cfg config.DeviceConfig, logger Logger) *Transport {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Transport{
		port:           cfg.Port,
		includeIndexes: cfg.IncludeIndexes,
		prefix:         decodeHex(logger, "data_prefix", cfg.DataPrefix),
		postfix:        decodeHex(logger, "data_postfix", cfg.DataPostfix),
	}
}

// NewFactory returns a device.TransportFactory for udp devices.
func NewFactory(logger Logger) device.TransportFactory {
	return func(_ string, cfg config.DeviceConfig) (device.Transport, error) {
		return NewTransport(cfg, logger), nil
	}
}

func decodeHex(logger Logger, field, s string) []byte {
	if s == "" {
		return nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		logger.Warn("cannot convert value to hex, ignoring", "field", field, "value", s, "error", err)
		return nil
	}
	return b
}

// Payload builds the datagram for frame.
func (t *Transport) Payload(frame device.Frame) []byte {
	per := 3
	if t.includeIndexes {
		per = 4
	}
	buf := make([]byte, 0, len(t.prefix)+per*len(frame)+len(t.postfix))
	buf = append(buf, t.prefix...)
	for i, p := range frame {
		if t.includeIndexes {
			buf = append(buf, byte(i)) //nolint:gosec // Index byte wraps past 255
		}
		buf = append(buf, p[0], p[1], p[2])
	}
	return append(buf, t.postfix...)
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
	return nil
}

// Flush sends frame as one datagram.
func (t *Transport) Flush(frame device.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return ErrNotOpen
	}
	if _, err := t.conn.Write(t.Payload(frame)); err != nil {
		return fmt.Errorf("sending udp frame: %w", err)
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
