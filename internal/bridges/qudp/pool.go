package qudp

import (
	"fmt"
	"net"
	"strconv"
	"sync"
)

// Logger defines the logging interface used by the QUDP bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Dialer opens the socket for a new connection. net.Dial satisfies it.
type Dialer func(network, address string) (net.Conn, error)

type poolKey struct {
	host string
	port int
}

// Conn is one UDP socket to a QUDP controller, shared by every device
// attached to it.
type Conn struct {
	key         poolKey
	conn        net.Conn
	queueLen    uint8
	refreshRate int
	refs        map[string]struct{}
}

// Send writes one packet. net.Conn writes are safe for concurrent use.
func (c *Conn) Send(packet []byte) error {
	if _, err := c.conn.Write(packet); err != nil {
		return fmt.Errorf("sending to %s: %w", c.Addr(), err)
	}
	return nil
}

// Addr returns "host:port" of the controller.
func (c *Conn) Addr() string {
	return net.JoinHostPort(c.key.host, strconv.Itoa(c.key.port))
}

// RefreshRate returns the rate negotiated in the SETUP handshake.
func (c *Conn) RefreshRate() int {
	return c.refreshRate
}

// Pool shares one Conn per controller address among every attached device.
//
// Attach and Detach are atomic with respect to each other; the only I/O
// done under the pool lock is the UDP dial and the SETUP/POWER writes,
// none of which block on the network.
type Pool struct {
	mu     sync.Mutex
	conns  map[poolKey]*Conn
	dial   Dialer
	logger Logger
	closed bool
}

// NewPool creates an empty pool that dials with net.Dial.
func NewPool() *Pool {
	return &Pool{
		conns:  make(map[poolKey]*Conn),
		dial:   net.Dial,
		logger: noopLogger{},
	}
}

// SetDialer replaces the socket dialer.
func (p *Pool) SetDialer(d Dialer) {
	p.mu.Lock()
	p.dial = d
	p.mu.Unlock()
}

// SetLogger sets the logger for the pool.
func (p *Pool) SetLogger(logger Logger) {
	p.mu.Lock()
	p.logger = logger
	p.mu.Unlock()
}

// Attach adds deviceID to the connection for host:port, creating the
// connection and sending SETUP if it does not exist yet. refreshRate is
// only used when the connection is created.
func (p *Pool) Attach(deviceID, host string, port, refreshRate int) (*Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	key := poolKey{host: host, port: port}
	if c, ok := p.conns[key]; ok {
		c.refs[deviceID] = struct{}{}
		return c, nil
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	nc, err := p.dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	c := &Conn{
		key:         key,
		conn:        nc,
		queueLen:    DefaultQueueLength,
		refreshRate: refreshRate,
		refs:        map[string]struct{}{deviceID: {}},
	}
	if err := c.Send(EncodeSetup(c.queueLen, FrameInterval(refreshRate))); err != nil {
		nc.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("sending setup: %w", err)
	}

	p.conns[key] = c
	p.logger.Info("qudp connection opened", "address", addr, "refresh_rate", refreshRate)
	return c, nil
}

// Detach removes deviceID from the connection for host:port. When no
// device is left, POWER off is sent, the socket is closed and the entry
// removed. It reports whether the connection was torn down.
func (p *Pool) Detach(deviceID, host string, port int) (closed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := poolKey{host: host, port: port}
	c, ok := p.conns[key]
	if !ok {
		return false
	}

	delete(c.refs, deviceID)
	if len(c.refs) > 0 {
		return false
	}

	p.teardown(c)
	delete(p.conns, key)
	return true
}

func (p *Pool) teardown(c *Conn) {
	if err := c.Send(EncodePower(false)); err != nil {
		p.logger.Warn("qudp power off failed", "address", c.Addr(), "error", err)
	}
	if err := c.conn.Close(); err != nil {
		p.logger.Warn("qudp close failed", "address", c.Addr(), "error", err)
	}
	p.logger.Info("qudp connection closed", "address", c.Addr())
}

// RefreshRate returns the negotiated refresh rate for host:port.
func (p *Pool) RefreshRate(host string, port int) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.conns[poolKey{host: host, port: port}]
	if !ok {
		return 0, false
	}
	return c.refreshRate, true
}

// RefCount returns the number of devices attached to host:port.
func (p *Pool) RefCount(host string, port int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.conns[poolKey{host: host, port: port}]
	if !ok {
		return 0
	}
	return len(c.refs)
}

// Len returns the number of open connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Close tears down every connection and rejects further attaches.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, c := range p.conns {
		p.teardown(c)
		delete(p.conns, key)
	}
	p.closed = true
}
