package device

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
	"github.com/ledfx/ledfx-core/internal/task"
)

// Options carries the collaborators shared by every device.
// Zero fields fall back to defaults.
type Options struct {
	Logger   Logger
	Volume   VolumeSource // nil disables the silence timeout
	Events   EventSink
	Resolver Resolver
	Spawner  Spawner
	Clock    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	if o.Resolver == nil {
		o.Resolver = net.DefaultResolver
	}
	if o.Spawner == nil {
		o.Spawner = task.NewSpawner(context.Background())
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// claim is one segment registered by a display.
type claim struct {
	display DisplayHandle
	start   int
	end     int
}

// Device is a physical LED output with its own pixel buffer and transport.
type Device struct {
	id  string
	typ string

	logger   Logger
	volume   VolumeSource
	events   EventSink
	resolver Resolver
	spawner  Spawner
	clock    func() time.Time

	// refreshRate mirrors cfg.RefreshRate for lock-free reads.
	refreshRate atomic.Int64

	mu        sync.Mutex
	cfg       config.DeviceConfig
	transport Transport
	active    bool
	pixels    Frame
	claims    []claim
	silence   silenceTimer

	// Memoized views of claims, dropped by Invalidate.
	cacheValid  bool
	associated  []DisplayHandle
	priority    DisplayHandle
	hasPriority bool

	destMu    sync.Mutex
	dest      string
	resolving atomic.Bool

	framesFlushed atomic.Uint64
	flushErrors   atomic.Uint64
	lastFlush     atomic.Int64
}

// New creates an inactive device. cfg should already have defaults applied.
func New(id, deviceType string, cfg config.DeviceConfig, transport Transport, opts Options) *Device {
	opts = opts.withDefaults()
	d := &Device{
		id:        id,
		typ:       deviceType,
		cfg:       cfg,
		transport: transport,
		logger:    opts.Logger,
		volume:    opts.Volume,
		events:    opts.Events,
		resolver:  opts.Resolver,
		spawner:   opts.Spawner,
		clock:     opts.Clock,
	}
	d.refreshRate.Store(int64(cfg.RefreshRate))
	return d
}

// ID returns the device identifier.
func (d *Device) ID() string { return d.id }

// Type returns the device type tag.
func (d *Device) Type() string { return d.typ }

// Config returns a copy of the device configuration.
func (d *Device) Config() config.DeviceConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Name returns the configured friendly name.
func (d *Device) Name() string {
	return d.Config().Name
}

// PixelCount returns the configured number of pixels.
func (d *Device) PixelCount() int {
	return d.Config().PixelCount
}

// IsActive reports whether the device currently holds a pixel buffer.
func (d *Device) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// RefreshRate returns the transport-negotiated refresh rate if the
// transport reports one, otherwise the configured refresh_rate.
func (d *Device) RefreshRate() int {
	if rr, ok := d.currentTransport().(RefreshRater); ok {
		if rate := rr.RefreshRate(); rate > 0 {
			return rate
		}
	}
	return int(d.refreshRate.Load())
}

func (d *Device) currentTransport() Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transport
}

// Activate allocates a zeroed buffer and opens the transport.
//
// A networked device whose destination is not resolved yet schedules
// background resolution and returns ErrDestinationUnresolved; callers
// treat this as non-fatal and retry on the next activation.
func (d *Device) Activate() error {
	d.mu.Lock()
	changed, err := d.activateLocked()
	d.mu.Unlock()

	if changed {
		d.emitState(true)
	}
	return err
}

func (d *Device) activateLocked() (bool, error) {
	if d.active {
		return false, nil
	}

	dest, ok := d.destinationFor(trimHost(d.cfg.IPAddress))
	if !ok {
		d.logger.Warn("device destination not resolved, activation deferred",
			"device_id", d.id, "ip_address", d.cfg.IPAddress)
		return false, fmt.Errorf("activating %s: %w", d.id, ErrDestinationUnresolved)
	}

	if err := d.transport.Open(dest); err != nil {
		return false, fmt.Errorf("activating %s: opening transport: %w", d.id, err)
	}

	d.pixels = make(Frame, d.cfg.PixelCount)
	d.active = true
	d.logger.Info("device activated", "device_id", d.id, "destination", dest)
	return true, nil
}

// Deactivate releases the buffer and closes the transport. It is a no-op
// on an inactive device.
func (d *Device) Deactivate() {
	d.mu.Lock()
	changed := d.deactivateLocked()
	d.mu.Unlock()

	if changed {
		d.emitState(false)
	}
}

func (d *Device) deactivateLocked() bool {
	if !d.active {
		return false
	}
	if err := d.transport.Close(); err != nil {
		d.logger.Warn("closing device transport failed", "device_id", d.id, "error", err)
	}
	d.pixels = nil
	d.active = false
	d.silence.reset()
	d.logger.Info("device deactivated", "device_id", d.id)
	return true
}

// UpdatePixels writes slices from displayID into the buffer. When
// displayID is the priority display the assembled frame is flushed.
//
// The silence timeout is evaluated first; if it fires, every display on
// the device has its effect cleared, the device is deactivated and the
// update is dropped.
func (d *Device) UpdatePixels(displayID string, slices []Slice) error {
	d.mu.Lock()

	if !d.active {
		d.mu.Unlock()
		return fmt.Errorf("updating %s: %w", d.id, ErrNotActive)
	}

	if d.silenceExpiredLocked() {
		displays := d.associatedLocked()
		d.mu.Unlock()
		d.logger.Info("inactivity timeout reached, deactivating device", "device_id", d.id)
		for _, disp := range displays {
			disp.ClearEffect()
		}
		d.Deactivate()
		return nil
	}

	for _, s := range slices {
		if s.Start < 0 || s.End >= len(d.pixels) || s.End-s.Start+1 != len(s.Pixels) {
			d.mu.Unlock()
			return fmt.Errorf("updating %s: slice %d-%d with %d pixels: %w",
				d.id, s.Start, s.End, len(s.Pixels), ErrInvalidSegment)
		}
	}
	for _, s := range slices {
		copy(d.pixels[s.Start:s.End+1], s.Pixels)
	}

	prio, ok := d.priorityLocked()
	if !ok || prio.ID() != displayID {
		d.mu.Unlock()
		return nil
	}

	frame := d.assembleFrameLocked()
	if err := d.transport.Flush(frame); err != nil {
		d.flushErrors.Add(1)
		d.logger.Warn("device flush failed", "device_id", d.id, "error", err)
	} else {
		d.framesFlushed.Add(1)
		d.lastFlush.Store(d.clock().UnixNano())
	}
	d.mu.Unlock()

	if d.events != nil {
		d.events.DeviceUpdated(d.id, frame)
	}
	return nil
}

// AssembleFrame returns a copy of the buffer rotated by center_offset.
// It returns nil for an inactive device.
func (d *Device) AssembleFrame() Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.assembleFrameLocked()
}

// assembleFrameLocked rotates right by center_offset; pixel i moves to
// i+offset modulo pixel_count.
func (d *Device) assembleFrameLocked() Frame {
	n := len(d.pixels)
	if n == 0 {
		return nil
	}
	out := make(Frame, n)
	offset := ((d.cfg.CenterOffset % n) + n) % n
	if offset == 0 {
		copy(out, d.pixels)
		return out
	}
	copy(out[offset:], d.pixels[:n-offset])
	copy(out[:offset], d.pixels[n-offset:])
	return out
}

// UpdateConfig replaces the configuration and transport. An active
// device is deactivated first; the caller reloads display segments to
// bring it back. Cached priority and resolution state are dropped.
func (d *Device) UpdateConfig(cfg config.DeviceConfig, transport Transport) {
	d.mu.Lock()
	changed := d.deactivateLocked()
	addrChanged := cfg.IPAddress != d.cfg.IPAddress
	d.cfg = cfg
	d.transport = transport
	d.refreshRate.Store(int64(cfg.RefreshRate))
	d.invalidateLocked()
	d.mu.Unlock()

	if addrChanged {
		d.destMu.Lock()
		d.dest = ""
		d.destMu.Unlock()
	}
	if changed {
		d.emitState(false)
	}
}

// Stats returns a snapshot of the flush counters.
func (d *Device) Stats() Stats {
	s := Stats{
		Active:        d.IsActive(),
		FramesFlushed: d.framesFlushed.Load(),
		FlushErrors:   d.flushErrors.Load(),
	}
	if ns := d.lastFlush.Load(); ns != 0 {
		s.LastFlush = time.Unix(0, ns)
	}
	return s
}

func (d *Device) emitState(active bool) {
	if d.events != nil {
		d.events.DeviceStateChanged(d.id, active)
	}
}
