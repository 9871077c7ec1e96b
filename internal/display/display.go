package display

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ledfx/ledfx-core/internal/device"
	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

// DeviceSource looks up devices by id. *device.Registry satisfies it.
type DeviceSource interface {
	Get(id string) (*device.Device, error)
}

// Logger defines the logging interface used by displays and the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Display is a logical output spanning segments of one or more devices.
//
// All public methods are thread-safe.
type Display struct {
	id       string
	isDevice string
	devices  DeviceSource
	logger   Logger

	// Read by devices under their own lock.
	cfg         atomic.Pointer[config.DisplayConfig]
	active      atomic.Bool
	refreshRate atomic.Int64

	mu       sync.Mutex
	segments []device.Segment
	effect   Effect
	claimed  []*device.Device
}

// New creates an inactive display without segments. isDevice names the
// device the display was generated for, or is empty.
func New(id string, cfg config.DisplayConfig, isDevice string, devices DeviceSource, logger Logger) *Display {
	if logger == nil {
		logger = noopLogger{}
	}
	d := &Display{
		id:       id,
		isDevice: isDevice,
		devices:  devices,
		logger:   logger,
	}
	d.cfg.Store(&cfg)
	d.refreshRate.Store(int64(d.computeRefreshRate(nil)))
	return d
}

// ID returns the display identifier.
func (d *Display) ID() string { return d.id }

// Name returns the configured friendly name.
func (d *Display) Name() string { return d.cfg.Load().Name }

// Config returns a copy of the display configuration.
func (d *Display) Config() config.DisplayConfig { return *d.cfg.Load() }

// IsDevice returns the id of the device this display mirrors, if any.
func (d *Display) IsDevice() string { return d.isDevice }

// IsActive reports whether the display's segments are registered.
func (d *Display) IsActive() bool { return d.active.Load() }

// RefreshRate returns the configured refresh_rate, or the slowest
// refresh rate among the devices the display spans.
func (d *Display) RefreshRate() int { return int(d.refreshRate.Load()) }

// Segments returns a copy of the segment list.
func (d *Display) Segments() []device.Segment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]device.Segment(nil), d.segments...)
}

// PixelCount returns the total length of all segments.
func (d *Display) PixelCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return pixelCount(d.segments)
}

// Effect returns the applied effect, or nil.
func (d *Display) Effect() Effect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.effect
}

// Entry returns the persisted form of the display.
func (d *Display) Entry() config.DisplayEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry := config.DisplayEntry{
		ID:       d.id,
		Config:   d.Config(),
		IsDevice: d.isDevice,
		Segments: make([]config.SegmentEntry, 0, len(d.segments)),
	}
	for _, s := range d.segments {
		entry.Segments = append(entry.Segments, config.SegmentEntry(s))
	}
	if d.effect != nil {
		entry.Effect = &config.EffectEntry{Type: d.effect.Type()}
	}
	return entry
}

// SetEffect applies effect, activating the display's segments first if
// needed. A segment conflict leaves the display inactive and without
// the new effect.
func (d *Display) SetEffect(effect Effect) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active.Load() {
		if err := d.activateSegmentsLocked(); err != nil {
			return fmt.Errorf("applying effect to %s: %w", d.id, err)
		}
	}
	d.effect = effect
	d.logger.Info("effect applied", "display_id", d.id, "effect", effect.Type())
	return nil
}

// ClearEffect removes the effect and releases the display's segments.
// Devices left without an active display are deactivated.
func (d *Display) ClearEffect() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.effect != nil {
		d.logger.Info("effect cleared", "display_id", d.id, "effect", d.effect.Type())
	}
	d.effect = nil
	if d.active.Load() {
		d.deactivateSegmentsLocked()
	}
}

// SetActive registers or releases the display's segments without
// touching the effect.
func (d *Display) SetActive(active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case active && !d.active.Load():
		return d.activateSegmentsLocked()
	case !active && d.active.Load():
		d.deactivateSegmentsLocked()
	}
	return nil
}

// UpdateSegments replaces the segment list. Every segment must name an
// existing device and fit inside it. An active display re-registers its
// segments; on conflict the previous list is restored and re-registered.
func (d *Display) UpdateSegments(segs []device.Segment) error {
	if err := d.validate(segs); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	old, prev := d.segments, d.claimed
	d.segments = append([]device.Segment(nil), segs...)

	if !d.active.Load() {
		d.refreshRate.Store(int64(d.computeRefreshRate(d.segments)))
		return nil
	}

	// Devices kept by the new list stay open; only the ones dropped are
	// deactivated once the new claims are in place.
	d.releaseClaimsLocked()
	err := d.activateSegmentsLocked()
	if err != nil {
		d.logger.Warn("segment update rejected, restoring previous segments", "display_id", d.id, "error", err)
		d.segments = old
		if rerr := d.activateSegmentsLocked(); rerr != nil {
			d.logger.Warn("failed to restore previous segments", "display_id", d.id, "error", rerr)
		}
	}
	d.deactivateIdleLocked(prev)
	return err
}

// ReloadSegments releases and re-registers the segments of an active
// display, picking up device configuration changes.
func (d *Display) ReloadSegments() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active.Load() {
		d.refreshRate.Store(int64(d.computeRefreshRate(d.segments)))
		return nil
	}
	prev := d.claimed
	d.releaseClaimsLocked()
	err := d.activateSegmentsLocked()
	d.deactivateIdleLocked(prev)
	return err
}

func (d *Display) validate(segs []device.Segment) error {
	for i, s := range segs {
		dev, err := d.devices.Get(s.Device)
		if err != nil {
			return fmt.Errorf("segment %d of %s: device %q: %w", i, d.id, s.Device, ErrInvalidSegment)
		}
		if s.Start < 0 || s.End < s.Start || s.End >= dev.PixelCount() {
			return fmt.Errorf("segment %d of %s: range %d-%d outside device %q with %d pixels: %w",
				i, d.id, s.Start, s.End, s.Device, dev.PixelCount(), ErrInvalidSegment)
		}
	}
	return nil
}

// activateSegmentsLocked registers every segment on its device and
// activates the devices. On failure every segment registered so far is
// released and the display stays inactive.
func (d *Display) activateSegmentsLocked() error {
	// Devices evaluate priority from the active flag, so it is set before
	// the first claim invalidates their caches.
	d.active.Store(true)

	var claimed []*device.Device
	seen := make(map[string]bool)
	rollback := func() {
		d.active.Store(false)
		for _, dev := range claimed {
			dev.ClearDisplaySegments(d.id)
		}
	}

	for _, s := range d.segments {
		dev, err := d.devices.Get(s.Device)
		if err != nil {
			rollback()
			return fmt.Errorf("activating %s: device %q: %w", d.id, s.Device, err)
		}
		if !seen[s.Device] {
			seen[s.Device] = true
			claimed = append(claimed, dev)
		}
		if err := dev.AddSegment(d, s.Start, s.End); err != nil {
			rollback()
			return err
		}
	}

	d.claimed = claimed

	for _, dev := range claimed {
		if dev.IsActive() {
			continue
		}
		if err := dev.Activate(); err != nil {
			if errors.Is(err, device.ErrDestinationUnresolved) {
				d.logger.Debug("device activation deferred", "display_id", d.id, "device_id", dev.ID())
				continue
			}
			d.logger.Warn("device activation failed", "display_id", d.id, "device_id", dev.ID(), "error", err)
		}
	}

	// Transports negotiate their rate when they open, so the rate is
	// computed only after every device has been activated.
	d.refreshRate.Store(int64(d.computeRefreshRate(d.segments)))
	for _, dev := range claimed {
		dev.Invalidate()
	}

	d.logger.Debug("display segments activated", "display_id", d.id, "segments", len(d.segments))
	return nil
}

// deactivateSegmentsLocked releases every claim and deactivates devices
// no longer driven by an active display.
func (d *Display) deactivateSegmentsLocked() {
	prev := d.claimed
	d.releaseClaimsLocked()
	d.deactivateIdleLocked(prev)
	d.logger.Debug("display segments deactivated", "display_id", d.id)
}

// releaseClaimsLocked drops the display's claims without touching device
// activation.
func (d *Display) releaseClaimsLocked() {
	d.active.Store(false)
	for _, dev := range d.claimed {
		dev.ClearDisplaySegments(d.id)
	}
	d.claimed = nil
}

// deactivateIdleLocked deactivates the devices in devs that the display
// no longer claims and that no other active display drives.
func (d *Display) deactivateIdleLocked(devs []*device.Device) {
	for _, dev := range devs {
		if d.claims(dev) {
			continue
		}
		if _, ok := dev.PriorityDisplay(); !ok {
			dev.Deactivate()
		}
	}
}

func (d *Display) claims(dev *device.Device) bool {
	for _, c := range d.claimed {
		if c == dev {
			return true
		}
	}
	return false
}

func (d *Display) computeRefreshRate(segs []device.Segment) int {
	if rate := d.cfg.Load().RefreshRate; rate > 0 {
		return rate
	}

	slowest := 0
	for _, s := range segs {
		dev, err := d.devices.Get(s.Device)
		if err != nil {
			continue
		}
		if rate := dev.RefreshRate(); rate > 0 && (slowest == 0 || rate < slowest) {
			slowest = rate
		}
	}
	if slowest == 0 {
		return config.DefaultRefreshRate
	}
	return slowest
}

// batch is every slice a display sends one device in a tick.
type batch struct {
	device string
	slices []device.Slice
}

// partition cuts frame into per-device batches in segment order.
func partition(frame device.Frame, segs []device.Segment) ([]batch, error) {
	if n := pixelCount(segs); len(frame) != n {
		return nil, fmt.Errorf("%w: got %d pixels, want %d", ErrFrameSize, len(frame), n)
	}

	var out []batch
	index := make(map[string]int)
	offset := 0
	for _, s := range segs {
		pixels := frame[offset : offset+s.Len()].Clone()
		offset += s.Len()
		if s.Flip {
			for i, j := 0, len(pixels)-1; i < j; i, j = i+1, j-1 {
				pixels[i], pixels[j] = pixels[j], pixels[i]
			}
		}

		slice := device.Slice{Pixels: pixels, Start: s.Start, End: s.End}
		if i, ok := index[s.Device]; ok {
			out[i].slices = append(out[i].slices, slice)
			continue
		}
		index[s.Device] = len(out)
		out = append(out, batch{device: s.Device, slices: []device.Slice{slice}})
	}
	return out, nil
}

// prepare snapshots the segments and partitions frame.
func (d *Display) prepare(frame device.Frame) ([]batch, error) {
	d.mu.Lock()
	if !d.active.Load() {
		d.mu.Unlock()
		return nil, fmt.Errorf("updating %s: %w", d.id, ErrNotActive)
	}
	segs := d.segments
	d.mu.Unlock()

	batches, err := partition(frame, segs)
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", d.id, err)
	}
	return batches, nil
}

// UpdatePixels pushes one frame to the display's devices, one call per
// device carrying every slice for it.
//
// The display lock is not held while devices are called: a device that
// hits its silence timeout clears this display's effect from inside the
// call.
func (d *Display) UpdatePixels(frame device.Frame) error {
	batches, err := d.prepare(frame)
	if err != nil {
		return err
	}

	var errs []error
	for _, b := range batches {
		if err := d.send(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Display) send(b batch) error {
	dev, err := d.devices.Get(b.device)
	if err != nil {
		return fmt.Errorf("updating %s: device %q: %w", d.id, b.device, err)
	}
	if err := dev.UpdatePixels(d.id, b.slices); err != nil {
		if errors.Is(err, device.ErrNotActive) {
			// Activation deferred or device timed out.
			return nil
		}
		return err
	}
	return nil
}

func pixelCount(segs []device.Segment) int {
	n := 0
	for _, s := range segs {
		n += s.Len()
	}
	return n
}
