package display

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ledfx/ledfx-core/internal/device"
	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

// Registry owns every display.
//
// All public methods are thread-safe.
type Registry struct {
	devices DeviceSource

	mu       sync.RWMutex
	displays map[string]*Display

	// Frames submitted since the last tick, keyed by display id.
	frameMu sync.Mutex
	pending map[string]device.Frame

	repo         Repository
	logger       Logger
	removeDevice func(ctx context.Context, id string) error
}

// NewRegistry creates an empty registry resolving segments through devices.
func NewRegistry(devices DeviceSource) *Registry {
	return &Registry{
		devices:  devices,
		displays: make(map[string]*Display),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry and displays it creates
// afterwards.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetRepository sets the store used to persist display changes.
func (r *Registry) SetRepository(repo Repository) {
	r.repo = repo
}

// OnDestroyDevice sets the function that removes the device a generated
// display mirrors when that display is destroyed.
func (r *Registry) OnDestroyDevice(fn func(ctx context.Context, id string) error) {
	r.removeDevice = fn
}

// CreateFromConfig creates a display for each entry and applies any
// configured effect. Failing entries are logged and joined into the
// returned error; the rest are still created.
func (r *Registry) CreateFromConfig(entries []config.DisplayEntry) error {
	var errs []error
	for _, e := range entries {
		d, err := r.Create(e)
		if err != nil {
			r.logger.Warn("failed to create display", "display_id", e.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		if e.Effect != nil && e.Effect.Type != "" {
			if err := d.SetEffect(NamedEffect(e.Effect.Type)); err != nil {
				r.logger.Warn("failed to apply configured effect", "display_id", e.ID, "error", err)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Create registers a display built from entry. An entry without an id
// gets a random one. The effect in entry is ignored; see CreateFromConfig.
func (r *Registry) Create(entry config.DisplayEntry) (*Display, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Config.RefreshRate < 0 {
		return nil, fmt.Errorf("creating display %s: refresh_rate %d: %w", entry.ID, entry.Config.RefreshRate, ErrInvalidDisplay)
	}

	d := New(entry.ID, entry.Config, entry.IsDevice, r.devices, r.logger)
	if err := d.UpdateSegments(toSegments(entry.Segments)); err != nil {
		return nil, fmt.Errorf("creating display %s: %w", entry.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.displays[entry.ID]; exists {
		return nil, fmt.Errorf("creating display %s: %w", entry.ID, ErrDisplayExists)
	}
	r.displays[entry.ID] = d

	r.logger.Info("display created", "display_id", entry.ID, "segments", len(entry.Segments))
	return d, nil
}

// CreateForDevice creates and persists the full-length display mirroring
// a newly added device. An existing display with the same id is left alone.
func (r *Registry) CreateForDevice(ctx context.Context, dev *device.Device) (*Display, error) {
	cfg := dev.Config()
	entry := config.DisplayEntry{
		ID:       device.GenerateID(cfg.Name),
		Config:   config.DisplayConfig{Name: cfg.Name, IconName: cfg.IconName},
		Segments: []config.SegmentEntry{{Device: dev.ID(), Start: 0, End: cfg.PixelCount - 1}},
		IsDevice: dev.ID(),
	}

	d, err := r.Create(entry)
	if errors.Is(err, ErrDisplayExists) {
		r.logger.Debug("display for device already exists", "display_id", entry.ID, "device_id", dev.ID())
		return r.Get(entry.ID)
	}
	if err != nil {
		return nil, err
	}

	r.persist(ctx, d, true)
	return d, nil
}

// UpdateSegments replaces a display's segments and persists the change.
func (r *Registry) UpdateSegments(ctx context.Context, id string, segs []device.Segment) error {
	d, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := d.UpdateSegments(segs); err != nil {
		return err
	}
	r.persist(ctx, d, false)
	return nil
}

func (r *Registry) persist(ctx context.Context, d *Display, create bool) {
	if r.repo == nil {
		return
	}

	entry := d.Entry()
	var err error
	if create {
		err = r.repo.Create(ctx, entry)
		if errors.Is(err, ErrDisplayExists) {
			err = r.repo.Update(ctx, entry)
		}
	} else {
		err = r.repo.Update(ctx, entry)
		if errors.Is(err, ErrDisplayNotFound) {
			err = r.repo.Create(ctx, entry)
		}
	}
	if err != nil {
		r.logger.Warn("failed to persist display", "display_id", d.ID(), "error", err)
	}
}

// Destroy clears a display's effect and removes it. A display generated
// for a device takes that device with it.
func (r *Registry) Destroy(ctx context.Context, id string) error {
	r.mu.Lock()
	d, ok := r.displays[id]
	if ok {
		delete(r.displays, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrDisplayNotFound
	}

	d.ClearEffect()

	var errs []error
	if r.repo != nil {
		if err := r.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrDisplayNotFound) {
			errs = append(errs, fmt.Errorf("deleting display %s: %w", id, err))
		}
	}
	if devID := d.IsDevice(); devID != "" && r.removeDevice != nil {
		if err := r.removeDevice(ctx, devID); err != nil && !errors.Is(err, device.ErrDeviceNotFound) {
			errs = append(errs, fmt.Errorf("removing device %s: %w", devID, err))
		}
	}

	r.logger.Info("display destroyed", "display_id", id)
	return errors.Join(errs...)
}

// DeviceRemoved drops every reference to a removed device: the display
// generated for it is destroyed and other displays lose their segments
// on it.
func (r *Registry) DeviceRemoved(ctx context.Context, deviceID string) {
	for _, d := range r.List() {
		if d.IsDevice() == deviceID {
			if err := r.Destroy(ctx, d.ID()); err != nil {
				r.logger.Warn("failed to destroy device display", "display_id", d.ID(), "error", err)
			}
			continue
		}

		segs := d.Segments()
		kept := segs[:0]
		for _, s := range segs {
			if s.Device != deviceID {
				kept = append(kept, s)
			}
		}
		if len(kept) == len(segs) {
			continue
		}
		if err := r.UpdateSegments(ctx, d.ID(), kept); err != nil {
			r.logger.Warn("failed to drop segments of removed device", "display_id", d.ID(), "device_id", deviceID, "error", err)
		}
	}
}

// Get returns a display by id.
func (r *Registry) Get(id string) (*Display, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.displays[id]
	if !ok {
		return nil, ErrDisplayNotFound
	}
	return d, nil
}

// List returns every display sorted by id.
func (r *Registry) List() []*Display {
	r.mu.RLock()
	out := make([]*Display, 0, len(r.displays))
	for _, d := range r.displays {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Count returns the number of displays.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.displays)
}

// LoadFromRepository creates every stored display not already present.
func (r *Registry) LoadFromRepository(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}
	entries, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading displays: %w", err)
	}

	var fresh []config.DisplayEntry
	for _, e := range entries {
		if _, err := r.Get(e.ID); err == nil {
			continue
		}
		fresh = append(fresh, e)
	}
	return r.CreateFromConfig(fresh)
}

// Shutdown clears the effect of every display.
func (r *Registry) Shutdown() {
	for _, d := range r.List() {
		d.ClearEffect()
	}
}

// delivery is one display's batch for a device within a tick.
type delivery struct {
	display *Display
	slices  []device.Slice
}

// Tick pushes one frame per display, keyed by display id.
//
// Updates are grouped per device. For each device the batches of
// displays that are not its priority display are applied first and the
// priority display's batch last, so each device flushes exactly once
// with every display's pixels merged. Devices are processed in id order.
func (r *Registry) Tick(frames map[string]device.Frame) error {
	var errs []error
	perDevice := make(map[string][]delivery)

	ids := make([]string, 0, len(frames))
	for id := range frames {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		d, err := r.Get(id)
		if err != nil {
			errs = append(errs, fmt.Errorf("tick: display %s: %w", id, err))
			continue
		}
		batches, err := d.prepare(frames[id])
		if err != nil {
			if !errors.Is(err, ErrNotActive) {
				errs = append(errs, err)
			}
			continue
		}
		for _, b := range batches {
			perDevice[b.device] = append(perDevice[b.device], delivery{display: d, slices: b.slices})
		}
	}

	devIDs := make([]string, 0, len(perDevice))
	for id := range perDevice {
		devIDs = append(devIDs, id)
	}
	sort.Strings(devIDs)

	for _, devID := range devIDs {
		dev, err := r.devices.Get(devID)
		if err != nil {
			errs = append(errs, fmt.Errorf("tick: device %s: %w", devID, err))
			continue
		}

		ordered := orderForDevice(dev, perDevice[devID])
		for _, del := range ordered {
			if err := del.display.send(batch{device: devID, slices: del.slices}); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// orderForDevice moves the device's priority display to the end,
// keeping the relative order of the others.
func orderForDevice(dev *device.Device, dels []delivery) []delivery {
	prio, ok := dev.PriorityDisplay()
	if !ok {
		return dels
	}
	out := make([]delivery, 0, len(dels))
	var last []delivery
	for _, del := range dels {
		if del.display.ID() == prio.ID() {
			last = append(last, del)
			continue
		}
		out = append(out, del)
	}
	return append(out, last...)
}

func toSegments(entries []config.SegmentEntry) []device.Segment {
	out := make([]device.Segment, 0, len(entries))
	for _, e := range entries {
		out = append(out, device.Segment(e))
	}
	return out
}
