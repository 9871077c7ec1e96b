package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ledfx/ledfx-core/internal/discovery"
	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
	"github.com/ledfx/ledfx-core/internal/task"
)

// initConcurrency caps concurrent address resolutions in InitializeDevices.
const initConcurrency = 8

// Logger defines the logging interface used by devices and the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// TransportFactory builds the transport for a device of one type.
type TransportFactory func(id string, cfg config.DeviceConfig) (Transport, error)

// Prober fills in a device configuration by querying the device itself.
type Prober interface {
	Probe(ctx context.Context, host string) (config.DeviceConfig, error)
}

// Registry owns every device and creates them from configuration or
// discovery.
//
// All public methods are thread-safe.
type Registry struct {
	factories map[string]TransportFactory
	opts      Options

	mu      sync.RWMutex
	devices map[string]*Device

	repo    Repository
	prober  Prober
	logger  Logger
	onAdded   func(*Device)
	onRemoved func(id string)
	onClose   func()

	shutdownOnce sync.Once
}

// NewRegistry creates a registry that builds transports with factories,
// keyed by device type. opts is handed to every device it creates.
func NewRegistry(factories map[string]TransportFactory, opts Options) *Registry {
	opts = opts.withDefaults()
	return &Registry{
		factories: factories,
		opts:      opts,
		devices:   make(map[string]*Device),
		logger:    opts.Logger,
	}
}

// SetLogger sets the logger for the registry and for devices it
// creates afterwards.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
	r.opts.Logger = logger
}

// SetRepository enables persistence of devices added at runtime.
func (r *Registry) SetRepository(repo Repository) {
	r.repo = repo
}

// SetProber sets the prober used to configure wled devices.
func (r *Registry) SetProber(p Prober) {
	r.prober = p
}

// OnDeviceAdded registers a hook run after AddNewDevice succeeds.
func (r *Registry) OnDeviceAdded(fn func(*Device)) {
	r.onAdded = fn
}

// OnDeviceRemoved registers a hook run after Remove succeeds.
func (r *Registry) OnDeviceRemoved(fn func(id string)) {
	r.onRemoved = fn
}

// OnShutdown registers a hook run once after every device is deactivated,
// typically closing the shared connection pool.
func (r *Registry) OnShutdown(fn func()) {
	r.onClose = fn
}

// CreateFromConfig instantiates each entry without activating it.
// Bad entries are logged and reported in the joined error; the others
// are still created.
func (r *Registry) CreateFromConfig(entries []config.DeviceEntry) error {
	var errs []error
	for _, e := range entries {
		r.logger.Info("loading device from config", "device_id", e.ID, "type", e.Type)
		if _, err := r.Create(e.ID, e.Type, e.Config); err != nil {
			r.logger.Warn("failed to create device", "device_id", e.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Create builds and registers an inactive device.
func (r *Registry) Create(id, deviceType string, cfg config.DeviceConfig) (*Device, error) {
	factory, ok := r.factories[deviceType]
	if !ok {
		return nil, fmt.Errorf("creating %s: %w: %q", id, ErrUnknownType, deviceType)
	}

	cfg = cfg.WithDefaults(deviceType)
	if msgs := cfg.Validate(deviceType); len(msgs) > 0 {
		return nil, fmt.Errorf("creating %s: %w: %s", id, ErrInvalidDevice, strings.Join(msgs, "; "))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[id]; exists {
		return nil, fmt.Errorf("creating %s: %w", id, ErrDeviceExists)
	}

	transport, err := factory(id, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s transport: %w", id, err)
	}

	d := New(id, deviceType, cfg, transport, r.opts)
	r.devices[id] = d
	return d, nil
}

// InitializeDevices resolves every device address concurrently. Each
// failure is logged; all devices are attempted and the failures are
// returned joined.
func (r *Registry) InitializeDevices(ctx context.Context) error {
	devices := r.List()

	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(initConcurrency)
	for _, d := range devices {
		g.Go(func() error {
			if err := d.ResolveAddress(gctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			// Never fail the group: one device must not cancel the others.
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Goroutines always return nil

	if len(errs) > 0 {
		r.logger.Warn("some devices could not be resolved", "failed", len(errs), "total", len(devices))
	}
	return errors.Join(errs...)
}

// AddNewDevice creates, resolves and persists a device, then runs the
// OnDeviceAdded hook.
//
// The id is generated from the configured name. A wled device has its
// name and pixel count filled in by the Prober. A clashing id or an
// existing device with the same address returns ErrDeviceExists.
func (r *Registry) AddNewDevice(ctx context.Context, deviceType string, cfg config.DeviceConfig) (*Device, error) {
	if deviceType == config.DeviceTypeWLED {
		if r.prober == nil {
			return nil, fmt.Errorf("adding wled device %s: no prober configured: %w", cfg.IPAddress, ErrInvalidDevice)
		}
		probed, err := r.prober.Probe(ctx, cfg.IPAddress)
		if err != nil {
			return nil, fmt.Errorf("probing wled device %s: %w", cfg.IPAddress, err)
		}
		cfg = mergeProbed(cfg, probed)
	}

	cfg = cfg.WithDefaults(deviceType)
	if existing := r.findByAddress(deviceType, cfg); existing != nil {
		return nil, fmt.Errorf("adding %s: shares destination with %s: %w", cfg.IPAddress, existing.ID(), ErrDeviceExists)
	}

	id := generateID(cfg.Name)
	if id == "" {
		return nil, fmt.Errorf("adding device: name %q yields empty id: %w", cfg.Name, ErrInvalidDevice)
	}

	r.logger.Info("adding device", "device_id", id, "type", deviceType, "ip_address", cfg.IPAddress)
	d, err := r.Create(id, deviceType, cfg)
	if err != nil {
		return nil, err
	}

	// Resolution failure is not fatal; activation retries it.
	_ = d.ResolveAddress(ctx) //nolint:errcheck // Logged by ResolveAddress

	if r.repo != nil {
		entry := config.DeviceEntry{ID: id, Type: deviceType, Config: d.Config()}
		if err := r.repo.Create(ctx, entry); err != nil && !errors.Is(err, ErrDeviceExists) {
			r.logger.Warn("failed to persist device", "device_id", id, "error", err)
		}
	}

	if r.onAdded != nil {
		r.onAdded(d)
	}
	return d, nil
}

// HandleDiscovered submits device creation for a discovered WLED
// candidate in the background. Duplicates are expected when a device
// answers more than once and are logged at debug level only.
func (r *Registry) HandleDiscovered(c discovery.Candidate) {
	host := c.Host()
	if host == "" {
		return
	}
	cfg := config.DeviceConfig{IPAddress: host}

	r.opts.Spawner.Go("add discovered "+host, func(ctx context.Context) error {
		_, err := r.AddNewDevice(ctx, config.DeviceTypeWLED, cfg)
		return err
	}, func(err error) {
		switch {
		case err == nil:
		case errors.Is(err, ErrDeviceExists):
			r.logger.Debug("discovered device already registered", "host", host, "instance", c.Instance)
		case errors.Is(err, task.ErrClosed):
			r.logger.Debug("discovered device ignored during shutdown", "host", host, "instance", c.Instance)
		default:
			r.logger.Warn("failed to add discovered device", "host", host, "instance", c.Instance, "error", err)
		}
	})
}

// UpdateDeviceConfig replaces a device's configuration and rebuilds its
// transport. Displays on the device have their segments reloaded so the
// device comes back with the new settings.
func (r *Registry) UpdateDeviceConfig(ctx context.Context, id string, cfg config.DeviceConfig) error {
	d, err := r.Get(id)
	if err != nil {
		return err
	}

	cfg = cfg.WithDefaults(d.Type())
	if msgs := cfg.Validate(d.Type()); len(msgs) > 0 {
		return fmt.Errorf("updating %s: %w: %s", id, ErrInvalidDevice, strings.Join(msgs, "; "))
	}

	transport, err := r.factories[d.Type()](id, cfg)
	if err != nil {
		return fmt.Errorf("updating %s transport: %w", id, err)
	}

	displays := d.Displays()
	d.UpdateConfig(cfg, transport)
	r.logger.Info("device config updated", "device_id", id)

	var errs []error
	for _, disp := range displays {
		if err := disp.ReloadSegments(); err != nil {
			r.logger.Warn("failed to reload display segments", "device_id", id, "display_id", disp.ID(), "error", err)
			errs = append(errs, err)
		}
	}

	if r.repo != nil {
		entry := config.DeviceEntry{ID: id, Type: d.Type(), Config: cfg}
		if err := r.repo.Update(ctx, entry); err != nil && !errors.Is(err, ErrDeviceNotFound) {
			errs = append(errs, fmt.Errorf("persisting %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Remove clears every display on the device, deactivates it and drops it
// from the registry and repository.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	d, ok := r.devices[id]
	if ok {
		delete(r.devices, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrDeviceNotFound
	}

	for _, disp := range d.Displays() {
		disp.ClearEffect()
	}
	d.Deactivate()

	if r.repo != nil {
		if err := r.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrDeviceNotFound) {
			return fmt.Errorf("deleting %s: %w", id, err)
		}
	}
	r.logger.Info("device removed", "device_id", id)
	if r.onRemoved != nil {
		r.onRemoved(id)
	}
	return nil
}

// Get returns the device with the given id or ErrDeviceNotFound.
func (r *Registry) Get(id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d, nil
}

// List returns every device sorted by id.
func (r *Registry) List() []*Device {
	r.mu.RLock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Shutdown deactivates every device and runs the OnShutdown hook.
// Only the first call has any effect.
func (r *Registry) Shutdown() {
	r.shutdownOnce.Do(func() {
		for _, d := range r.List() {
			d.Deactivate()
		}
		if r.onClose != nil {
			r.onClose()
		}
		r.logger.Info("devices shut down")
	})
}

func (r *Registry) findByAddress(deviceType string, cfg config.DeviceConfig) *Device {
	host := trimHost(cfg.IPAddress)
	for _, d := range r.List() {
		other := d.Config()
		if trimHost(other.IPAddress) != host || other.Port != cfg.Port {
			continue
		}
		if deviceType == config.DeviceTypeQUDP && d.Type() == config.DeviceTypeQUDP && other.StripIndex != cfg.StripIndex {
			// One QUDP controller hosts several strips.
			continue
		}
		return d
	}
	return nil
}

// mergeProbed overlays the probed device settings on cfg, keeping the
// caller's address and any timing settings already chosen.
func mergeProbed(cfg, probed config.DeviceConfig) config.DeviceConfig {
	if probed.Name != "" {
		cfg.Name = probed.Name
	}
	if probed.PixelCount > 0 {
		cfg.PixelCount = probed.PixelCount
	}
	if probed.IconName != "" {
		cfg.IconName = probed.IconName
	}
	if cfg.RefreshRate == 0 {
		cfg.RefreshRate = probed.RefreshRate
	}
	return cfg
}

// LoadFromRepository creates every stored device not already registered.
// Devices from config.yaml are created first and win on id clashes.
func (r *Registry) LoadFromRepository(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}
	entries, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading stored devices: %w", err)
	}

	var errs []error
	for _, e := range entries {
		if _, err := r.Create(e.ID, e.Type, e.Config); err != nil {
			if errors.Is(err, ErrDeviceExists) {
				r.logger.Debug("stored device shadowed by config", "device_id", e.ID)
				continue
			}
			r.logger.Warn("failed to create stored device", "device_id", e.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
