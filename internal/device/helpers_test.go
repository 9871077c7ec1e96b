package device

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
	"github.com/ledfx/ledfx-core/internal/task"
)

// fakeTransport records every call made by a device.
type fakeTransport struct {
	mu       sync.Mutex
	opened   []string
	closes   int
	frames   []Frame
	flushErr error
	rate     int
}

func (f *fakeTransport) Open(dest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, dest)
	return nil
}

func (f *fakeTransport) Flush(frame Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flushErr != nil {
		return f.flushErr
	}
	f.frames = append(f.frames, frame.Clone())
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeTransport) flushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeTransport) lastFrame() Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

// ratedTransport also negotiates a refresh rate.
type ratedTransport struct {
	fakeTransport
}

func (r *ratedTransport) RefreshRate() int { return r.rate }

// fakeDisplay is a DisplayHandle whose ClearEffect releases its claims.
type fakeDisplay struct {
	id      string
	name    string
	rate    int
	active  atomic.Bool
	cleared atomic.Int32
	reloads atomic.Int32
	devices []*Device
}

func newFakeDisplay(id string, rate int) *fakeDisplay {
	d := &fakeDisplay{id: id, name: id, rate: rate}
	d.active.Store(true)
	return d
}

func (f *fakeDisplay) ID() string       { return f.id }
func (f *fakeDisplay) Name() string     { return f.name }
func (f *fakeDisplay) IsActive() bool   { return f.active.Load() }
func (f *fakeDisplay) RefreshRate() int { return f.rate }

func (f *fakeDisplay) ClearEffect() {
	f.cleared.Add(1)
	f.active.Store(false)
	for _, d := range f.devices {
		if d.ClearDisplaySegments(f.id) {
			d.Deactivate()
		}
	}
}

func (f *fakeDisplay) ReloadSegments() error {
	f.reloads.Add(1)
	return nil
}

// fakeVolume is a settable VolumeSource.
type fakeVolume struct {
	mu  sync.Mutex
	vol float64
}

func (v *fakeVolume) Volume() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vol
}

func (v *fakeVolume) set(x float64) {
	v.mu.Lock()
	v.vol = x
	v.mu.Unlock()
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeResolver maps host names to addresses.
type fakeResolver struct {
	mu    sync.Mutex
	hosts map[string]string
	calls []string
}

func (r *fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, host)
	if addr, ok := r.hosts[host]; ok {
		return []string{addr}, nil
	}
	return nil, errors.New("no such host")
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// recordingEvents collects EventSink calls.
type recordingEvents struct {
	mu      sync.Mutex
	updates []string
	states  []bool
}

func (e *recordingEvents) DeviceUpdated(id string, _ Frame) {
	e.mu.Lock()
	e.updates = append(e.updates, id)
	e.mu.Unlock()
}

func (e *recordingEvents) DeviceStateChanged(_ string, active bool) {
	e.mu.Lock()
	e.states = append(e.states, active)
	e.mu.Unlock()
}

func testConfig(pixels int) config.DeviceConfig {
	return config.DeviceConfig{
		Name:        "Test Strip",
		PixelCount:  pixels,
		RefreshRate: 60,
		IPAddress:   "127.0.0.1",
		Port:        7777,
	}
}

// newTestDevice returns an inactive device on a fake transport.
func newTestDevice(pixels int, opts Options) (*Device, *fakeTransport) {
	tr := &fakeTransport{}
	if opts.Spawner == nil {
		opts.Spawner = task.NewSpawner(context.Background())
	}
	return New("strip", config.DeviceTypeQUDP, testConfig(pixels), tr, opts), tr
}

func solid(n int, v uint8) Frame {
	f := make(Frame, n)
	for i := range f {
		f[i] = Pixel{v, v, v}
	}
	return f
}
