package display

import (
	"sync"
	"time"

	"github.com/ledfx/ledfx-core/internal/device"
	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

// deviceMap is a DeviceSource backed by a map.
type deviceMap map[string]*device.Device

func (m deviceMap) Get(id string) (*device.Device, error) {
	d, ok := m[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d, nil
}

// recordingTransport records flushed frames and counts opens and closes.
type recordingTransport struct {
	mu     sync.Mutex
	frames []device.Frame
	opens  int
	closes int
}

func (r *recordingTransport) Open(string) error {
	r.mu.Lock()
	r.opens++
	r.mu.Unlock()
	return nil
}

func (r *recordingTransport) Close() error {
	r.mu.Lock()
	r.closes++
	r.mu.Unlock()
	return nil
}

// cycles returns how often the transport was opened and closed.
func (r *recordingTransport) cycles() (opens, closes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens, r.closes
}

func (r *recordingTransport) Flush(frame device.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame.Clone())
	return nil
}

func (r *recordingTransport) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recordingTransport) last() device.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}

// addDevice creates an inactive device with a literal address so it
// activates without resolution.
func addDevice(m deviceMap, id string, pixels, rate int, opts device.Options) *recordingTransport {
	tr := &recordingTransport{}
	cfg := config.DeviceConfig{
		Name:        id,
		PixelCount:  pixels,
		RefreshRate: rate,
		IPAddress:   "10.0.0.1",
		Port:        7777,
	}
	m[id] = device.New(id, config.DeviceTypeQUDP, cfg, tr, opts)
	return tr
}

// newDisplay creates a display with the given segments and refresh rate.
func newDisplay(m deviceMap, id string, rate int, segs ...device.Segment) *Display {
	d := New(id, config.DisplayConfig{Name: id, RefreshRate: rate}, "", m, nil)
	if err := d.UpdateSegments(segs); err != nil {
		panic(err)
	}
	return d
}

func seg(dev string, start, end int) device.Segment {
	return device.Segment{Device: dev, Start: start, End: end}
}

// ramp returns n pixels whose red channel counts up from base.
func ramp(n int, base uint8) device.Frame {
	f := make(device.Frame, n)
	for i := range f {
		f[i] = device.Pixel{base + uint8(i), 0, 0}
	}
	return f
}

type fakeVolume struct {
	mu  sync.Mutex
	vol float64
}

func (v *fakeVolume) Volume() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vol
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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
