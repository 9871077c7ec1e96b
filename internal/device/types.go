package device

import (
	"context"
	"time"

	"github.com/ledfx/ledfx-core/internal/task"
)

// Pixel is one RGB triple.
type Pixel [3]uint8

// Frame is an ordered run of pixels.
type Frame []Pixel

// Bytes flattens the frame to R,G,B,R,G,B... wire order.
func (f Frame) Bytes() []byte {
	out := make([]byte, 0, len(f)*3)
	for _, p := range f {
		out = append(out, p[0], p[1], p[2])
	}
	return out
}

// Clone returns a copy of f that shares no memory with it.
func (f Frame) Clone() Frame {
	if f == nil {
		return nil
	}
	out := make(Frame, len(f))
	copy(out, f)
	return out
}

// Slice is a run of pixels destined for [Start, End] (inclusive) of a
// device buffer.
type Slice struct {
	Pixels Frame
	Start  int
	End    int
}

// Segment binds the inclusive range [Start, End] of a device to a display.
// Flip reverses the pixel order within the range.
type Segment struct {
	Device string `json:"device"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Flip   bool   `json:"flip,omitempty"`
}

// Len returns the number of pixels covered by the segment.
func (s Segment) Len() int {
	return s.End - s.Start + 1
}

// DisplayHandle is the view a device has of a display claiming its pixels.
//
// IsActive and RefreshRate are called while the device lock is held and
// must not call back into the device.
type DisplayHandle interface {
	ID() string
	Name() string
	IsActive() bool
	RefreshRate() int

	// ClearEffect stops the display's effect and releases its segments.
	ClearEffect()

	// ReloadSegments releases and re-registers the display's segments,
	// used after a device's configuration changes.
	ReloadSegments() error
}

// Transport sends assembled frames to the physical controller.
type Transport interface {
	// Open prepares the transport for dest (a resolved IP address).
	Open(dest string) error

	// Flush sends one frame. Sends are fire-and-forget.
	Flush(frame Frame) error

	// Close releases the transport. Close on a closed transport is a no-op.
	Close() error
}

// RefreshRater is implemented by transports that negotiate a refresh
// rate with the controller.
type RefreshRater interface {
	RefreshRate() int
}

// VolumeSource reports the current audio input level.
type VolumeSource interface {
	Volume() float64
}

// EventSink receives device notifications. Calls are made without the
// device lock held and must not block for long.
type EventSink interface {
	DeviceUpdated(deviceID string, frame Frame)
	DeviceStateChanged(deviceID string, active bool)
}

// Resolver looks up host names. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Spawner runs background work. *task.Spawner satisfies it.
type Spawner interface {
	Go(name string, fn task.Func, sink task.Sink)
}

// Stats is a snapshot of a device's flush counters.
type Stats struct {
	Active        bool
	FramesFlushed uint64
	FlushErrors   uint64
	LastFlush     time.Time
}
