package display

import (
	"context"
	"fmt"
	"time"

	"github.com/ledfx/ledfx-core/internal/device"
	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

// Submit queues frame for the display's next tick. A newer frame for the
// same display replaces one not yet sent. Submit takes ownership of frame.
//
// Returns:
//   - ErrDisplayNotFound if no display has id
//   - ErrNotActive if the display has no effect applied
//   - ErrFrameSize if frame does not cover the display exactly
func (r *Registry) Submit(id string, frame device.Frame) error {
	d, err := r.Get(id)
	if err != nil {
		return err
	}
	if !d.IsActive() {
		return fmt.Errorf("submitting to %s: %w", id, ErrNotActive)
	}
	if n := d.PixelCount(); len(frame) != n {
		return fmt.Errorf("submitting to %s: %w: got %d pixels, want %d", id, ErrFrameSize, len(frame), n)
	}

	r.frameMu.Lock()
	if r.pending == nil {
		r.pending = make(map[string]device.Frame)
	}
	r.pending[id] = frame
	r.frameMu.Unlock()
	return nil
}

// TickPending sends every submitted frame through Tick and empties the
// queue. It does nothing when no frame is waiting.
func (r *Registry) TickPending() error {
	r.frameMu.Lock()
	frames := r.pending
	r.pending = nil
	r.frameMu.Unlock()

	if len(frames) == 0 {
		return nil
	}
	return r.Tick(frames)
}

// Run calls TickPending at the rate of the fastest active display until
// ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	timer := time.NewTimer(r.frameInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := r.TickPending(); err != nil {
				r.logger.Warn("frame tick failed", "error", err)
			}
			timer.Reset(r.frameInterval())
		}
	}
}

func (r *Registry) frameInterval() time.Duration {
	fastest := 0
	for _, d := range r.List() {
		if rate := d.RefreshRate(); d.IsActive() && rate > fastest {
			fastest = rate
		}
	}
	if fastest == 0 {
		fastest = config.DefaultRefreshRate
	}
	return time.Second / time.Duration(fastest)
}
