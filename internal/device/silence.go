package device

import "time"

// silenceTimer tracks how long the audio input has been silent.
// running false is the untimed quiet state, true the timed one.
type silenceTimer struct {
	running  bool
	deadline time.Time
}

func (t *silenceTimer) reset() {
	t.running = false
	t.deadline = time.Time{}
}

// silenceExpiredLocked advances the silence timer from the current
// volume and reports whether the deadline has been reached. A reached
// deadline resets the timer.
func (d *Device) silenceExpiredLocked() bool {
	if d.volume == nil {
		return false
	}

	now := d.clock()
	timeout := time.Duration(d.cfg.SilenceTimeout) * time.Second

	if d.volume.Volume() == 0 {
		if !d.silence.running {
			d.silence.running = true
			d.silence.deadline = now.Add(timeout)
		}
	} else {
		d.silence.reset()
	}

	if d.silence.running && timeout > 0 && !now.Before(d.silence.deadline) {
		d.silence.reset()
		return true
	}
	return false
}
