// Package audio holds the most recent audio level reported by the
// external audio analysis pipeline.
//
// Capture and FFT run outside this process. Their output reaches LedFx
// as a volume figure (for example over MQTT), and devices read it back to
// drive the silence timeout.
package audio

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
)

// Level is a concurrency-safe holder for the current volume in [0, 1].
// The zero value reports silence.
type Level struct {
	bits atomic.Uint64
}

// Set stores v, clamped to [0, 1]. NaN is treated as silence.
func (l *Level) Set(v float64) {
	switch {
	case math.IsNaN(v) || v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	l.bits.Store(math.Float64bits(v))
}

// Volume returns the last stored level.
func (l *Level) Volume() float64 {
	return math.Float64frombits(l.bits.Load())
}

// SetFromPayload parses a textual float (as published on the volume
// topic) and stores it.
func (l *Level) SetFromPayload(payload []byte) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return fmt.Errorf("parsing volume %q: %w", payload, err)
	}
	l.Set(v)
	return nil
}
