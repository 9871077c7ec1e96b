package influxdb

import (
	"context"
	"time"
)

// DeviceStats is one device's counters at report time.
type DeviceStats struct {
	ID            string
	FramesFlushed uint64
	FlushErrors   uint64
	Active        bool
}

// StatsWriter accepts device counters. *Client satisfies it.
type StatsWriter interface {
	WriteDeviceStats(deviceID string, frames, errors uint64, active bool)
}

// StatsSource returns the counters of every current device.
type StatsSource func() []DeviceStats

// RunReporter writes source's counters to w every interval until ctx is
// cancelled, then writes them once more.
func RunReporter(ctx context.Context, w StatsWriter, interval time.Duration, source StatsSource) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	report := func() {
		for _, s := range source() {
			w.WriteDeviceStats(s.ID, s.FramesFlushed, s.FlushErrors, s.Active)
		}
	}

	for {
		select {
		case <-ctx.Done():
			report()
			return
		case <-ticker.C:
			report()
		}
	}
}
