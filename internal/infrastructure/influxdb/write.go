package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementDeviceStats is the measurement device counters are written to.
const MeasurementDeviceStats = "device_stats"

// WriteDeviceStats records a device's cumulative flush counters and
// activation state. The write is batched; it is dropped when the client
// is closed.
func (c *Client) WriteDeviceStats(deviceID string, frames, errors uint64, active bool) {
	c.writeAt(deviceID, frames, errors, active, time.Now())
}

func (c *Client) writeAt(deviceID string, frames, errors uint64, active bool, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	// #nosec G115 -- counters will not reach 2^63
	point := write.NewPoint(
		MeasurementDeviceStats,
		map[string]string{"device_id": deviceID},
		map[string]any{
			"frames":       int64(frames),
			"flush_errors": int64(errors),
			"active":       active,
		},
		ts,
	)
	c.writer.WritePoint(point)
}
