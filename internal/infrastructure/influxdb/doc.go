// Package influxdb records LedFx device telemetry in InfluxDB.
//
// Every reporting interval the flush counters of each device are written
// as one device_stats point tagged with the device id. Writes are
// non-blocking and batched by the official client; batch failures are
// delivered to the SetOnError callback.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	go influxdb.RunReporter(ctx, client, interval, source)
package influxdb
