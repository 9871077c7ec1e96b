// Package mqtt connects LedFx Core to an MQTT broker.
//
// The broker is an optional control surface: the core publishes device
// state and its own online status, and accepts frames, effect changes,
// audio volume and scan requests from other processes. Everything under
// the ledfx/ prefix belongs to this process.
//
//	ledfx/system/status           retained online/offline, also the LWT
//	ledfx/device/{id}/state       retained device activation state
//	ledfx/display/{id}/pixels     raw RGB frame for a display
//	ledfx/display/{id}/effect     {"type":"..."}; empty type clears
//	ledfx/audio/volume            volume level 0..1
//	ledfx/command/scan            start a discovery scan
//
// The Client reconnects on its own and restores every subscription after
// a reconnect.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDisplayPixels(), 0, handler)
package mqtt
