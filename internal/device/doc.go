// Package device implements LED output devices and the registry that owns them.
//
// A Device holds a pixel buffer of pixel_count RGB pixels while it is
// active. Displays claim inclusive pixel ranges (segments) on a device;
// claims from different displays never overlap. Every render tick each
// display writes its slices into the buffer, and only the device's
// priority display (the active display with the highest refresh rate,
// earliest association winning ties) triggers a flush of the assembled
// frame through the device's Transport.
//
// A device with a silence_timeout deactivates itself after the audio
// volume has stayed at zero for that many seconds, clearing the effect
// of every display it hosts.
//
// Transports are pluggable: the Registry is built with one
// TransportFactory per device type (qudp, ddp, udp, wled). The device
// package never imports a transport implementation.
//
// Thread Safety:
//   - Device methods are safe for concurrent use. A single mutex guards
//     the buffer, claims, caches and silence timer, and is held across
//     write-then-flush so one update is atomic with respect to others.
//   - Display callbacks (ClearEffect, ReloadSegments) are made without
//     holding the device lock.
package device
