// Package wled queries WLED controllers over their JSON HTTP API.
//
// A discovered WLED controller is turned into a device by probing
// /json/info for its name and LED count. Pixel data is streamed over DDP
// (see package ddp); this package only handles configuration.
package wled
