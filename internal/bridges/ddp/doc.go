// Package ddp implements the Distributed Display Protocol sender used by
// DDP controllers and WLED.
//
// A frame is flattened to RGB bytes and split into packets of at most
// 480 pixels. Each packet carries a 10-byte big-endian header:
//
//	flags:u8 sequence:u8 datatype:u8 source:u8 offset:u32 length:u16
//
// All packets of one frame share a sequence number cycling 1..15, and
// only the last packet has the PUSH flag set so the controller displays
// the frame once it is complete.
package ddp
