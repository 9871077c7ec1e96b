// Package qudp implements the QUDP binary UDP streaming protocol.
//
// QUDP controllers drive up to eight LED strips behind one UDP port.
// Every device (strip) on the same controller shares one connection,
// held in a reference-counted Pool keyed by host and port:
//
//   - the first device to attach dials the socket and sends SETUP
//     (queue length and frame interval)
//   - later devices reuse it and inherit its negotiated refresh rate
//   - the last device to detach sends POWER off and closes the socket
//
// Packet layouts (little-endian, all prefixed by the 32-bit magic 3042937533):
//
//	SETUP  magic:u32 type:u8=2 queue_len:u8 frame_interval_us:u32
//	DATA   magic:u32 type:u8=0 strip:u8 frame_id:u8 byte_len:u16 payload
//	RESET  magic:u32 type:u8=1 strip:u8
//	POWER  magic:u32 type:u8=5 flag:u8
//
// Sends are fire-and-forget; nothing is acknowledged or retried.
package qudp
