// Package udp implements the generic UDP pixel sender.
//
// Each frame goes out as a single datagram: an optional hex-configured
// prefix, the RGB bytes of every pixel (optionally each preceded by its
// index byte), then an optional hex-configured postfix. A prefix of
// "0201" makes the datagram a WLED realtime DRGB packet.
package udp
