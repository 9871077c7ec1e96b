// Package discovery finds LED controllers advertised over mDNS.
//
// A Scanner opens a Browser listener for one service type (WLED
// controllers advertise "_wled._tcp"), hands every Candidate to a
// handler for the length of the scan window and removes the listener
// exactly once when the window ends or the context is cancelled.
//
// ZeroconfBrowser is the production Browser; tests substitute their own.
package discovery
