package control

import "errors"

var (
	// ErrInvalidFrame is returned for a pixel payload that is not a
	// whole number of RGB triples.
	ErrInvalidFrame = errors.New("control: pixel payload length not a multiple of 3")

	// ErrInvalidTopic is returned for a message on a topic that names no display.
	ErrInvalidTopic = errors.New("control: topic does not name a display")

	// ErrScanUnavailable is returned for a scan request when no scanner is configured.
	ErrScanUnavailable = errors.New("control: discovery scan not configured")
)
