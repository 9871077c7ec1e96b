package wled

import "errors"

// Domain errors for the WLED package.
var (
	// ErrRequestFailed is returned when the controller cannot be reached
	// or answers with a non-2xx status.
	ErrRequestFailed = errors.New("wled: request failed")

	// ErrIncompatible is returned when the controller does not report a
	// WLED brand.
	ErrIncompatible = errors.New("wled: incompatible device")
)
