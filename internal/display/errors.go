package display

import "errors"

// Domain errors for the display package.
var (
	// ErrDisplayNotFound is returned when a display does not exist.
	ErrDisplayNotFound = errors.New("display: not found")

	// ErrDisplayExists is returned when creating a display with an id in use.
	ErrDisplayExists = errors.New("display: already exists")

	// ErrInvalidDisplay is returned for an unusable display definition.
	ErrInvalidDisplay = errors.New("display: invalid configuration")

	// ErrInvalidSegment is returned for a segment outside its device or
	// naming an unknown device.
	ErrInvalidSegment = errors.New("display: invalid segment")

	// ErrFrameSize is returned when a frame does not match the display's
	// pixel count.
	ErrFrameSize = errors.New("display: frame size mismatch")

	// ErrNotActive is returned when pixels are pushed to an inactive display.
	ErrNotActive = errors.New("display: not active")
)
