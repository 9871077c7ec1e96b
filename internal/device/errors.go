package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrSegmentConflict) {
//	    // surface the conflict to the user
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device whose ID or
	// address is already registered.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device configuration fails validation.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrUnknownType is returned when no transport is registered for a device type.
	ErrUnknownType = errors.New("device: unknown type")

	// ErrSegmentConflict is returned when a segment overlaps one claimed
	// by a different display.
	ErrSegmentConflict = errors.New("device: segment conflict")

	// ErrInvalidSegment is returned for a pixel range outside the device.
	ErrInvalidSegment = errors.New("device: invalid segment")

	// ErrNotActive is returned when pixels are written to an inactive device.
	ErrNotActive = errors.New("device: not active")

	// ErrDestinationUnresolved is returned by Activate while the network
	// destination is still being resolved. Callers retry later.
	ErrDestinationUnresolved = errors.New("device: destination unresolved")

	// ErrResolveFailed is returned when a device hostname cannot be resolved.
	ErrResolveFailed = errors.New("device: resolve failed")
)

// ConflictError describes two displays claiming overlapping pixels on
// one device. It matches ErrSegmentConflict with errors.Is.
type ConflictError struct {
	Device   string
	Display  string
	Blocking string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("display %q overlaps with display %q on device %q", e.Display, e.Blocking, e.Device)
}

// Is reports whether target is ErrSegmentConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrSegmentConflict
}
