// Package display implements logical LED outputs composed of segments.
//
// A Display owns an ordered list of segments, each an inclusive pixel
// range on one device. Applying an effect registers the segments on
// their devices (which rejects ranges overlapping another display) and
// activates those devices; clearing it releases them again.
//
// Every render tick the effect renderer hands the display a frame whose
// length is the sum of its segment lengths. UpdatePixels cuts the frame
// into per-segment slices, reversing flipped segments, and passes each
// device all of its slices in one call. A device only flushes when the
// call comes from its priority display, so Registry.Tick applies the
// non-priority displays of each device before the priority one to get
// exactly one flush per device per tick.
//
// Lock order is display then device. Devices read a display's active
// flag, name and refresh rate without taking the display lock.
package display
